package video

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telemed-server/internal/models"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).First(&appt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &appt, nil
}

func (r *gormRepository) GetRoomByAppointment(ctx context.Context, appointmentID string) (*models.VideoRoom, error) {
	var room models.VideoRoom
	err := r.db.WithContext(ctx).First(&room, "appointment_id = ?", appointmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video room: %w", err)
	}
	return &room, nil
}

func (r *gormRepository) GetActiveRoom(ctx context.Context, name string) (*models.VideoRoom, error) {
	var room models.VideoRoom
	err := r.db.WithContext(ctx).
		Preload("Appointment").
		Where("room_name = ? AND is_active = ?", name, true).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video room: %w", err)
	}
	return &room, nil
}

func (r *gormRepository) CreateRoom(ctx context.Context, room *models.VideoRoom) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(room).Error
	if models.IsUniqueViolation(err) {
		return errRoomExists.WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert video room: %w", err)
	}
	return nil
}

func (r *gormRepository) InsertEvent(ctx context.Context, ev *models.AppointmentEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}
