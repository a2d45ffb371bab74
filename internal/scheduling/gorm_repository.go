package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telemed-server/internal/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns a Repository backed by db
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) DoctorProfile(ctx context.Context, doctorID string) (*models.DoctorProfile, error) {
	return r.doctorProfile(ctx, r.db.WithContext(ctx), doctorID)
}

func (r *gormRepository) LockDoctorProfile(ctx context.Context, doctorID string) (*models.DoctorProfile, error) {
	return r.doctorProfile(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), doctorID)
}

func (r *gormRepository) doctorProfile(ctx context.Context, q *gorm.DB, doctorID string) (*models.DoctorProfile, error) {
	var profile models.DoctorProfile
	err := q.
		Joins("JOIN users ON users.id = doctor_profiles.user_id").
		Where("doctor_profiles.user_id = ? AND users.role = ?", doctorID, models.RoleDoctor).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, r.missingDoctor(ctx, doctorID)
	}
	if err != nil {
		return nil, fmt.Errorf("load doctor profile: %w", err)
	}
	return &profile, nil
}

// missingDoctor tells an unknown id apart from a user who is not a doctor
func (r *gormRepository) missingDoctor(ctx context.Context, doctorID string) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", doctorID).Count(&count).Error
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if count > 0 {
		return ErrNotADoctor
	}
	return ErrDoctorNotFound
}

func (r *gormRepository) ScheduledAppointmentsForDoctor(ctx context.Context, doctorID string, window Interval) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND status = ?", doctorID, models.StatusScheduled).
		Where("scheduled_time < ? AND end_time > ?", window.End, window.Start).
		Order("scheduled_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("query scheduled appointments: %w", err)
	}
	return appts, nil
}

func (r *gormRepository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(appt).Error
	if models.IsExclusionViolation(err) {
		return ErrSlotTaken.WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *gormRepository) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Preload("Doctor.DoctorProfile").
		First(&appt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &appt, nil
}

func (r *gormRepository) LockAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&appt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock appointment: %w", err)
	}
	return &appt, nil
}

func (r *gormRepository) UpdateAppointmentStatus(ctx context.Context, id string, from, to models.AppointmentStatus, reason *string) (*models.Appointment, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if reason != nil {
		updates["reason"] = *reason
	}

	// UpdateColumns skips the save hooks, which would otherwise recompute
	// end_time from an empty model.
	res := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrStatusChanged
	}

	return r.GetAppointment(ctx, id)
}

func (r *gormRepository) ListUpcoming(ctx context.Context, filter UpcomingFilter) ([]models.Appointment, error) {
	q := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Where("status = ? AND scheduled_time > ?", models.StatusScheduled, filter.After)
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		q = q.Where("doctor_id = ?", filter.DoctorID)
	}

	var appts []models.Appointment
	if err := q.Order("scheduled_time ASC").Find(&appts).Error; err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appts, nil
}

func (r *gormRepository) HasSessionRecord(ctx context.Context, appointmentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SessionRecord{}).
		Where("appointment_id = ?", appointmentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count session records: %w", err)
	}
	return count > 0, nil
}

func (r *gormRepository) CreateSessionRecord(ctx context.Context, rec *models.SessionRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if models.IsUniqueViolation(err) {
		return ErrSessionRecordExists.WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert session record: %w", err)
	}
	return nil
}

func (r *gormRepository) InsertEvent(ctx context.Context, ev *models.AppointmentEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}
