// Package video provisions conference rooms for appointments.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"telemed-server/internal/apperror"
	"telemed-server/internal/logger"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
)

// DefaultRoomTTL is how long after the scheduled start a room stays usable
const DefaultRoomTTL = time.Hour

var (
	ErrVideoDisabled     = errors.New("video provider is not configured")
	ErrNotParticipant    = apperror.Authorization("you don't have permission to access this room")
	ErrNotRoomable       = apperror.Conflict("video rooms can only be created for scheduled appointments")
	ErrAppointmentNeeded = apperror.Validation("appointment_id", "this field is required")
)

type Service struct {
	repo     Repository
	provider Provider
	log      *logger.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewService wires the room service. provider may be nil, which disables
// room creation; existing rooms can still be read.
func NewService(repo Repository, provider Provider, log *logger.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &Service{
		repo:     repo,
		provider: provider,
		log:      log,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRoom returns the appointment's room, provisioning one when none
// exists yet. created is false when an existing room is returned.
func (s *Service) CreateRoom(ctx context.Context, actor models.Actor, appointmentID string) (room *models.VideoRoom, created bool, err error) {
	room, created, err = s.createRoom(ctx, actor, appointmentID)
	switch {
	case err != nil:
		metrics.RecordVideoRoom(string(apperror.KindOf(err)))
		s.log.Audit(actor.UserID, "video_room.create", "appointment:"+appointmentID, false, map[string]interface{}{
			"error": err.Error(),
		})
	case created:
		metrics.RecordVideoRoom("created")
		s.log.Audit(actor.UserID, "video_room.create", "video_room:"+room.RoomName, true, map[string]interface{}{
			"appointment_id": appointmentID,
		})
	default:
		metrics.RecordVideoRoom("existing")
	}
	return room, created, err
}

func (s *Service) createRoom(ctx context.Context, actor models.Actor, appointmentID string) (*models.VideoRoom, bool, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return nil, false, ErrAppointmentNeeded
	}

	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	if !isParticipant(actor, appt) {
		return nil, false, ErrNotParticipant
	}

	existing, err := s.repo.GetRoomByAppointment(ctx, appt.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return nil, false, err
	}

	if appt.Status != models.StatusScheduled {
		return nil, false, ErrNotRoomable
	}
	if s.provider == nil {
		return nil, false, ErrVideoDisabled
	}

	name := RoomName(appt.ID)
	expiresAt := appt.ScheduledTime.Add(s.ttl)

	// The provider call stays outside the transaction so no row is held
	// across the network round trip.
	provisioned, err := s.provider.CreateRoom(ctx, name, expiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("provision room %s: %w", name, err)
	}

	room := &models.VideoRoom{
		AppointmentID: appt.ID,
		RoomName:      name,
		RoomURL:       provisioned.URL,
		ExpiresAt:     expiresAt,
		IsActive:      true,
	}
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		return s.insertEvent(ctx, tx, appt.ID, actor.UserID, models.EventVideoRoomCreated, map[string]any{
			"room_name":  room.RoomName,
			"expires_at": room.ExpiresAt,
		})
	})
	if errors.Is(err, errRoomExists) {
		// lost the race against a concurrent request for the same appointment
		existing, getErr := s.repo.GetRoomByAppointment(ctx, appt.ID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return room, true, nil
}

// GetRoom returns an active room to a participant of its appointment
func (s *Service) GetRoom(ctx context.Context, actor models.Actor, name string) (*models.VideoRoom, error) {
	room, err := s.repo.GetActiveRoom(ctx, name)
	if err != nil {
		return nil, err
	}
	if room.Appointment == nil || !isParticipant(actor, room.Appointment) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

// RoomName builds telemed-<appointment>-<6 hex>
func RoomName(appointmentID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("telemed-%s-%s", appointmentID, suffix)
}

func isParticipant(actor models.Actor, appt *models.Appointment) bool {
	return actor.UserID == appt.PatientID || actor.UserID == appt.DoctorID
}

// insertEvent records an audit event in tx. A payload that cannot be
// encoded is logged and stored empty rather than failing the request.
func (s *Service) insertEvent(ctx context.Context, tx Repository, appointmentID, actorID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"event_type":     eventType,
			"appointment_id": appointmentID,
			"error":          err,
		}).Warn("failed to marshal event payload")
		data = nil
	}

	return tx.InsertEvent(ctx, &models.AppointmentEvent{
		EventType:     eventType,
		AppointmentID: appointmentID,
		ActorID:       actorID,
		Payload:       data,
		CreatedAt:     s.now(),
	})
}
