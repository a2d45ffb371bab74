package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"telemed-server/internal/apperror"
	"telemed-server/internal/config"
	"telemed-server/internal/logger"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
	redisclient "telemed-server/internal/redis"
)

// DefaultCancelReason is stored when a cancellation carries no reason
const DefaultCancelReason = "Cancelled by user."

var (
	ErrNotPatient          = apperror.Authorization("only patients can book appointments")
	ErrNotAssignedDoctor   = apperror.Authorization("only the assigned doctor may create session records")
	ErrNotParticipant      = apperror.Authorization("not authorized to view this appointment")
	ErrDoctorNotApproved   = apperror.Validation("doctor", "doctor not approved")
	ErrScheduledInPast     = apperror.Validation("scheduled_time", "must be in the future")
	ErrNotCompleted        = apperror.Conflict("can only create session records for completed appointments")
	ErrDoctorScheduleBusy  = apperror.Conflict("doctor schedule is being updated, please retry")
	ErrDiagnosisRequired   = apperror.Validation("diagnosis", "this field is required")
	ErrTreatmentRequired   = apperror.Validation("treatment", "this field is required")
	ErrEndTimeBeforeStart  = apperror.Validation("end_time", "end time must be after start time")
	ErrAppointmentRequired = apperror.Validation("appointment_id", "this field is required")
)

// CreateAppointmentInput is a booking request. Duration 0 means the configured default.
type CreateAppointmentInput struct {
	DoctorID      string
	ScheduledTime time.Time
	Duration      int
	Reason        string
}

// SessionRecordInput is the doctor-supplied part of a session record
type SessionRecordInput struct {
	EndTime      *time.Time
	Notes        string
	Prescription string
	Diagnosis    string
	Treatment    string
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    *logger.Logger
	cfg    config.SchedulingConfig
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, log *logger.Logger, cfg config.SchedulingConfig) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateAppointment books a SCHEDULED appointment for a patient with an
// approved doctor. The doctor's profile row is locked for the length of the
// transaction so concurrent bookings for the same doctor run the conflict
// check one at a time.
func (s *Service) CreateAppointment(ctx context.Context, actor models.Actor, in CreateAppointmentInput) (*models.Appointment, error) {
	appt, err := s.createAppointment(ctx, actor, in)
	if err != nil {
		metrics.RecordBooking(string(apperror.KindOf(err)))
		return nil, err
	}
	metrics.RecordBooking("created")
	return appt, nil
}

func (s *Service) createAppointment(ctx context.Context, actor models.Actor, in CreateAppointmentInput) (*models.Appointment, error) {
	if !actor.IsPatient() {
		return nil, ErrNotPatient
	}
	if strings.TrimSpace(in.DoctorID) == "" {
		return nil, apperror.Validation("doctor", "this field is required")
	}

	duration := in.Duration
	if duration == 0 {
		duration = s.cfg.DefaultDuration
	}
	if duration < s.cfg.MinDuration || duration > s.cfg.MaxDuration {
		return nil, apperror.Validation("duration",
			fmt.Sprintf("must be between %d and %d minutes", s.cfg.MinDuration, s.cfg.MaxDuration))
	}

	start := in.ScheduledTime.UTC()
	if !start.After(s.now()) {
		return nil, ErrScheduledInPast
	}
	candidate := NewInterval(start, duration)

	// checked again under the row lock; this read keeps the gate's answer
	// when the Redis lock is contended
	if err := s.checkDoctorBookable(ctx, in.DoctorID); err != nil {
		return nil, err
	}

	var created *models.Appointment
	err := s.locker.WithDoctorLock(ctx, in.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			profile, err := tx.LockDoctorProfile(lockCtx, in.DoctorID)
			if err != nil {
				return err
			}
			if !profile.IsApproved() {
				return ErrDoctorNotApproved
			}

			existing, err := tx.ScheduledAppointmentsForDoctor(lockCtx, in.DoctorID, candidate)
			if err != nil {
				return err
			}
			if conflict, found := FirstConflict(candidate, existing, ""); found {
				return ErrSlotTaken.WithDetails(map[string]interface{}{
					"conflicting_start": conflict.ScheduledTime,
					"conflicting_end":   AppointmentInterval(conflict).End,
				})
			}

			appt := &models.Appointment{
				PatientID:     actor.UserID,
				DoctorID:      in.DoctorID,
				ScheduledTime: start,
				EndTime:       candidate.End,
				Duration:      duration,
				Status:        models.StatusScheduled,
				Reason:        in.Reason,
			}
			if err := tx.CreateAppointment(lockCtx, appt); err != nil {
				return err
			}

			if err := s.insertEvent(lockCtx, tx, appt.ID, actor.UserID, models.EventAppointmentCreated, map[string]any{
				"doctor_id":      appt.DoctorID,
				"scheduled_time": appt.ScheduledTime,
				"duration":       appt.Duration,
			}); err != nil {
				return err
			}

			created = appt
			return nil
		})
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrDoctorScheduleBusy
	}
	if err != nil {
		s.log.Audit(actor.UserID, "appointment.create", "doctor:"+in.DoctorID, false, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	s.log.Audit(actor.UserID, "appointment.create", "appointment:"+created.ID, true, map[string]interface{}{
		"doctor_id":      created.DoctorID,
		"scheduled_time": created.ScheduledTime,
		"duration":       created.Duration,
	})
	return created, nil
}

func (s *Service) checkDoctorBookable(ctx context.Context, doctorID string) error {
	profile, err := s.repo.DoctorProfile(ctx, doctorID)
	if err != nil {
		return err
	}
	if !profile.IsApproved() {
		return ErrDoctorNotApproved
	}
	return nil
}

// CancelAppointment moves a SCHEDULED appointment to CANCELLED. A nil reason
// stores DefaultCancelReason; any supplied string, blank included, is kept.
func (s *Service) CancelAppointment(ctx context.Context, actor models.Actor, id string, reason *string) (*models.Appointment, error) {
	r := DefaultCancelReason
	if reason != nil {
		r = *reason
	}
	return s.transition(ctx, actor, id, models.StatusCancelled, &r, "cancel")
}

// CompleteAppointment moves a SCHEDULED appointment to COMPLETED
func (s *Service) CompleteAppointment(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, models.StatusCompleted, nil, "complete")
}

// MarkNoShow moves a SCHEDULED appointment to NO_SHOW
func (s *Service) MarkNoShow(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, models.StatusNoShow, nil, "mark no-show")
}

// TransitionAppointment is the generic status update. Cancellation through
// here behaves exactly like CancelAppointment.
func (s *Service) TransitionAppointment(ctx context.Context, actor models.Actor, id string, target models.AppointmentStatus, reason *string) (*models.Appointment, error) {
	if target == models.StatusCancelled {
		return s.CancelAppointment(ctx, actor, id, reason)
	}
	return s.transition(ctx, actor, id, target, reason, "update")
}

func (s *Service) transition(ctx context.Context, actor models.Actor, id string, target models.AppointmentStatus, reason *string, verb string) (*models.Appointment, error) {
	if !target.Valid() {
		return nil, apperror.Validation("status", fmt.Sprintf("invalid appointment status %q", target))
	}

	var (
		updated *models.Appointment
		from    models.AppointmentStatus
	)
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !canModify(actor, appt) {
			return apperror.Authorization("not authorized to " + verb)
		}

		next, err := Transition(appt.Status, target)
		if err != nil {
			return err
		}
		from = appt.Status

		updated, err = tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, next, reason)
		if err != nil {
			return err
		}

		payload := map[string]any{"from": from, "to": next}
		if reason != nil {
			payload["reason"] = *reason
		}
		return s.insertEvent(ctx, tx, appt.ID, actor.UserID, models.EventAppointmentStatusChanged, payload)
	})
	if err != nil {
		s.log.Audit(actor.UserID, "appointment."+string(target), "appointment:"+id, false, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	metrics.RecordTransition(string(from), string(updated.Status))
	s.log.Audit(actor.UserID, "appointment."+string(target), "appointment:"+id, true, map[string]interface{}{
		"from": from,
		"to":   updated.Status,
	})
	return updated, nil
}

// GetAppointment returns an appointment to one of its participants or an admin
func (s *Service) GetAppointment(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, appt) {
		return nil, ErrNotParticipant
	}
	return appt, nil
}

// ListUpcoming returns future SCHEDULED appointments visible to actor, soonest
// first. Patients see their own bookings, doctors their own schedule and
// admins everything.
func (s *Service) ListUpcoming(ctx context.Context, actor models.Actor) ([]models.Appointment, error) {
	filter := UpcomingFilter{After: s.now()}
	switch actor.Role {
	case models.RolePatient:
		filter.PatientID = actor.UserID
	case models.RoleDoctor:
		filter.DoctorID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, apperror.Authorization("not authorized to list appointments")
	}
	return s.repo.ListUpcoming(ctx, filter)
}

// CreateSessionRecord attaches the clinical note to a COMPLETED appointment.
// The start time is the moment of creation. Only one record may ever exist
// per appointment; the unique index on appointment_id decides races that
// pass the HasSessionRecord check together.
func (s *Service) CreateSessionRecord(ctx context.Context, actor models.Actor, appointmentID string, in SessionRecordInput) (*models.SessionRecord, error) {
	rec, err := s.createSessionRecord(ctx, actor, appointmentID, in)
	if err != nil {
		metrics.RecordSessionRecord(string(apperror.KindOf(err)))
		s.log.Audit(actor.UserID, "session_record.create", "appointment:"+appointmentID, false, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	metrics.RecordSessionRecord("created")
	s.log.Audit(actor.UserID, "session_record.create", "appointment:"+appointmentID, true, map[string]interface{}{
		"session_record_id": rec.ID,
	})
	return rec, nil
}

func (s *Service) createSessionRecord(ctx context.Context, actor models.Actor, appointmentID string, in SessionRecordInput) (*models.SessionRecord, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return nil, ErrAppointmentRequired
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return nil, ErrDiagnosisRequired
	}
	if strings.TrimSpace(in.Treatment) == "" {
		return nil, ErrTreatmentRequired
	}

	var created *models.SessionRecord
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		appt, err := tx.LockAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if actor.UserID != appt.DoctorID {
			return ErrNotAssignedDoctor
		}

		if appt.Status != models.StatusCompleted {
			return ErrNotCompleted
		}
		exists, err := tx.HasSessionRecord(ctx, appt.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrSessionRecordExists
		}
		start := s.now()
		if in.EndTime != nil && !in.EndTime.After(start) {
			return ErrEndTimeBeforeStart
		}

		rec := &models.SessionRecord{
			AppointmentID: appt.ID,
			StartTime:     start,
			EndTime:       in.EndTime,
			Notes:         in.Notes,
			Prescription:  in.Prescription,
			Diagnosis:     in.Diagnosis,
			Treatment:     in.Treatment,
		}
		if err := tx.CreateSessionRecord(ctx, rec); err != nil {
			return err
		}

		if err := s.insertEvent(ctx, tx, appt.ID, actor.UserID, models.EventSessionRecordCreated, map[string]any{
			"session_record_id": rec.ID,
		}); err != nil {
			return err
		}

		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// canModify reports whether actor is the appointment's patient, its doctor or an admin
func canModify(actor models.Actor, appt *models.Appointment) bool {
	return actor.IsAdmin() || actor.UserID == appt.PatientID || actor.UserID == appt.DoctorID
}

func (s *Service) insertEvent(ctx context.Context, tx Repository, appointmentID, actorID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"event_type": eventType,
			"error":      err,
		}).Warn("failed to marshal event payload")
		data = nil
	}

	ev := &models.AppointmentEvent{
		EventType:     eventType,
		AppointmentID: appointmentID,
		ActorID:       actorID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	return tx.InsertEvent(ctx, ev)
}
