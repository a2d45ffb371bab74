package scheduling

import (
	"context"
	"time"

	"telemed-server/internal/apperror"
	"telemed-server/internal/models"
)

var (
	ErrDoctorNotFound      = apperror.NotFound("doctor not found")
	ErrNotADoctor          = apperror.Validation("doctor", "user is not a doctor")
	ErrAppointmentNotFound = apperror.NotFound("appointment not found")
	ErrSlotTaken           = apperror.Conflict("doctor is not available at this time")
	ErrSessionRecordExists = apperror.Conflict("session record already exists")
	ErrStatusChanged       = apperror.Conflict("appointment status changed concurrently, please retry")
)

// UpcomingFilter scopes ListUpcoming. Empty ids mean "any".
type UpcomingFilter struct {
	PatientID string
	DoctorID  string
	After     time.Time
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithinTx runs fn in one database transaction. The Repository passed to
	// fn is bound to that transaction.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// DoctorProfile loads the doctor's profile without locking it. It returns
	// ErrNotADoctor when the id belongs to a user without the doctor role.
	DoctorProfile(ctx context.Context, doctorID string) (*models.DoctorProfile, error)

	// LockDoctorProfile loads the doctor's profile and holds a row lock on it
	// until the transaction ends. Bookings for one doctor serialize here.
	LockDoctorProfile(ctx context.Context, doctorID string) (*models.DoctorProfile, error)

	// For conflict checks
	ScheduledAppointmentsForDoctor(ctx context.Context, doctorID string, window Interval) ([]models.Appointment, error)

	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	LockAppointment(ctx context.Context, id string) (*models.Appointment, error)
	// UpdateAppointmentStatus moves id from one status to another. It returns
	// ErrStatusChanged when the row is no longer in from.
	UpdateAppointmentStatus(ctx context.Context, id string, from, to models.AppointmentStatus, reason *string) (*models.Appointment, error)
	ListUpcoming(ctx context.Context, filter UpcomingFilter) ([]models.Appointment, error)

	HasSessionRecord(ctx context.Context, appointmentID string) (bool, error)
	// CreateSessionRecord returns ErrSessionRecordExists on a unique violation
	CreateSessionRecord(ctx context.Context, rec *models.SessionRecord) error

	// Event logging
	InsertEvent(ctx context.Context, ev *models.AppointmentEvent) error
}
