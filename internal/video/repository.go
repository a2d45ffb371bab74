package video

import (
	"context"

	"telemed-server/internal/apperror"
	"telemed-server/internal/models"
)

var (
	ErrAppointmentNotFound = apperror.NotFound("appointment not found")
	ErrRoomNotFound        = apperror.NotFound("video room not found")
	errRoomExists          = apperror.Conflict("video room already exists")
)

type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	// GetRoomByAppointment returns ErrRoomNotFound when the appointment has no room
	GetRoomByAppointment(ctx context.Context, appointmentID string) (*models.VideoRoom, error)
	// GetActiveRoom looks a room up by name, with its appointment loaded
	GetActiveRoom(ctx context.Context, name string) (*models.VideoRoom, error)
	CreateRoom(ctx context.Context, room *models.VideoRoom) error
	InsertEvent(ctx context.Context, ev *models.AppointmentEvent) error
}
