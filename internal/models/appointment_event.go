package models

import (
	"time"

	"gorm.io/datatypes"
)

// Appointment event types
const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventSessionRecordCreated     = "session_record.created"
	EventVideoRoomCreated         = "video_room.created"
)

// AppointmentEvent is an append-only audit row written with every appointment change
type AppointmentEvent struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType     string         `gorm:"size:40;not null;index" json:"eventType"`
	AppointmentID string         `gorm:"size:36;index;not null" json:"appointmentId"`
	ActorID       string         `gorm:"size:36" json:"actorId"`
	Payload       datatypes.JSON `json:"payload"`
	CreatedAt     time.Time      `json:"createdAt"`
}
