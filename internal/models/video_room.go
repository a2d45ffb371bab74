package models

import (
	"time"
)

// VideoRoom is the video-conference room provisioned for an appointment
type VideoRoom struct {
	BaseModel
	AppointmentID string    `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	RoomName      string    `gorm:"size:100;uniqueIndex;not null" json:"roomName"`
	RoomURL       string    `gorm:"size:512;not null" json:"roomUrl"`
	ExpiresAt     time.Time `gorm:"not null" json:"expiresAt"`
	IsActive      bool      `gorm:"default:true" json:"isActive"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}
