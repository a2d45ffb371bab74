package models

import (
	"time"
)

// SessionRecord is the clinical note attached to a completed appointment
type SessionRecord struct {
	BaseModel
	AppointmentID string     `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	StartTime     time.Time  `gorm:"not null" json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes"`
	Prescription  string     `gorm:"type:text" json:"prescription"`
	Diagnosis     string     `gorm:"type:text;not null" json:"diagnosis"`
	Treatment     string     `gorm:"type:text;not null" json:"treatment"`
}
