package models

import (
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Valid reports whether s is a known appointment status
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment represents a booked consultation between a patient and a doctor
type Appointment struct {
	BaseModel
	PatientID     string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID      string            `gorm:"size:36;index:idx_appointments_doctor_time;not null" json:"doctorId"`
	ScheduledTime time.Time         `gorm:"not null;index;index:idx_appointments_doctor_time" json:"scheduledTime"`
	EndTime       time.Time         `gorm:"not null" json:"endTime"` // ScheduledTime + Duration, kept for the range constraint
	Duration      int               `gorm:"not null;default:30;check:duration > 0" json:"duration"`
	Status        AppointmentStatus `gorm:"size:20;not null;default:'SCHEDULED';index" json:"status"`
	Reason        string            `gorm:"type:text" json:"reason"`

	// Relations
	Patient       User           `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
	Doctor        User           `gorm:"foreignKey:DoctorID;constraint:OnDelete:CASCADE" json:"-"`
	SessionRecord *SessionRecord `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE" json:"-"`
	VideoRoom     *VideoRoom     `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE" json:"-"`
}

// ComputeEndTime returns ScheduledTime + Duration
func (a *Appointment) ComputeEndTime() time.Time {
	return a.ScheduledTime.Add(time.Duration(a.Duration) * time.Minute)
}

// BeforeSave keeps EndTime in step with ScheduledTime and Duration
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	a.EndTime = a.ComputeEndTime()
	return nil
}
