package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BloodType enum
type BloodType string

const (
	BloodAPositive  BloodType = "A+"
	BloodANegative  BloodType = "A-"
	BloodBPositive  BloodType = "B+"
	BloodBNegative  BloodType = "B-"
	BloodABPositive BloodType = "AB+"
	BloodABNegative BloodType = "AB-"
	BloodOPositive  BloodType = "O+"
	BloodONegative  BloodType = "O-"
)

// PatientProfile holds the medical profile of a patient
type PatientProfile struct {
	BaseModel
	UserID            string    `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	BloodType         BloodType `gorm:"size:3" json:"bloodType,omitempty"`
	Allergies         string    `gorm:"type:text" json:"allergies,omitempty"`
	Height            *float64  `json:"height,omitempty"` // cm
	Weight            *float64  `json:"weight,omitempty"` // kg
	MedicalHistory    string    `gorm:"type:text" json:"medicalHistory,omitempty"`
	ChronicConditions string    `gorm:"type:text" json:"chronicConditions,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// VerificationStatus is the admin-controlled approval gate of a doctor
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports whether s is one of the known verification statuses
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// AvailabilitySlot lists the start times a doctor offers on a weekday
type AvailabilitySlot struct {
	Day   string   `json:"day"`
	Times []string `json:"times"`
}

// DoctorProfile holds doctor credentials, fee and the verification gate
type DoctorProfile struct {
	BaseModel
	UserID             string                                 `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	VerificationStatus VerificationStatus                     `gorm:"size:11;not null;default:'pending';index" json:"verificationStatus"`
	LicenseNumber      string                                 `gorm:"size:50;uniqueIndex;not null" json:"licenseNumber"`
	Specialization     string                                 `gorm:"size:255;not null;index" json:"specialization"`
	ConsultationFee    decimal.Decimal                        `gorm:"type:decimal(8,2);not null" json:"consultationFee"`
	Availability       datatypes.JSONSlice[AvailabilitySlot] `json:"availability"`
	Description        string                                 `gorm:"type:text" json:"description,omitempty"`
	LicenseDocument    string                                 `gorm:"size:512" json:"licenseDocument,omitempty"`
	DegreeCertificate  string                                 `gorm:"size:512" json:"degreeCertificate,omitempty"`
	ProfilePhoto       string                                 `gorm:"size:512" json:"profilePhoto,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// IsApproved reports whether the doctor may be booked
func (p *DoctorProfile) IsApproved() bool {
	return p != nil && p.VerificationStatus == VerificationApproved
}
