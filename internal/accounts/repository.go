package accounts

import (
	"context"

	"telemed-server/internal/apperror"
	"telemed-server/internal/models"
)

var (
	ErrUserNotFound          = apperror.NotFound("user not found")
	ErrDoctorProfileNotFound = apperror.NotFound("doctor profile not found")
	ErrPatientProfileMissing = apperror.NotFound("patient profile not found")
	ErrRefreshTokenNotFound  = apperror.NotFound("refresh token not found")
)

// Doctor directory ordering values
const (
	OrderFeeAsc  = "consultation_fee"
	OrderFeeDesc = "-consultation_fee"
)

// DoctorFilter narrows the approved doctor directory
type DoctorFilter struct {
	Specialization string
	Search         string // matched against first and last name
	Ordering       string
	Page           int
	PageSize       int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	EmailExists(ctx context.Context, email string) (bool, error)
	LicenseExists(ctx context.Context, licenseNumber string) (bool, error)

	// CreateUser inserts the user together with a non-nil profile association
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID preloads both profile associations
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	SavePatientProfile(ctx context.Context, profile *models.PatientProfile) error
	SaveDoctorProfile(ctx context.Context, profile *models.DoctorProfile) error
	GetDoctorProfile(ctx context.Context, id string) (*models.DoctorProfile, error)
	UpdateVerificationStatus(ctx context.Context, profileID string, status models.VerificationStatus) error
	ListApprovedDoctors(ctx context.Context, filter DoctorFilter) ([]models.DoctorProfile, int64, error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
}
