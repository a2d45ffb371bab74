// Package accounts owns user identities, their patient and doctor profiles,
// issued tokens and the doctor verification gate.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"telemed-server/internal/apperror"
	"telemed-server/internal/config"
	"telemed-server/internal/logger"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
	"telemed-server/internal/storage"
	"telemed-server/internal/utils"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	DocumentLicense = "license_document"
	DocumentDegree  = "degree_certificate"
)

var (
	// ErrInvalidCredentials is reported for unknown emails and wrong passwords alike
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRefresh     = errors.New("refresh token not found, expired, or revoked")
	ErrStorageDisabled    = errors.New("document storage is not configured")

	ErrEmailTaken            = apperror.Validation("email", "user with this email already exists")
	ErrLicenseTaken          = apperror.Validation("license_number", "doctor with this license number already exists")
	ErrPasswordMismatch      = apperror.Validation("password2", "password fields didn't match")
	ErrInvalidVerification   = apperror.Validation("verification_status", "invalid verification status")
	ErrAdminOnly             = apperror.Authorization("only admins can change doctor verification")
	ErrPatientsOnly          = apperror.Authorization("only patients have a patient profile")
	ErrDoctorsOnly           = apperror.Authorization("only doctors have a doctor profile")
	ErrDoctorNotFound        = apperror.NotFound("doctor not found")
	ErrUnsupportedDocument   = apperror.Validation("document_type", "must be license_document or degree_certificate")
	ErrUnsupportedFileFormat = apperror.Validation("file", "only pdf, jpg, jpeg and png files are accepted")
)

var allowedDocumentExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// UserInput carries the fields shared by both registration forms
type UserInput struct {
	Email       string
	Password    string
	Password2   string
	FirstName   string
	LastName    string
	Phone       string
	Gender      models.Gender
	DateOfBirth *time.Time
	Address     string
}

type RegisterPatientInput struct {
	UserInput
	Profile PatientProfileInput
}

type RegisterDoctorInput struct {
	UserInput
	LicenseNumber   string
	Specialization  string
	ConsultationFee decimal.Decimal
	Availability    []models.AvailabilitySlot
	Description     string
}

// UpdateUserInput holds optional changes to the caller's own user record.
// Email is not updatable.
type UpdateUserInput struct {
	FirstName   *string
	LastName    *string
	Phone       *string
	Gender      *models.Gender
	DateOfBirth *time.Time
	Address     *string
}

type PatientProfileInput struct {
	BloodType         *models.BloodType
	Allergies         *string
	Height            *float64
	Weight            *float64
	MedicalHistory    *string
	ChronicConditions *string
}

// DoctorProfileInput holds optional changes a doctor may make to their own
// profile. Verification status and license number are not among them.
type DoctorProfileInput struct {
	Specialization  *string
	ConsultationFee *decimal.Decimal
	Availability    []models.AvailabilitySlot
	Description     *string
	ProfilePhoto    *string
}

// TokenPair is the result of a login or refresh
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// DoctorPage is one page of the doctor directory
type DoctorPage struct {
	Count    int64
	Page     int
	PageSize int
	Results  []models.DoctorProfile
}

type Service struct {
	repo  Repository
	store storage.Store
	cfg   *config.Config
	log   *logger.Logger
	now   func() time.Time
}

// NewService wires the account service. store may be nil, which disables
// document upload.
func NewService(repo Repository, store storage.Store, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		store: store,
		cfg:   cfg,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RegisterPatient creates a patient user and their medical profile
func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*models.User, error) {
	profile := &models.PatientProfile{}
	applyPatientProfile(profile, in.Profile)

	return s.register(ctx, in.UserInput, models.RolePatient, func(_ context.Context, _ Repository, user *models.User) error {
		user.PatientProfile = profile
		return nil
	})
}

// RegisterDoctor creates a doctor user with a pending verification status
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*models.User, error) {
	if strings.TrimSpace(in.LicenseNumber) == "" {
		return nil, apperror.Validation("license_number", "this field is required")
	}
	if strings.TrimSpace(in.Specialization) == "" {
		return nil, apperror.Validation("specialization", "this field is required")
	}
	if in.ConsultationFee.IsNegative() {
		return nil, apperror.Validation("consultation_fee", "must not be negative")
	}

	return s.register(ctx, in.UserInput, models.RoleDoctor, func(ctx context.Context, tx Repository, user *models.User) error {
		taken, err := tx.LicenseExists(ctx, in.LicenseNumber)
		if err != nil {
			return err
		}
		if taken {
			return ErrLicenseTaken
		}
		user.DoctorProfile = &models.DoctorProfile{
			VerificationStatus: models.VerificationPending,
			LicenseNumber:      in.LicenseNumber,
			Specialization:     in.Specialization,
			ConsultationFee:    in.ConsultationFee.Round(2),
			Availability:       in.Availability,
			Description:        in.Description,
		}
		return nil
	})
}

func (s *Service) register(ctx context.Context, in UserInput, role models.Role, attachProfile func(context.Context, Repository, *models.User) error) (*models.User, error) {
	if in.Password != in.Password2 {
		return nil, ErrPasswordMismatch
	}
	if len(in.Password) < 8 {
		return nil, apperror.Validation("password", "must be at least 8 characters")
	}

	user := &models.User{
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Phone:       in.Phone,
		Gender:      lo.Ternary(in.Gender == "", models.GenderMale, in.Gender),
		DateOfBirth: in.DateOfBirth,
		Address:     in.Address,
		Role:        role,
		IsActive:    true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		taken, err := tx.EmailExists(ctx, user.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if err := attachProfile(ctx, tx, user); err != nil {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if models.IsUniqueViolation(err) {
		return nil, apperror.Conflict("account already exists").WithCause(err)
	}
	if err != nil {
		return nil, err
	}

	s.log.Audit(user.ID, "account.register", "user:"+user.ID, true, map[string]interface{}{
		"role": role,
	})
	return user, nil
}

// Login checks credentials and issues a fresh token pair
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		metrics.RecordAuthAttempt("password", "failure")
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive || !user.CheckPassword(password) {
		metrics.RecordAuthAttempt("password", "failure")
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, s.repo, user)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordAuthAttempt("password", "success")
	return pair, user, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		metrics.RecordAuthAttempt("refresh", "failure")
		return nil, ErrInvalidRefresh
	}

	var pair *TokenPair
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		stored, err := tx.GetRefreshToken(ctx, refreshToken)
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return ErrInvalidRefresh
		}
		if err != nil {
			return err
		}
		if stored.UserID != claims.UserID || !stored.Usable(s.now()) {
			return ErrInvalidRefresh
		}

		user, err := tx.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return err
		}
		if err := tx.RevokeRefreshToken(ctx, stored.ID); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		metrics.RecordAuthAttempt("refresh", "failure")
		return nil, err
	}
	metrics.RecordAuthAttempt("refresh", "success")
	return pair, nil
}

// Logout revokes the refresh token. Unknown or already revoked tokens are not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if errors.Is(err, ErrRefreshTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.IsRevoked {
		return nil
	}
	return s.repo.RevokeRefreshToken(ctx, stored.ID)
}

func (s *Service) issueTokens(ctx context.Context, repo Repository, user *models.User) (*TokenPair, error) {
	access, refresh, err := utils.GenerateTokens(user, s.cfg)
	if err != nil {
		return nil, err
	}
	err = repo.CreateRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: s.now().Add(utils.RefreshTokenTTL(s.cfg)),
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GetMe returns the caller's user record with profiles preloaded
func (s *Service) GetMe(ctx context.Context, actor models.Actor) (*models.User, error) {
	return s.repo.GetUserByID(ctx, actor.UserID)
}

// UpdateMe applies the non-nil fields of in to the caller's user record
func (s *Service) UpdateMe(ctx context.Context, actor models.Actor, in UpdateUserInput) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Gender != nil {
		user.Gender = *in.Gender
	}
	if in.DateOfBirth != nil {
		user.DateOfBirth = in.DateOfBirth
	}
	if in.Address != nil {
		user.Address = *in.Address
	}

	if err := s.repo.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetPatientProfile returns the caller's own patient profile
func (s *Service) GetPatientProfile(ctx context.Context, actor models.Actor) (*models.PatientProfile, error) {
	if !actor.IsPatient() {
		return nil, ErrPatientsOnly
	}
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user.PatientProfile == nil {
		return nil, ErrPatientProfileMissing
	}
	return user.PatientProfile, nil
}

// UpdatePatientProfile applies the non-nil fields of in to the caller's patient profile
func (s *Service) UpdatePatientProfile(ctx context.Context, actor models.Actor, in PatientProfileInput) (*models.PatientProfile, error) {
	profile, err := s.GetPatientProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	applyPatientProfile(profile, in)
	if err := s.repo.SavePatientProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func applyPatientProfile(p *models.PatientProfile, in PatientProfileInput) {
	if in.BloodType != nil {
		p.BloodType = *in.BloodType
	}
	if in.Allergies != nil {
		p.Allergies = *in.Allergies
	}
	if in.Height != nil {
		p.Height = in.Height
	}
	if in.Weight != nil {
		p.Weight = in.Weight
	}
	if in.MedicalHistory != nil {
		p.MedicalHistory = *in.MedicalHistory
	}
	if in.ChronicConditions != nil {
		p.ChronicConditions = *in.ChronicConditions
	}
}

// GetDoctorProfile returns the caller's own doctor profile
func (s *Service) GetDoctorProfile(ctx context.Context, actor models.Actor) (*models.DoctorProfile, error) {
	if !actor.IsDoctor() {
		return nil, ErrDoctorsOnly
	}
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user.DoctorProfile == nil {
		return nil, ErrDoctorProfileNotFound
	}
	user.DoctorProfile.User = user
	return user.DoctorProfile, nil
}

// UpdateDoctorProfile applies the non-nil fields of in to the caller's doctor profile
func (s *Service) UpdateDoctorProfile(ctx context.Context, actor models.Actor, in DoctorProfileInput) (*models.DoctorProfile, error) {
	profile, err := s.GetDoctorProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	if in.Specialization != nil {
		if strings.TrimSpace(*in.Specialization) == "" {
			return nil, apperror.Validation("specialization", "this field may not be blank")
		}
		profile.Specialization = *in.Specialization
	}
	if in.ConsultationFee != nil {
		if in.ConsultationFee.IsNegative() {
			return nil, apperror.Validation("consultation_fee", "must not be negative")
		}
		profile.ConsultationFee = in.ConsultationFee.Round(2)
	}
	if in.Availability != nil {
		profile.Availability = in.Availability
	}
	if in.Description != nil {
		profile.Description = *in.Description
	}
	if in.ProfilePhoto != nil {
		profile.ProfilePhoto = *in.ProfilePhoto
	}

	if err := s.repo.SaveDoctorProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UploadDoctorDocument stores a license or degree document and records its key
func (s *Service) UploadDoctorDocument(ctx context.Context, actor models.Actor, kind, filename, contentType string, body io.Reader) (*models.DoctorProfile, error) {
	if kind != DocumentLicense && kind != DocumentDegree {
		return nil, ErrUnsupportedDocument
	}
	if !lo.Contains(allowedDocumentExtensions, strings.ToLower(path.Ext(filename))) {
		return nil, ErrUnsupportedFileFormat
	}
	if s.store == nil {
		return nil, ErrStorageDisabled
	}

	profile, err := s.GetDoctorProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	key := storage.DocumentKey(actor.UserID, kind, filename)
	if err := s.store.Put(ctx, key, contentType, body); err != nil {
		return nil, err
	}

	if kind == DocumentLicense {
		profile.LicenseDocument = key
	} else {
		profile.DegreeCertificate = key
	}
	if err := s.repo.SaveDoctorProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.log.Audit(actor.UserID, "doctor.document_upload", "doctor_profile:"+profile.ID, true, map[string]interface{}{
		"document_type": kind,
		"key":           key,
	})
	return profile, nil
}

// ListApprovedDoctors returns one page of the public doctor directory
func (s *Service) ListApprovedDoctors(ctx context.Context, filter DoctorFilter) (*DoctorPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	if filter.Ordering != "" && filter.Ordering != OrderFeeAsc && filter.Ordering != OrderFeeDesc {
		return nil, apperror.Validation("ordering", "must be consultation_fee or -consultation_fee")
	}

	profiles, total, err := s.repo.ListApprovedDoctors(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DoctorPage{
		Count:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Results:  profiles,
	}, nil
}

// GetApprovedDoctor returns a directory entry. Doctors that are not approved
// are reported as not found.
func (s *Service) GetApprovedDoctor(ctx context.Context, profileID string) (*models.DoctorProfile, error) {
	profile, err := s.repo.GetDoctorProfile(ctx, profileID)
	if errors.Is(err, ErrDoctorProfileNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	if !profile.IsApproved() {
		return nil, ErrDoctorNotFound
	}
	return profile, nil
}

// SetVerificationStatus is the admin-only approval gate. It does not touch
// existing appointments; approval is only consulted when booking.
func (s *Service) SetVerificationStatus(ctx context.Context, actor models.Actor, profileID string, status models.VerificationStatus) (*models.DoctorProfile, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if !status.Valid() {
		return nil, ErrInvalidVerification
	}

	profile, err := s.repo.GetDoctorProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateVerificationStatus(ctx, profileID, status); err != nil {
		return nil, err
	}
	profile.VerificationStatus = status

	s.log.Audit(actor.UserID, "doctor.verify", "doctor_profile:"+profileID, true, map[string]interface{}{
		"status": status,
	})
	return profile, nil
}
