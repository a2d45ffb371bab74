package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telemed-server/internal/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns a Repository backed by db
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return count > 0, nil
}

func (r *gormRepository) LicenseExists(ctx context.Context, licenseNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DoctorProfile{}).Where("license_number = ?", licenseNumber).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count doctor profiles by license: %w", err)
	}
	return count > 0, nil
}

func (r *gormRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *gormRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

func (r *gormRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("PatientProfile").
		Preload("DoctorProfile").
		First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *gormRepository) SaveUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *gormRepository) SavePatientProfile(ctx context.Context, profile *models.PatientProfile) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(profile).Error; err != nil {
		return fmt.Errorf("save patient profile: %w", err)
	}
	return nil
}

func (r *gormRepository) SaveDoctorProfile(ctx context.Context, profile *models.DoctorProfile) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(profile).Error; err != nil {
		return fmt.Errorf("save doctor profile: %w", err)
	}
	return nil
}

func (r *gormRepository) GetDoctorProfile(ctx context.Context, id string) (*models.DoctorProfile, error) {
	var profile models.DoctorProfile
	err := r.db.WithContext(ctx).Preload("User").First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDoctorProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor profile: %w", err)
	}
	return &profile, nil
}

func (r *gormRepository) UpdateVerificationStatus(ctx context.Context, profileID string, status models.VerificationStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.DoctorProfile{}).
		Where("id = ?", profileID).
		Updates(map[string]interface{}{"verification_status": status})
	if res.Error != nil {
		return fmt.Errorf("update verification status: %w", res.Error)
	}
	return nil
}

func (r *gormRepository) ListApprovedDoctors(ctx context.Context, filter DoctorFilter) ([]models.DoctorProfile, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.DoctorProfile{}).
		Joins("JOIN users ON users.id = doctor_profiles.user_id").
		Where("doctor_profiles.verification_status = ?", models.VerificationApproved).
		Where("users.is_active = ?", true)

	if filter.Specialization != "" {
		q = q.Where("doctor_profiles.specialization = ?", filter.Specialization)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?", like, like)
	}

	// new session so Count and Find each build their own statement
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count approved doctors: %w", err)
	}

	switch filter.Ordering {
	case OrderFeeAsc:
		q = q.Order("doctor_profiles.consultation_fee ASC")
	case OrderFeeDesc:
		q = q.Order("doctor_profiles.consultation_fee DESC")
	default:
		q = q.Order("users.last_name ASC").Order("users.first_name ASC")
	}

	var profiles []models.DoctorProfile
	err := q.Preload("User").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&profiles).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list approved doctors: %w", err)
	}
	return profiles, total, nil
}

func (r *gormRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(token).Error; err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *gormRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &stored, nil
}

func (r *gormRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
