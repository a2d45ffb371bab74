package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"telemed-server/internal/accounts"
	"telemed-server/internal/config"
	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	"telemed-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AccountService is what the account handlers need from accounts.Service
type AccountService interface {
	RegisterPatient(ctx context.Context, in accounts.RegisterPatientInput) (*models.User, error)
	RegisterDoctor(ctx context.Context, in accounts.RegisterDoctorInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*accounts.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*accounts.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	GetMe(ctx context.Context, actor models.Actor) (*models.User, error)
	UpdateMe(ctx context.Context, actor models.Actor, in accounts.UpdateUserInput) (*models.User, error)
}

// AuthHandler handles registration, tokens and the caller's own user record.
type AuthHandler struct {
	Accounts AccountService
	Cfg      *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AccountService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Accounts: svc, Cfg: cfg}
}

// UserRequest holds the fields shared by both registration forms.
type UserRequest struct {
	Email       string        `json:"email" binding:"required,email"`
	Password    string        `json:"password" binding:"required,min=8"`
	Password2   string        `json:"password2" binding:"required"`
	FirstName   string        `json:"firstName" binding:"required,max=150"`
	LastName    string        `json:"lastName" binding:"required,max=150"`
	Phone       string        `json:"phone" binding:"omitempty,phone"`
	Gender      models.Gender `json:"gender" binding:"omitempty,oneof=male female"`
	DateOfBirth *time.Time    `json:"dateOfBirth"`
	Address     string        `json:"address"`
}

func (r UserRequest) toInput() accounts.UserInput {
	return accounts.UserInput{
		Email:       r.Email,
		Password:    r.Password,
		Password2:   r.Password2,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Phone:       r.Phone,
		Gender:      r.Gender,
		DateOfBirth: r.DateOfBirth,
		Address:     r.Address,
	}
}

// RegisterPatientRequest represents the request body for patient registration.
type RegisterPatientRequest struct {
	UserRequest
	Profile PatientProfileRequest `json:"profile"`
}

// RegisterDoctorRequest represents the request body for doctor registration.
type RegisterDoctorRequest struct {
	UserRequest
	LicenseNumber   string                    `json:"licenseNumber" binding:"required,max=50"`
	Specialization  string                    `json:"specialization" binding:"required,max=255"`
	ConsultationFee decimal.Decimal           `json:"consultationFee"`
	Availability    []models.AvailabilitySlot `json:"availability"`
	Description     string                    `json:"description"`
}

// RegisterPatient handles patient registration.
func (h *AuthHandler) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.RegisterPatient(c.Request.Context(), accounts.RegisterPatientInput{
		UserInput: req.UserRequest.toInput(),
		Profile:   req.Profile.toInput(),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Created(c, "Patient registered successfully", user.Sanitize())
}

// RegisterDoctor handles doctor registration. New doctors wait for admin approval.
func (h *AuthHandler) RegisterDoctor(c *gin.Context) {
	var req RegisterDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.RegisterDoctor(c.Request.Context(), accounts.RegisterDoctorInput{
		UserInput:       req.UserRequest.toInput(),
		LicenseNumber:   req.LicenseNumber,
		Specialization:  req.Specialization,
		ConsultationFee: req.ConsultationFee,
		Availability:    req.Availability,
		Description:     req.Description,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Created(c, "Doctor registered successfully, pending verification", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	pair, user, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAccountError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates the refresh token, read from the HTTP-only cookie or the body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.Accounts.Refresh(c.Request.Context(), token)
	if err != nil {
		respondAccountError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req LogoutRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	if err := h.Accounts.Logout(c.Request.Context(), token); err != nil {
		utils.RespondError(c, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", h.Cfg.Environment != "development", true)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetMe returns the authenticated user's record.
func (h *AuthHandler) GetMe(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.Accounts.GetMe(c.Request.Context(), actor)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateMeRequest represents the request body for updating the caller's user record.
// Email cannot be changed.
type UpdateMeRequest struct {
	FirstName   *string        `json:"firstName" binding:"omitempty,min=1,max=150"`
	LastName    *string        `json:"lastName" binding:"omitempty,min=1,max=150"`
	Phone       *string        `json:"phone" binding:"omitempty,phone"`
	Gender      *models.Gender `json:"gender" binding:"omitempty,oneof=male female"`
	DateOfBirth *time.Time     `json:"dateOfBirth"`
	Address     *string        `json:"address"`
}

// UpdateMe applies a partial update to the authenticated user's record.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req UpdateMeRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.UpdateMe(c.Request.Context(), actor, accounts.UpdateUserInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		Address:     req.Address,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetCookie(
		refreshCookie,
		token,
		h.Cfg.JWTRefreshExpirationHours*60*60,
		"/",
		"",
		h.Cfg.Environment != "development", // Secure outside development
		true,
	)
}

// respondAccountError reports credential failures as 401 and everything else by kind
func respondAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials), errors.Is(err, accounts.ErrInvalidRefresh):
		utils.Unauthorized(c, err.Error())
	case errors.Is(err, accounts.ErrStorageDisabled):
		utils.Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		utils.RespondError(c, err)
	}
}

// currentActor reads the authenticated identity, answering 401 when it is missing
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
	}
	return actor, ok
}
