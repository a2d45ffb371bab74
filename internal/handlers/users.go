package handlers

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"telemed-server/internal/accounts"
	"telemed-server/internal/apperror"
	"telemed-server/internal/models"
	"telemed-server/internal/utils"
)

// ProfileService is what the profile and directory handlers need from accounts.Service
type ProfileService interface {
	GetPatientProfile(ctx context.Context, actor models.Actor) (*models.PatientProfile, error)
	UpdatePatientProfile(ctx context.Context, actor models.Actor, in accounts.PatientProfileInput) (*models.PatientProfile, error)
	GetDoctorProfile(ctx context.Context, actor models.Actor) (*models.DoctorProfile, error)
	UpdateDoctorProfile(ctx context.Context, actor models.Actor, in accounts.DoctorProfileInput) (*models.DoctorProfile, error)
	UploadDoctorDocument(ctx context.Context, actor models.Actor, kind, filename, contentType string, body io.Reader) (*models.DoctorProfile, error)
	ListApprovedDoctors(ctx context.Context, filter accounts.DoctorFilter) (*accounts.DoctorPage, error)
	GetApprovedDoctor(ctx context.Context, profileID string) (*models.DoctorProfile, error)
	SetVerificationStatus(ctx context.Context, actor models.Actor, profileID string, status models.VerificationStatus) (*models.DoctorProfile, error)
}

// UserHandler handles profile, doctor directory and admin verification requests.
type UserHandler struct {
	Profiles ProfileService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc ProfileService) *UserHandler {
	return &UserHandler{Profiles: svc}
}

// PatientProfileRequest is a partial update of a patient profile.
type PatientProfileRequest struct {
	BloodType         *models.BloodType `json:"bloodType" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies         *string           `json:"allergies"`
	Height            *float64          `json:"height" binding:"omitempty,gt=0"`
	Weight            *float64          `json:"weight" binding:"omitempty,gt=0"`
	MedicalHistory    *string           `json:"medicalHistory"`
	ChronicConditions *string           `json:"chronicConditions"`
}

func (r PatientProfileRequest) toInput() accounts.PatientProfileInput {
	return accounts.PatientProfileInput{
		BloodType:         r.BloodType,
		Allergies:         r.Allergies,
		Height:            r.Height,
		Weight:            r.Weight,
		MedicalHistory:    r.MedicalHistory,
		ChronicConditions: r.ChronicConditions,
	}
}

// DoctorProfileRequest is a partial update of a doctor profile. The
// verification status and license number are not part of it.
type DoctorProfileRequest struct {
	Specialization  *string                   `json:"specialization" binding:"omitempty,max=255"`
	ConsultationFee *decimal.Decimal          `json:"consultationFee"`
	Availability    []models.AvailabilitySlot `json:"availability"`
	Description     *string                   `json:"description"`
	ProfilePhoto    *string                   `json:"profilePhoto" binding:"omitempty,url"`
}

// DoctorResponse is a doctor as shown in the directory and on their own profile.
type DoctorResponse struct {
	ID                 string                    `json:"id"`
	UserID             string                    `json:"userId"`
	FirstName          string                    `json:"firstName"`
	LastName           string                    `json:"lastName"`
	Email              string                    `json:"email"`
	VerificationStatus models.VerificationStatus `json:"verificationStatus"`
	LicenseNumber      string                    `json:"licenseNumber"`
	Specialization     string                    `json:"specialization"`
	ConsultationFee    decimal.Decimal           `json:"consultationFee"`
	Availability       []models.AvailabilitySlot `json:"availability"`
	Description        string                    `json:"description,omitempty"`
	ProfilePhoto       string                    `json:"profilePhoto,omitempty"`
	LicenseDocument    string                    `json:"licenseDocument,omitempty"`
	DegreeCertificate  string                    `json:"degreeCertificate,omitempty"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
}

func newDoctorResponse(p models.DoctorProfile) DoctorResponse {
	resp := DoctorResponse{
		ID:                 p.ID,
		UserID:             p.UserID,
		VerificationStatus: p.VerificationStatus,
		LicenseNumber:      p.LicenseNumber,
		Specialization:     p.Specialization,
		ConsultationFee:    p.ConsultationFee,
		Availability:       p.Availability,
		Description:        p.Description,
		ProfilePhoto:       p.ProfilePhoto,
		LicenseDocument:    p.LicenseDocument,
		DegreeCertificate:  p.DegreeCertificate,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.User != nil {
		resp.FirstName = p.User.FirstName
		resp.LastName = p.User.LastName
		resp.Email = p.User.Email
	}
	return resp
}

// DoctorListResponse is one page of the doctor directory.
type DoctorListResponse struct {
	Count    int64            `json:"count"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Results  []DoctorResponse `json:"results"`
}

// GetPatientProfile returns the caller's patient profile.
func (h *UserHandler) GetPatientProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	profile, err := h.Profiles.GetPatientProfile(c.Request.Context(), actor)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Patient profile fetched successfully", profile)
}

// UpdatePatientProfile applies a partial update to the caller's patient profile.
func (h *UserHandler) UpdatePatientProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req PatientProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	profile, err := h.Profiles.UpdatePatientProfile(c.Request.Context(), actor, req.toInput())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Patient profile updated successfully", profile)
}

// GetDoctorProfile returns the caller's doctor profile, including its verification status.
func (h *UserHandler) GetDoctorProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	profile, err := h.Profiles.GetDoctorProfile(c.Request.Context(), actor)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Doctor profile fetched successfully", newDoctorResponse(*profile))
}

// UpdateDoctorProfile applies a partial update to the caller's doctor profile.
func (h *UserHandler) UpdateDoctorProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req DoctorProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	profile, err := h.Profiles.UpdateDoctorProfile(c.Request.Context(), actor, accounts.DoctorProfileInput{
		Specialization:  req.Specialization,
		ConsultationFee: req.ConsultationFee,
		Availability:    req.Availability,
		Description:     req.Description,
		ProfilePhoto:    req.ProfilePhoto,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Doctor profile updated successfully", newDoctorResponse(*profile))
}

// UploadDoctorDocument accepts a multipart upload with fields documentType and file.
func (h *UserHandler) UploadDoctorDocument(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondError(c, apperror.Validation("file", "this field is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.RespondError(c, apperror.Validation("file", "could not read upload"))
		return
	}
	defer file.Close()

	profile, err := h.Profiles.UploadDoctorDocument(
		c.Request.Context(),
		actor,
		c.PostForm("documentType"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		respondAccountError(c, err)
		return
	}

	utils.Success(c, "Document uploaded successfully", newDoctorResponse(*profile))
}

// ListDoctors returns approved doctors. Query parameters: page, page_size,
// specialization, search and ordering (consultation_fee or -consultation_fee).
func (h *UserHandler) ListDoctors(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	result, err := h.Profiles.ListApprovedDoctors(c.Request.Context(), accounts.DoctorFilter{
		Specialization: c.Query("specialization"),
		Search:         c.Query("search"),
		Ordering:       c.Query("ordering"),
		Page:           page,
		PageSize:       pageSize,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Doctors fetched successfully", DoctorListResponse{
		Count:    result.Count,
		Page:     result.Page,
		PageSize: result.PageSize,
		Results:  lo.Map(result.Results, func(p models.DoctorProfile, _ int) DoctorResponse { return newDoctorResponse(p) }),
	})
}

// GetDoctor returns one approved doctor by profile id.
func (h *UserHandler) GetDoctor(c *gin.Context) {
	profile, err := h.Profiles.GetApprovedDoctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Doctor fetched successfully", newDoctorResponse(*profile))
}

// VerifyDoctorRequest represents the request body for the admin verification toggle.
type VerifyDoctorRequest struct {
	VerificationStatus models.VerificationStatus `json:"verificationStatus" binding:"required,oneof=pending approved rejected"`
}

// VerifyDoctor sets a doctor's verification status (admin).
func (h *UserHandler) VerifyDoctor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req VerifyDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	profile, err := h.Profiles.SetVerificationStatus(c.Request.Context(), actor, c.Param("id"), req.VerificationStatus)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Doctor verification status updated", newDoctorResponse(*profile))
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.Validation(key, "must be a positive integer")
	}
	return n, nil
}
