package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/models"
	"telemed-server/internal/scheduling"
	"telemed-server/internal/utils"
)

// AppointmentService is what the appointment handlers need from scheduling.Service
type AppointmentService interface {
	CreateAppointment(ctx context.Context, actor models.Actor, in scheduling.CreateAppointmentInput) (*models.Appointment, error)
	CancelAppointment(ctx context.Context, actor models.Actor, id string, reason *string) (*models.Appointment, error)
	CompleteAppointment(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
	MarkNoShow(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
	TransitionAppointment(ctx context.Context, actor models.Actor, id string, target models.AppointmentStatus, reason *string) (*models.Appointment, error)
	GetAppointment(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
	ListUpcoming(ctx context.Context, actor models.Actor) ([]models.Appointment, error)
	CreateSessionRecord(ctx context.Context, actor models.Actor, appointmentID string, in scheduling.SessionRecordInput) (*models.SessionRecord, error)
}

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Scheduler AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{Scheduler: svc}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// The patient is always the authenticated user.
type CreateAppointmentRequest struct {
	DoctorID      string    `json:"doctorId" binding:"required,uuid"`
	ScheduledTime time.Time `json:"scheduledTime" binding:"required"`
	Duration      int       `json:"duration" binding:"omitempty,min=1"` // minutes
	Reason        string    `json:"reason"`
}

// CreateAppointment books an appointment for the authenticated patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Scheduler.CreateAppointment(c.Request.Context(), actor, scheduling.CreateAppointmentInput{
		DoctorID:      req.DoctorID,
		ScheduledTime: req.ScheduledTime,
		Duration:      req.Duration,
		Reason:        req.Reason,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Created(c, "Appointment created successfully", appt)
}

// GetUpcomingAppointments returns the caller's future scheduled appointments, soonest first.
func (h *AppointmentHandler) GetUpcomingAppointments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	appts, err := h.Scheduler.ListUpcoming(c.Request.Context(), actor)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Appointments fetched successfully", appts)
}

// GetAppointmentByID returns a single appointment to one of its participants or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	appt, err := h.Scheduler.GetAppointment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Appointment fetched successfully", appt)
}

// CancelAppointmentRequest is the optional body of a cancellation.
type CancelAppointmentRequest struct {
	Reason *string `json:"reason"`
}

// CancelAppointment cancels a scheduled appointment.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CancelAppointmentRequest
	if !utils.BindOptionalJSON(c, &req) {
		return
	}

	appt, err := h.Scheduler.CancelAppointment(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Appointment cancelled successfully", appt)
}

// CompleteAppointment marks a scheduled appointment as completed.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	appt, err := h.Scheduler.CompleteAppointment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Appointment completed successfully", appt)
}

// MarkNoShow records that the patient did not attend.
func (h *AppointmentHandler) MarkNoShow(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	appt, err := h.Scheduler.MarkNoShow(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Appointment marked as no-show", appt)
}

// UpdateAppointmentStatusRequest represents the request body for a generic status change.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required"`
	Reason *string                  `json:"reason"`
}

// UpdateAppointmentStatus moves an appointment to the requested status when the
// transition is allowed. A refused transition answers 409 with the allowed next states.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Scheduler.TransitionAppointment(c.Request.Context(), actor, c.Param("id"), req.Status, req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Appointment status updated successfully", appt)
}
