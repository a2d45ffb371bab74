package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/scheduling"
	"telemed-server/internal/utils"
)

// SessionRecordRequest represents the request body for a session record.
// The start time is set by the server.
type SessionRecordRequest struct {
	EndTime      *time.Time `json:"endTime"`
	Notes        string     `json:"notes"`
	Prescription string     `json:"prescription"`
	Diagnosis    string     `json:"diagnosis"`
	Treatment    string     `json:"treatment"`
}

// CreateSessionRecord attaches the clinical record to a completed appointment.
// Only the appointment's doctor may call it, once.
func (h *AppointmentHandler) CreateSessionRecord(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req SessionRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	rec, err := h.Scheduler.CreateSessionRecord(c.Request.Context(), actor, c.Param("id"), scheduling.SessionRecordInput{
		EndTime:      req.EndTime,
		Notes:        req.Notes,
		Prescription: req.Prescription,
		Diagnosis:    req.Diagnosis,
		Treatment:    req.Treatment,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Created(c, "Session record created successfully", rec)
}
