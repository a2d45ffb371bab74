package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/models"
	"telemed-server/internal/utils"
	"telemed-server/internal/video"
)

// VideoRoomService is what the room handlers need from video.Service
type VideoRoomService interface {
	CreateRoom(ctx context.Context, actor models.Actor, appointmentID string) (*models.VideoRoom, bool, error)
	GetRoom(ctx context.Context, actor models.Actor, name string) (*models.VideoRoom, error)
}

// VideoRoomHandler handles video room requests.
type VideoRoomHandler struct {
	Rooms VideoRoomService
}

func NewVideoRoomHandler(svc VideoRoomService) *VideoRoomHandler {
	return &VideoRoomHandler{Rooms: svc}
}

// CreateRoom provisions the appointment's room, or returns the one it already has.
func (h *VideoRoomHandler) CreateRoom(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	room, created, err := h.Rooms.CreateRoom(c.Request.Context(), actor, c.Param("appointment_id"))
	if err != nil {
		respondVideoError(c, err)
		return
	}

	if !created {
		utils.Success(c, "Room already exists", room)
		return
	}
	utils.Created(c, "Video room created successfully", room)
}

// GetRoom returns an active room by name to a participant of its appointment.
func (h *VideoRoomHandler) GetRoom(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	room, err := h.Rooms.GetRoom(c.Request.Context(), actor, c.Param("room_name"))
	if err != nil {
		respondVideoError(c, err)
		return
	}

	utils.Success(c, "Video room fetched successfully", room)
}

func respondVideoError(c *gin.Context, err error) {
	var providerErr *video.ProviderError
	switch {
	case errors.Is(err, video.ErrVideoDisabled):
		utils.Error(c, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &providerErr):
		_ = c.Error(err)
		utils.Error(c, http.StatusBadGateway, "video provider rejected the request")
	default:
		utils.RespondError(c, err)
	}
}
