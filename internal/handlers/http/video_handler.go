package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"robofabric/internal/core/domain"
	"robofabric/internal/core/ports"
	"robofabric/pkg/validation"
)

type VideoHandler struct {
	service ports.VideoService
	logger  *zap.SugaredLogger
}

func NewVideoHandler(service ports.VideoService, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{
		service: service,
		logger:  logger.Sugar().With("component", "video_handler"),
	}
}

func (h *VideoHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/video")
	{
		api.GET("/workspaces/:workspace_id/rooms", h.ListRooms)
		api.POST("/workspaces/:workspace_id/rooms", h.CreateRoom)
		api.GET("/workspaces/:workspace_id/rooms/:room_id", h.GetRoom)
		api.GET("/workspaces/:workspace_id/rooms/:room_id/state", h.GetRoomState)
		api.DELETE("/workspaces/:workspace_id/rooms/:room_id", h.DeleteRoom)
		api.POST("/workspaces/:workspace_id/rooms/:room_id/webrtc/signal", h.HandleSignal)

		api.GET("/status", h.Status)
		api.GET("/health", h.Health)
	}
}

func (h *VideoHandler) ListRooms(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))

	rooms := h.service.ListRooms(c.Request.Context(), workspaceID)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": workspaceID,
		"rooms":        rooms,
		"total":        len(rooms),
	})
}

func (h *VideoHandler) CreateRoom(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))

	var req struct {
		RoomID         string                 `json:"room_id"`
		Config         *domain.VideoConfig    `json:"config"`
		RecoveryConfig *domain.RecoveryConfig `json:"recovery_config"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}
	if req.RoomID != "" {
		if err := validation.ValidateRoomID(req.RoomID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	actualWorkspaceID, roomID, err := h.service.CreateRoom(
		c.Request.Context(), workspaceID, domain.RoomID(req.RoomID), req.Config, req.RecoveryConfig)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": actualWorkspaceID,
		"room_id":      roomID,
		"message":      fmt.Sprintf("Video room %s created successfully in workspace %s", roomID, actualWorkspaceID),
	})
}

func (h *VideoHandler) GetRoom(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))
	roomID := domain.RoomID(c.Param("room_id"))

	info, err := h.service.GetRoomInfo(c.Request.Context(), workspaceID, roomID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": workspaceID,
		"room":         info,
	})
}

func (h *VideoHandler) GetRoomState(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))
	roomID := domain.RoomID(c.Param("room_id"))

	state, err := h.service.GetRoomState(c.Request.Context(), workspaceID, roomID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": workspaceID,
		"state":        state,
	})
}

func (h *VideoHandler) DeleteRoom(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))
	roomID := domain.RoomID(c.Param("room_id"))

	if !h.service.DeleteRoom(c.Request.Context(), workspaceID, roomID) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": workspaceID,
		"message":      fmt.Sprintf("Room %s deleted successfully from workspace %s", roomID, workspaceID),
	})
}

// HandleSignal accepts a WebRTC offer/answer/ICE submission and relays it
// to the targeted peer's session.
func (h *VideoHandler) HandleSignal(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))
	roomID := domain.RoomID(c.Param("room_id"))

	var req domain.SignalRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.ClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "client_id is required"})
		return
	}

	result, err := h.service.HandleSignal(c.Request.Context(), workspaceID, roomID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": workspaceID,
		"response": gin.H{
			"success": true,
			"message": result,
		},
	})
}

func (h *VideoHandler) Status(c *gin.Context) {
	stats := h.service.Stats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"service":             "video",
		"status":              "active",
		"workspaces_count":    stats.Workspaces,
		"rooms_count":         stats.Rooms,
		"connections_count":   stats.Connections,
		"connections_by_role": stats.ByRole,
		"active_connections":  stats.Active,
		"version":             Version,
		"supported_roles":     []domain.ParticipantRole{domain.RoleProducer, domain.RoleConsumer},
		"supported_encodings": domain.Encodings(),
		"recovery_policies":   domain.RecoveryPolicies(),
	})
}

func (h *VideoHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "video"})
}

func (h *VideoHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Room not found"})
	case errors.Is(err, domain.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Room already exists"})
	case errors.Is(err, domain.ErrPeerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Target peer not found"})
	case errors.Is(err, domain.ErrNotAMember):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "client_id is not a member of this room"})
	case errors.Is(err, domain.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "signaling direction does not match sender role"})
	case errors.Is(err, domain.ErrUnknownMessageType):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown signaling message type"})
	default:
		h.logger.Errorw("request failed",
			"path", c.Request.URL.Path, "method", c.Request.Method, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}
