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

// Version reported by the service status endpoints.
const Version = "2.0.0"

type RoboticsHandler struct {
	service ports.RoboticsService
	logger  *zap.SugaredLogger
}

func NewRoboticsHandler(service ports.RoboticsService, logger *zap.Logger) *RoboticsHandler {
	return &RoboticsHandler{
		service: service,
		logger:  logger.Sugar().With("component", "robotics_handler"),
	}
}

func (h *RoboticsHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/robotics")
	{
		api.GET("/workspaces/:workspace_id/rooms", h.ListRooms)
		api.POST("/workspaces/:workspace_id/rooms", h.CreateRoom)
		api.GET("/workspaces/:workspace_id/rooms/:room_id", h.GetRoom)
		api.GET("/workspaces/:workspace_id/rooms/:room_id/state", h.GetRoomState)
		api.DELETE("/workspaces/:workspace_id/rooms/:room_id", h.DeleteRoom)
		api.POST("/workspaces/:workspace_id/rooms/:room_id/command", h.SendCommand)

		api.GET("/status", h.Status)
		api.GET("/health", h.Health)
	}
}

func (h *RoboticsHandler) ListRooms(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))

	rooms := h.service.ListRooms(c.Request.Context(), workspaceID)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": workspaceID,
		"rooms":        rooms,
		"total":        len(rooms),
	})
}

func (h *RoboticsHandler) CreateRoom(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))

	var req struct {
		RoomID string `json:"room_id"`
	}
	// The body is optional; an empty one gets a generated room id.
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

	actualWorkspaceID, roomID, err := h.service.CreateRoom(c.Request.Context(), workspaceID, domain.RoomID(req.RoomID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": actualWorkspaceID,
		"room_id":      roomID,
		"message":      fmt.Sprintf("Room %s created successfully in workspace %s", roomID, actualWorkspaceID),
	})
}

func (h *RoboticsHandler) GetRoom(c *gin.Context) {
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

func (h *RoboticsHandler) GetRoomState(c *gin.Context) {
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

func (h *RoboticsHandler) DeleteRoom(c *gin.Context) {
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

// SendCommand injects joint updates into a room from the REST surface.
func (h *RoboticsHandler) SendCommand(c *gin.Context) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))
	roomID := domain.RoomID(c.Param("room_id"))

	var req struct {
		Joints []domain.JointUpdate `json:"joints" binding:"required,min=1,max=20"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	for _, j := range req.Joints {
		if err := validation.ValidateJointName(j.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	changed, err := h.service.SendCommand(c.Request.Context(), workspaceID, roomID, req.Joints)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"workspace_id":   workspaceID,
		"room_id":        roomID,
		"joints_updated": changed,
		"message":        "Commands sent successfully",
	})
}

func (h *RoboticsHandler) Status(c *gin.Context) {
	stats := h.service.Stats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"service":           "robotics",
		"status":            "active",
		"workspaces_count":  stats.Workspaces,
		"rooms_count":       stats.Rooms,
		"connections_count": stats.Connections,
		"connections_by_role": stats.ByRole,
		"active_connections":  stats.Active,
		"version":           Version,
		"supported_roles":   []domain.ParticipantRole{domain.RoleProducer, domain.RoleConsumer},
	})
}

func (h *RoboticsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "robotics"})
}

func (h *RoboticsHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Room not found"})
	case errors.Is(err, domain.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Room already exists"})
	case errors.Is(err, domain.ErrProducerExists):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Room already has a producer"})
	default:
		h.logger.Errorw("request failed",
			"path", c.Request.URL.Path, "method", c.Request.Method, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}
