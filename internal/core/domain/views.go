package domain

import (
	"encoding/json"
	"time"
)

// RoboticsRoomInfo is the shallow room view (no joint map).
type RoboticsRoomInfo struct {
	ID              RoomID             `json:"id"`
	WorkspaceID     WorkspaceID        `json:"workspace_id"`
	Participants    ParticipantSummary `json:"participants"`
	JointsCount     int                `json:"joints_count"`
	HasProducer     bool               `json:"has_producer"`
	ActiveConsumers int                `json:"active_consumers"`
}

// RoboticsRoomState is the authoritative snapshot served over REST.
type RoboticsRoomState struct {
	RoomID       RoomID             `json:"room_id"`
	WorkspaceID  WorkspaceID        `json:"workspace_id"`
	Joints       map[string]float64 `json:"joints"`
	Participants ParticipantSummary `json:"participants"`
	Timestamp    string             `json:"timestamp"`
}

// VideoRoomInfo is the shallow video room view.
type VideoRoomInfo struct {
	ID              RoomID             `json:"id"`
	WorkspaceID     WorkspaceID        `json:"workspace_id"`
	Participants    ParticipantSummary `json:"participants"`
	FrameCount      int64              `json:"frame_count"`
	Config          VideoConfig        `json:"config"`
	HasProducer     bool               `json:"has_producer"`
	ActiveConsumers int                `json:"active_consumers"`
}

// VideoRoomState is the full video room snapshot including telemetry.
type VideoRoomState struct {
	RoomID         RoomID             `json:"room_id"`
	WorkspaceID    WorkspaceID        `json:"workspace_id"`
	Participants   ParticipantSummary `json:"participants"`
	FrameCount     int64              `json:"frame_count"`
	TotalBytes     int64              `json:"total_bytes"`
	LastFrameAt    *time.Time         `json:"last_frame_time"`
	CurrentConfig  VideoConfig        `json:"current_config"`
	RecoveryConfig RecoveryConfig     `json:"recovery_config"`
	Timestamp      string             `json:"timestamp"`
}

// SignalKind tags the raw signaling payload submitted over REST.
type SignalKind string

const (
	SignalOffer  SignalKind = "offer"
	SignalAnswer SignalKind = "answer"
	SignalIce    SignalKind = "ice"
)

// SignalPayload is the opaque client signaling message. The fabric reads
// only the routing fields; SDP and candidates pass through untouched.
type SignalPayload struct {
	Type           SignalKind      `json:"type"`
	SDP            string          `json:"sdp,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
	TargetConsumer ParticipantID   `json:"target_consumer,omitempty"`
	TargetProducer ParticipantID   `json:"target_producer,omitempty"`
}

// SignalRequest is the REST signaling submission body.
type SignalRequest struct {
	ClientID ParticipantID `json:"client_id"`
	Message  SignalPayload `json:"message"`
}

// ConnectionInfo describes one live session for the status endpoints.
type ConnectionInfo struct {
	ParticipantID ParticipantID   `json:"participant_id"`
	WorkspaceID   WorkspaceID     `json:"workspace_id"`
	RoomID        RoomID          `json:"room_id"`
	Role          ParticipantRole `json:"role"`
	ConnectedAt   time.Time       `json:"connected_at"`
	LastActivity  time.Time       `json:"last_activity"`
	MessageCount  int64           `json:"message_count"`
}

// ServiceStats aggregates registry and connection counters per protocol.
type ServiceStats struct {
	Workspaces  int              `json:"workspaces_count"`
	Rooms       int              `json:"rooms_count"`
	Connections int              `json:"connections_count"`
	ByRole      map[string]int   `json:"connections_by_role"`
	Active      []ConnectionInfo `json:"active_connections"`
}
