package ports

import (
	"context"

	"robofabric/internal/core/domain"
)

// Session is one participant's bidirectional channel into the fabric. Send
// enqueues onto the session's bounded outbound queue and never blocks on
// the socket; Close is idempotent.
type Session interface {
	ID() domain.ParticipantID
	Role() domain.ParticipantRole
	WorkspaceID() domain.WorkspaceID
	RoomID() domain.RoomID
	Send(msg domain.Message) error
	Close()
}

// MetricsRecorder receives routing telemetry. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	RoomCreated(protocol domain.Protocol)
	RoomDeleted(protocol domain.Protocol)
	ParticipantJoined(protocol domain.Protocol, role domain.ParticipantRole)
	ParticipantLeft(protocol domain.Protocol, role domain.ParticipantRole)
	MessageRouted(protocol domain.Protocol, msgType domain.MessageType, fanout int)
	BackpressureDrop(protocol domain.Protocol)
	SignalRelayed(kind domain.SignalKind)
}

// RoboticsService is the robotics room state machine and router.
type RoboticsService interface {
	CreateRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.WorkspaceID, domain.RoomID, error)
	ListRooms(ctx context.Context, workspaceID domain.WorkspaceID) []domain.RoboticsRoomInfo
	GetRoomInfo(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.RoboticsRoomInfo, error)
	GetRoomState(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.RoboticsRoomState, error)
	DeleteRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool
	SendCommand(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, joints []domain.JointUpdate) (int, error)

	Join(ctx context.Context, sess Session) error
	Leave(sess Session)
	HandleMessage(ctx context.Context, sess Session, msg domain.Message)

	Stats(ctx context.Context) domain.ServiceStats
	Shutdown()
}

// VideoService is the video room state machine, router and signaling broker.
type VideoService interface {
	CreateRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, config *domain.VideoConfig, recovery *domain.RecoveryConfig) (domain.WorkspaceID, domain.RoomID, error)
	ListRooms(ctx context.Context, workspaceID domain.WorkspaceID) []domain.VideoRoomInfo
	GetRoomInfo(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.VideoRoomInfo, error)
	GetRoomState(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.VideoRoomState, error)
	DeleteRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool
	HandleSignal(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, req domain.SignalRequest) (string, error)

	Join(ctx context.Context, sess Session) error
	Leave(sess Session)
	HandleMessage(ctx context.Context, sess Session, msg domain.Message)

	Stats(ctx context.Context) domain.ServiceStats
	Shutdown()
}
