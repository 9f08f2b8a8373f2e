package ports

import (
	"context"

	"robofabric/internal/core/domain"
)

// RoboticsRoomRepository owns the {workspace → robotics rooms} registry.
// Workspaces are created lazily on first room creation.
type RoboticsRoomRepository interface {
	Create(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*domain.RoboticsRoom, error)
	Get(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*domain.RoboticsRoom, error)
	List(ctx context.Context, workspaceID domain.WorkspaceID) []*domain.RoboticsRoom
	Delete(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool
	Counts(ctx context.Context) (workspaces, rooms int)
}

// VideoRoomRepository owns the {workspace → video rooms} registry.
type VideoRoomRepository interface {
	Create(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, config *domain.VideoConfig, recovery *domain.RecoveryConfig) (*domain.VideoRoom, error)
	Get(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*domain.VideoRoom, error)
	List(ctx context.Context, workspaceID domain.WorkspaceID) []*domain.VideoRoom
	Delete(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool
	Counts(ctx context.Context) (workspaces, rooms int)
}
