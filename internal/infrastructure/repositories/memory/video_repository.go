package memory

import (
	"context"
	"sync"

	"robofabric/internal/core/domain"
)

// VideoRoomRepository is the in-memory {workspace → video rooms} registry.
type VideoRoomRepository struct {
	mu         sync.RWMutex
	workspaces map[domain.WorkspaceID]map[domain.RoomID]*domain.VideoRoom
}

func NewVideoRoomRepository() *VideoRoomRepository {
	return &VideoRoomRepository{
		workspaces: make(map[domain.WorkspaceID]map[domain.RoomID]*domain.VideoRoom),
	}
}

// Create inserts a new room, creating the workspace implicitly.
func (r *VideoRoomRepository) Create(_ context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, config *domain.VideoConfig, recovery *domain.RecoveryConfig) (*domain.VideoRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.workspaces[workspaceID]
	if !ok {
		rooms = make(map[domain.RoomID]*domain.VideoRoom)
		r.workspaces[workspaceID] = rooms
	}
	if _, exists := rooms[roomID]; exists {
		return nil, domain.ErrRoomExists
	}

	room := domain.NewVideoRoom(workspaceID, roomID, config, recovery)
	rooms[roomID] = room
	return room, nil
}

func (r *VideoRoomRepository) Get(_ context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*domain.VideoRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, ok := r.workspaces[workspaceID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room, ok := rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (r *VideoRoomRepository) List(_ context.Context, workspaceID domain.WorkspaceID) []*domain.VideoRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := r.workspaces[workspaceID]
	out := make([]*domain.VideoRoom, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room)
	}
	return out
}

func (r *VideoRoomRepository) Delete(_ context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.workspaces[workspaceID]
	if !ok {
		return false
	}
	if _, exists := rooms[roomID]; !exists {
		return false
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(r.workspaces, workspaceID)
	}
	return true
}

func (r *VideoRoomRepository) Counts(_ context.Context) (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totalRooms := 0
	for _, rooms := range r.workspaces {
		totalRooms += len(rooms)
	}
	return len(r.workspaces), totalRooms
}
