package memory

import (
	"context"
	"sync"

	"robofabric/internal/core/domain"
)

// RoboticsRoomRepository is the in-memory {workspace → rooms} registry.
// Read-mostly; a single RWMutex guards the two-level map. Per-room state is
// guarded by the room itself.
type RoboticsRoomRepository struct {
	mu         sync.RWMutex
	workspaces map[domain.WorkspaceID]map[domain.RoomID]*domain.RoboticsRoom
}

func NewRoboticsRoomRepository() *RoboticsRoomRepository {
	return &RoboticsRoomRepository{
		workspaces: make(map[domain.WorkspaceID]map[domain.RoomID]*domain.RoboticsRoom),
	}
}

// Create inserts a new room, creating the workspace implicitly.
func (r *RoboticsRoomRepository) Create(_ context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*domain.RoboticsRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.workspaces[workspaceID]
	if !ok {
		rooms = make(map[domain.RoomID]*domain.RoboticsRoom)
		r.workspaces[workspaceID] = rooms
	}
	if _, exists := rooms[roomID]; exists {
		return nil, domain.ErrRoomExists
	}

	room := domain.NewRoboticsRoom(workspaceID, roomID)
	rooms[roomID] = room
	return room, nil
}

func (r *RoboticsRoomRepository) Get(_ context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*domain.RoboticsRoom, error) {
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

// List returns a snapshot of the workspace's rooms; safe to call
// concurrently with mutations.
func (r *RoboticsRoomRepository) List(_ context.Context, workspaceID domain.WorkspaceID) []*domain.RoboticsRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := r.workspaces[workspaceID]
	out := make([]*domain.RoboticsRoom, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room)
	}
	return out
}

// Delete removes the room. Returns false when it did not exist; never
// raises. The workspace entry is dropped with its last room so subsequent
// lookups re-create cleanly.
func (r *RoboticsRoomRepository) Delete(_ context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool {
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

func (r *RoboticsRoomRepository) Counts(_ context.Context) (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totalRooms := 0
	for _, rooms := range r.workspaces {
		totalRooms += len(rooms)
	}
	return len(r.workspaces), totalRooms
}
