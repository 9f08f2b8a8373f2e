package domain

import (
	"sync"
	"time"
)

// VideoRoom coordinates one producer slot and a consumer set for a video
// stream. The fabric sees no frame bytes; frame fields are telemetry
// reported by participants via stream_stats.
type VideoRoom struct {
	mu sync.Mutex

	id          RoomID
	workspaceID WorkspaceID
	createdAt   time.Time

	members membership

	config         VideoConfig
	recoveryConfig RecoveryConfig

	frameCount  int64
	totalBytes  int64
	lastFrameAt *time.Time
}

func NewVideoRoom(workspaceID WorkspaceID, roomID RoomID, config *VideoConfig, recovery *RecoveryConfig) *VideoRoom {
	r := &VideoRoom{
		id:             roomID,
		workspaceID:    workspaceID,
		createdAt:      time.Now().UTC(),
		config:         DefaultVideoConfig(),
		recoveryConfig: DefaultRecoveryConfig(),
	}
	if config != nil {
		r.config = *config
	}
	if recovery != nil {
		r.recoveryConfig = *recovery
	}
	return r
}

func (r *VideoRoom) ID() RoomID               { return r.id }
func (r *VideoRoom) WorkspaceID() WorkspaceID { return r.workspaceID }
func (r *VideoRoom) CreatedAt() time.Time     { return r.createdAt }

// Admit atomically places the session according to its role.
func (r *VideoRoom) Admit(id ParticipantID, role ParticipantRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.admit(id, role)
}

// Evict removes the participant, reporting the role it held.
func (r *VideoRoom) Evict(id ParticipantID) (ParticipantRole, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.evict(id)
}

// Role reports the role the participant currently holds in the room.
func (r *VideoRoom) Role(id ParticipantID) (ParticipantRole, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.role(id)
}

// Consumers returns the consumer ids in join order.
func (r *VideoRoom) Consumers() []ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ParticipantID(nil), r.members.consumers...)
}

// Members returns every participant excluding the given id, producer first.
func (r *VideoRoom) Members(exclude ParticipantID) []ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.all(exclude)
}

func (r *VideoRoom) Participants() ParticipantSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.summary()
}

// Config returns the room's current stream configuration.
func (r *VideoRoom) Config() VideoConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// Recovery returns the pass-through recovery metadata.
func (r *VideoRoom) Recovery() RecoveryConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recoveryConfig
}

// ApplyConfigUpdate merges a partial config into the stored one and returns
// the merged result.
func (r *VideoRoom) ApplyConfigUpdate(upd VideoConfigUpdate) VideoConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	if upd.Encoding != nil {
		r.config.Encoding = *upd.Encoding
	}
	if upd.Resolution != nil {
		r.config.Resolution = *upd.Resolution
	}
	if upd.Framerate != nil {
		r.config.Framerate = *upd.Framerate
	}
	if upd.Bitrate != nil {
		r.config.Bitrate = *upd.Bitrate
	}
	if upd.Quality != nil {
		r.config.Quality = *upd.Quality
	}
	return r.config
}

// UpdateTelemetry stores participant-reported stream counters. Frame bytes
// never transit the fabric; these are self-reported via stream_stats.
func (r *VideoRoom) UpdateTelemetry(frameCount, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameCount > 0 {
		r.frameCount = frameCount
	}
	if totalBytes > 0 {
		r.totalBytes = totalBytes
	}
	now := time.Now().UTC()
	r.lastFrameAt = &now
}

// Telemetry reports the accumulated frame counters.
func (r *VideoRoom) Telemetry() (frameCount, totalBytes int64, lastFrameAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastFrameAt != nil {
		t := *r.lastFrameAt
		lastFrameAt = &t
	}
	return r.frameCount, r.totalBytes, lastFrameAt
}
