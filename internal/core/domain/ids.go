package domain

// WorkspaceID is an opaque top-level isolation boundary identifier.
// Treated as UUID v4 by convention; no structural constraint is enforced.
type WorkspaceID string

// RoomID is unique within a workspace.
type RoomID string

// ParticipantID is client-chosen and unique within a room.
type ParticipantID string

// ParticipantRole determines routing eligibility within a room.
type ParticipantRole string

const (
	RoleProducer ParticipantRole = "producer"
	RoleConsumer ParticipantRole = "consumer"
)

// Valid reports whether the role is one of the two known roles.
func (r ParticipantRole) Valid() bool {
	return r == RoleProducer || r == RoleConsumer
}

// Protocol distinguishes the two room flavors the fabric serves.
type Protocol string

const (
	ProtocolRobotics Protocol = "robotics"
	ProtocolVideo    Protocol = "video"
)
