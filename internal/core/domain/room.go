package domain

import (
	"sync"
	"time"
)

// ParticipantSummary is the participant view reported by room info/state.
type ParticipantSummary struct {
	Producer  *ParticipantID  `json:"producer"`
	Consumers []ParticipantID `json:"consumers"`
	Total     int             `json:"total"`
}

// membership holds the producer slot and the ordered consumer set shared by
// both room flavors. Callers hold the room lock.
type membership struct {
	producer  ParticipantID // empty when the slot is free
	consumers []ParticipantID
}

func (m *membership) contains(id ParticipantID) bool {
	if m.producer == id {
		return true
	}
	for _, c := range m.consumers {
		if c == id {
			return true
		}
	}
	return false
}

// admit places the participant according to its role. The producer slot has
// cardinality one; consumers are unbounded. A participant id may hold at
// most one role in the room.
func (m *membership) admit(id ParticipantID, role ParticipantRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if m.contains(id) {
		return ErrAlreadyJoined
	}
	if role == RoleProducer {
		if m.producer != "" {
			return ErrProducerExists
		}
		m.producer = id
		return nil
	}
	m.consumers = append(m.consumers, id)
	return nil
}

// evict removes the participant and reports the role it held.
func (m *membership) evict(id ParticipantID) (ParticipantRole, bool) {
	if m.producer == id {
		m.producer = ""
		return RoleProducer, true
	}
	for i, c := range m.consumers {
		if c == id {
			m.consumers = append(m.consumers[:i], m.consumers[i+1:]...)
			return RoleConsumer, true
		}
	}
	return "", false
}

func (m *membership) role(id ParticipantID) (ParticipantRole, bool) {
	if m.producer == id {
		return RoleProducer, true
	}
	for _, c := range m.consumers {
		if c == id {
			return RoleConsumer, true
		}
	}
	return "", false
}

func (m *membership) summary() ParticipantSummary {
	s := ParticipantSummary{
		Consumers: append([]ParticipantID(nil), m.consumers...),
	}
	if s.Consumers == nil {
		s.Consumers = []ParticipantID{}
	}
	if m.producer != "" {
		p := m.producer
		s.Producer = &p
		s.Total = 1
	}
	s.Total += len(m.consumers)
	return s
}

// all returns every member, producer first, excluding the given id.
func (m *membership) all(exclude ParticipantID) []ParticipantID {
	out := make([]ParticipantID, 0, len(m.consumers)+1)
	if m.producer != "" && m.producer != exclude {
		out = append(out, m.producer)
	}
	for _, c := range m.consumers {
		if c != exclude {
			out = append(out, c)
		}
	}
	return out
}

// RoboticsRoom coordinates one producer slot, a consumer set and the
// authoritative joint snapshot for the room. All mutation goes through the
// room lock; fan-out happens outside it.
type RoboticsRoom struct {
	mu sync.Mutex

	id          RoomID
	workspaceID WorkspaceID
	createdAt   time.Time

	members membership

	joints       map[string]float64
	lastUpdateAt time.Time
}

func NewRoboticsRoom(workspaceID WorkspaceID, roomID RoomID) *RoboticsRoom {
	return &RoboticsRoom{
		id:          roomID,
		workspaceID: workspaceID,
		createdAt:   time.Now().UTC(),
		joints:      make(map[string]float64),
	}
}

func (r *RoboticsRoom) ID() RoomID               { return r.id }
func (r *RoboticsRoom) WorkspaceID() WorkspaceID { return r.workspaceID }
func (r *RoboticsRoom) CreatedAt() time.Time     { return r.createdAt }

// Admit atomically places the session according to its role.
func (r *RoboticsRoom) Admit(id ParticipantID, role ParticipantRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.admit(id, role)
}

// Evict removes the participant. The joint snapshot persists across
// producer departure; it is only dropped with the room itself.
func (r *RoboticsRoom) Evict(id ParticipantID) (ParticipantRole, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.evict(id)
}

// Role reports the role the participant currently holds in the room.
func (r *RoboticsRoom) Role(id ParticipantID) (ParticipantRole, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.role(id)
}

// ApplyJointUpdates merges the updates last-write-wins and reports how many
// entries actually changed a stored value.
func (r *RoboticsRoom) ApplyJointUpdates(joints []JointUpdate) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for _, j := range joints {
		if cur, ok := r.joints[j.Name]; !ok || cur != j.Value {
			changed++
		}
		r.joints[j.Name] = j.Value
	}
	if len(joints) > 0 {
		r.lastUpdateAt = time.Now().UTC()
	}
	return changed
}

// MergeJointMap applies a state_sync payload. Keys absent from the payload
// are left unchanged. Returns the payload converted to list form for
// broadcast.
func (r *RoboticsRoom) MergeJointMap(joints map[string]float64) []JointUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]JointUpdate, 0, len(joints))
	for name, value := range joints {
		r.joints[name] = value
		out = append(out, JointUpdate{Name: name, Value: value})
	}
	if len(joints) > 0 {
		r.lastUpdateAt = time.Now().UTC()
	}
	return out
}

// SnapshotJoints returns a copy of the authoritative joint map.
func (r *RoboticsRoom) SnapshotJoints() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]float64, len(r.joints))
	for k, v := range r.joints {
		snapshot[k] = v
	}
	return snapshot
}

// Consumers returns the consumer ids in join order.
func (r *RoboticsRoom) Consumers() []ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ParticipantID(nil), r.members.consumers...)
}

// Members returns every participant excluding the given id, producer first.
func (r *RoboticsRoom) Members(exclude ParticipantID) []ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.all(exclude)
}

func (r *RoboticsRoom) Participants() ParticipantSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.summary()
}
