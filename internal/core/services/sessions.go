package services

import (
	"sync"
	"time"

	"robofabric/internal/core/domain"
	"robofabric/internal/core/ports"
)

// sessionKey scopes a participant to its room; participant ids are only
// unique within a room.
type sessionKey struct {
	workspaceID   domain.WorkspaceID
	roomID        domain.RoomID
	participantID domain.ParticipantID
}

func keyOf(sess ports.Session) sessionKey {
	return sessionKey{
		workspaceID:   sess.WorkspaceID(),
		roomID:        sess.RoomID(),
		participantID: sess.ID(),
	}
}

type sessionEntry struct {
	sess         ports.Session
	connectedAt  time.Time
	lastActivity time.Time
	messageCount int64
}

// sessionTable tracks live sessions and their activity metadata. Rooms hold
// membership; the table holds the transport handles the router fans out to.
type sessionTable struct {
	mu      sync.RWMutex
	entries map[sessionKey]*sessionEntry
}

func newSessionTable() *sessionTable {
	return &sessionTable{entries: make(map[sessionKey]*sessionEntry)}
}

func (t *sessionTable) add(sess ports.Session) {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[keyOf(sess)] = &sessionEntry{
		sess:         sess,
		connectedAt:  now,
		lastActivity: now,
	}
}

// remove drops the session and reports whether it was tracked. Guards
// against a stale removal racing a reconnect under the same id.
func (t *sessionTable) remove(sess ports.Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := keyOf(sess)
	entry, ok := t.entries[key]
	if !ok || entry.sess != sess {
		return false
	}
	delete(t.entries, key)
	return true
}

func (t *sessionTable) get(workspaceID domain.WorkspaceID, roomID domain.RoomID, id domain.ParticipantID) (ports.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[sessionKey{workspaceID, roomID, id}]
	if !ok {
		return nil, false
	}
	return entry.sess, true
}

func (t *sessionTable) touch(sess ports.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[keyOf(sess)]; ok && entry.sess == sess {
		entry.lastActivity = time.Now().UTC()
		entry.messageCount++
	}
}

// byRoom returns the live sessions of a room.
func (t *sessionTable) byRoom(workspaceID domain.WorkspaceID, roomID domain.RoomID) []ports.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []ports.Session
	for key, entry := range t.entries {
		if key.workspaceID == workspaceID && key.roomID == roomID {
			out = append(out, entry.sess)
		}
	}
	return out
}

func (t *sessionTable) stats() (int, map[string]int, []domain.ConnectionInfo) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byRole := map[string]int{
		string(domain.RoleProducer): 0,
		string(domain.RoleConsumer): 0,
	}
	active := make([]domain.ConnectionInfo, 0, len(t.entries))
	for key, entry := range t.entries {
		byRole[string(entry.sess.Role())]++
		active = append(active, domain.ConnectionInfo{
			ParticipantID: key.participantID,
			WorkspaceID:   key.workspaceID,
			RoomID:        key.roomID,
			Role:          entry.sess.Role(),
			ConnectedAt:   entry.connectedAt,
			LastActivity:  entry.lastActivity,
			MessageCount:  entry.messageCount,
		})
	}
	return len(t.entries), byRole, active
}

func (t *sessionTable) closeAll() {
	t.mu.RLock()
	sessions := make([]ports.Session, 0, len(t.entries))
	for _, entry := range t.entries {
		sessions = append(sessions, entry.sess)
	}
	t.mu.RUnlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// nopMetrics keeps the services usable without a collector wired in.
type nopMetrics struct{}

func (nopMetrics) RoomCreated(domain.Protocol)                                {}
func (nopMetrics) RoomDeleted(domain.Protocol)                                {}
func (nopMetrics) ParticipantJoined(domain.Protocol, domain.ParticipantRole)  {}
func (nopMetrics) ParticipantLeft(domain.Protocol, domain.ParticipantRole)    {}
func (nopMetrics) MessageRouted(domain.Protocol, domain.MessageType, int)     {}
func (nopMetrics) BackpressureDrop(domain.Protocol)                           {}
func (nopMetrics) SignalRelayed(domain.SignalKind)                            {}
