package signal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"robofabric/internal/core/domain"
)

// ErrSessionClosed is returned by Send after the session started closing.
var ErrSessionClosed = errors.New("session is closed")

// Session is one participant's WebSocket connection. The room router
// enqueues onto the bounded outbound queue; a single writer goroutine
// drains it onto the socket. A slow consumer therefore never stalls the
// producer or its room: on overflow the oldest frame is dropped and the
// consumer gets a single backpressure notice for the episode.
type Session struct {
	id          domain.ParticipantID
	role        domain.ParticipantRole
	workspaceID domain.WorkspaceID
	roomID      domain.RoomID

	conn *websocket.Conn

	queueMu sync.Mutex
	out     chan domain.Message

	done      chan struct{}
	closeOnce sync.Once

	congested atomic.Bool
	onDrop    func()

	pingInterval time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func newSession(
	conn *websocket.Conn,
	id domain.ParticipantID,
	role domain.ParticipantRole,
	workspaceID domain.WorkspaceID,
	roomID domain.RoomID,
	queueSize int,
	pingInterval, writeTimeout time.Duration,
	onDrop func(),
	logger *zap.SugaredLogger,
) *Session {
	return &Session{
		id:           id,
		role:         role,
		workspaceID:  workspaceID,
		roomID:       roomID,
		conn:         conn,
		out:          make(chan domain.Message, queueSize),
		done:         make(chan struct{}),
		onDrop:       onDrop,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		logger: logger.With(
			"participant_id", id,
			"room_id", roomID,
			"workspace_id", workspaceID,
		),
	}
}

func (s *Session) ID() domain.ParticipantID       { return s.id }
func (s *Session) Role() domain.ParticipantRole   { return s.role }
func (s *Session) WorkspaceID() domain.WorkspaceID { return s.workspaceID }
func (s *Session) RoomID() domain.RoomID          { return s.roomID }

// Send enqueues an outbound frame, FIFO per session. When the queue is
// full the oldest pending frame is discarded to make room, keeping the
// delivered suffix contiguous.
func (s *Session) Send(msg domain.Message) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	for {
		select {
		case s.out <- msg:
			return nil
		default:
		}

		// Queue full: drop oldest, notify once per congestion episode.
		select {
		case <-s.out:
			if s.congested.CompareAndSwap(false, true) {
				notice := domain.NewErrorMessage(
					"outbound queue overflow, oldest messages dropped",
					domain.ErrorCodeBackpressureDrop,
				)
				select {
				case s.out <- notice:
				default:
				}
				s.logger.Warnw("backpressure drop on slow consumer")
			}
			if s.onDrop != nil {
				s.onDrop()
			}
		default:
			// Raced with the writer draining everything; retry the enqueue.
		}
	}
}

// writePump owns all data and ping writes: queued frames and keepalive
// pings. Only the close frame is written elsewhere, by Close, as a control
// frame.
func (s *Session) writePump() {
	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debugw("write failed, closing session", "error", err)
				s.Close()
				return
			}
			if len(s.out) == 0 {
				s.congested.Store(false)
			}

		case <-pingTicker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debugw("ping failed, closing session", "error", err)
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

// Close is idempotent. It stops the writer, sends a best-effort close frame
// and tears down the socket, which unblocks the reader.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		// WriteControl may run concurrently with the writer goroutine.
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

// Done exposes the session's closed signal.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
