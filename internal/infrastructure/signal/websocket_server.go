package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"robofabric/internal/core/domain"
	"robofabric/internal/core/ports"
	"robofabric/pkg/validation"
)

// Config carries the transport knobs for WebSocket sessions.
type Config struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	JoinTimeout       time.Duration
	OutboundQueueSize int
	MaxMessageSize    int64

	// MessagesPerSecond throttles inbound frames per session; zero disables.
	MessagesPerSecond float64
	MessageBurst      int
}

// WebSocketServer upgrades room endpoints and runs the per-session
// read loop. It delegates all routing decisions to the protocol services.
type WebSocketServer struct {
	robotics ports.RoboticsService
	video    ports.VideoService
	metrics  ports.MetricsRecorder

	cfg    Config
	logger *zap.SugaredLogger

	upgrader websocket.Upgrader
}

type joinRequest struct {
	ParticipantID string `json:"participant_id"`
	Role          string `json:"role"`
}

func NewWebSocketServer(robotics ports.RoboticsService, video ports.VideoService, metrics ports.MetricsRecorder, cfg Config, logger *zap.Logger) *WebSocketServer {
	return &WebSocketServer{
		robotics: robotics,
		video:    video,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.Sugar().With("component", "signal"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // workspaces are isolation-by-opaque-id only
			},
		},
	}
}

// HandleRobotics serves /robotics/workspaces/:workspace_id/rooms/:room_id/ws.
func (s *WebSocketServer) HandleRobotics(c *gin.Context) {
	s.handle(c, domain.ProtocolRobotics)
}

// HandleVideo serves /video/workspaces/:workspace_id/rooms/:room_id/ws.
func (s *WebSocketServer) HandleVideo(c *gin.Context) {
	s.handle(c, domain.ProtocolVideo)
}

func (s *WebSocketServer) handle(c *gin.Context, proto domain.Protocol) {
	workspaceID := domain.WorkspaceID(c.Param("workspace_id"))
	roomID := domain.RoomID(c.Param("room_id"))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	sess, ok := s.performJoin(conn, proto, workspaceID, roomID)
	if !ok {
		_ = conn.Close()
		return
	}

	go sess.writePump()
	s.readLoop(c.Request.Context(), conn, sess, proto)

	// Cleanup: evict from the room, then tear the socket down.
	switch proto {
	case domain.ProtocolRobotics:
		s.robotics.Leave(sess)
	case domain.ProtocolVideo:
		s.video.Leave(sess)
	}
	sess.Close()
}

// performJoin runs the handshake: the first text frame must be a join
// request; anything else ends the connection with an error frame.
func (s *WebSocketServer) performJoin(conn *websocket.Conn, proto domain.Protocol, workspaceID domain.WorkspaceID, roomID domain.RoomID) (*Session, bool) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.JoinTimeout))

	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	if msgType != websocket.TextMessage {
		s.rejectJoin(conn, "join message must be a text frame")
		return nil, false
	}

	var join joinRequest
	if err := json.Unmarshal(raw, &join); err != nil {
		s.rejectJoin(conn, "malformed join message")
		return nil, false
	}
	if err := validation.ValidateParticipantID(join.ParticipantID); err != nil {
		s.rejectJoin(conn, err.Error())
		return nil, false
	}
	if err := validation.ValidateRole(join.Role); err != nil {
		s.rejectJoin(conn, err.Error())
		return nil, false
	}

	onDrop := func() {}
	if s.metrics != nil {
		onDrop = func() { s.metrics.BackpressureDrop(proto) }
	}

	sess := newSession(
		conn,
		domain.ParticipantID(join.ParticipantID),
		domain.ParticipantRole(join.Role),
		workspaceID,
		roomID,
		s.cfg.OutboundQueueSize,
		s.cfg.PingInterval,
		s.cfg.WriteTimeout,
		onDrop,
		s.logger,
	)

	switch proto {
	case domain.ProtocolRobotics:
		err = s.robotics.Join(context.Background(), sess)
	case domain.ProtocolVideo:
		err = s.video.Join(context.Background(), sess)
	}
	if err != nil {
		s.rejectJoin(conn, joinErrorText(err))
		return nil, false
	}
	return sess, true
}

func (s *WebSocketServer) rejectJoin(conn *websocket.Conn, reason string) {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = conn.WriteJSON(domain.NewErrorMessage(reason, ""))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "cannot join room: room not found"
	case errors.Is(err, domain.ErrProducerExists):
		return "cannot join room: a producer is already connected"
	case errors.Is(err, domain.ErrAlreadyJoined):
		return "cannot join room: participant id already in use"
	default:
		return "cannot join room"
	}
}

// readLoop drains inbound frames until the peer or the session closes.
// Decode failures keep the session open; transport failures end it.
func (s *WebSocketServer) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session, proto domain.Protocol) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst)
	}

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read error",
					"participant_id", sess.ID(), "room_id", sess.RoomID(), "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		select {
		case <-sess.Done():
			return
		default:
		}

		if msgType == websocket.BinaryMessage {
			_ = sess.Send(domain.NewErrorMessage("binary frames are not supported", ""))
			continue
		}

		if limiter != nil && !limiter.Allow() {
			_ = sess.Send(domain.NewErrorMessage("message rate limit exceeded", ""))
			continue
		}

		msg, err := domain.DecodeMessage(raw)
		if err != nil {
			_ = sess.Send(domain.NewErrorMessage(err.Error(), ""))
			continue
		}

		switch proto {
		case domain.ProtocolRobotics:
			s.robotics.HandleMessage(ctx, sess, msg)
		case domain.ProtocolVideo:
			s.video.HandleMessage(ctx, sess, msg)
		}
	}
}
