package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"robofabric/internal/core/domain"
	"robofabric/internal/core/ports"
	"robofabric/pkg/utils"
)

// VideoService is the video room state machine, lifecycle router and WebRTC
// signaling broker. The broker is stateless: it relays offer/answer/ICE
// between a named producer and consumer without remembering negotiation
// state or inspecting SDP.
type VideoService struct {
	repo     ports.VideoRoomRepository
	sessions *sessionTable
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewVideoService(repo ports.VideoRoomRepository, metrics ports.MetricsRecorder, logger *zap.Logger) *VideoService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &VideoService{
		repo:     repo,
		sessions: newSessionTable(),
		metrics:  metrics,
		logger:   logger.Sugar().With("component", "video"),
	}
}

func (s *VideoService) CreateRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, config *domain.VideoConfig, recovery *domain.RecoveryConfig) (domain.WorkspaceID, domain.RoomID, error) {
	if workspaceID == "" {
		workspaceID = domain.WorkspaceID(utils.GenerateWorkspaceID())
	}
	if roomID == "" {
		roomID = domain.RoomID(utils.GenerateRoomID())
	}

	if _, err := s.repo.Create(ctx, workspaceID, roomID, config, recovery); err != nil {
		return "", "", err
	}
	s.metrics.RoomCreated(domain.ProtocolVideo)
	s.logger.Infow("created room", "workspace_id", workspaceID, "room_id", roomID)
	return workspaceID, roomID, nil
}

func (s *VideoService) ListRooms(ctx context.Context, workspaceID domain.WorkspaceID) []domain.VideoRoomInfo {
	rooms := s.repo.List(ctx, workspaceID)
	out := make([]domain.VideoRoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, videoRoomInfo(room))
	}
	return out
}

func (s *VideoService) GetRoomInfo(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.VideoRoomInfo, error) {
	room, err := s.repo.Get(ctx, workspaceID, roomID)
	if err != nil {
		return domain.VideoRoomInfo{}, err
	}
	return videoRoomInfo(room), nil
}

func (s *VideoService) GetRoomState(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.VideoRoomState, error) {
	room, err := s.repo.Get(ctx, workspaceID, roomID)
	if err != nil {
		return domain.VideoRoomState{}, err
	}
	frameCount, totalBytes, lastFrameAt := room.Telemetry()
	return domain.VideoRoomState{
		RoomID:         room.ID(),
		WorkspaceID:    room.WorkspaceID(),
		Participants:   room.Participants(),
		FrameCount:     frameCount,
		TotalBytes:     totalBytes,
		LastFrameAt:    lastFrameAt,
		CurrentConfig:  room.Config(),
		RecoveryConfig: room.Recovery(),
		Timestamp:      utils.Timestamp(),
	}, nil
}

func (s *VideoService) DeleteRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool {
	if _, err := s.repo.Get(ctx, workspaceID, roomID); err != nil {
		return false
	}

	for _, sess := range s.sessions.byRoom(workspaceID, roomID) {
		_ = sess.Send(domain.NewErrorMessage("room deleted", domain.ErrorCodeRoomDeleted))
		sess.Close()
	}

	deleted := s.repo.Delete(ctx, workspaceID, roomID)
	if deleted {
		s.metrics.RoomDeleted(domain.ProtocolVideo)
		s.logger.Infow("deleted room", "workspace_id", workspaceID, "room_id", roomID)
	}
	return deleted
}

// Join admits the session and announces it to the rest of the room.
func (s *VideoService) Join(ctx context.Context, sess ports.Session) error {
	room, err := s.repo.Get(ctx, sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		return err
	}

	if err := room.Admit(sess.ID(), sess.Role()); err != nil {
		s.logger.Warnw("join rejected",
			"workspace_id", sess.WorkspaceID(),
			"room_id", sess.RoomID(),
			"participant_id", sess.ID(),
			"role", sess.Role(),
			"error", err,
		)
		return err
	}

	s.sessions.add(sess)
	s.metrics.ParticipantJoined(domain.ProtocolVideo, sess.Role())
	s.logger.Infow("participant joined",
		"workspace_id", sess.WorkspaceID(),
		"room_id", sess.RoomID(),
		"participant_id", sess.ID(),
		"role", sess.Role(),
	)

	if err := sess.Send(domain.NewJoinedMessage(room.ID(), room.WorkspaceID(), sess.Role())); err != nil {
		return err
	}

	s.broadcastToMembers(room, sess.ID(),
		domain.NewParticipantJoinedMessage(room.ID(), sess.ID(), sess.Role()))
	return nil
}

// Leave evicts the session and announces the departure.
func (s *VideoService) Leave(sess ports.Session) {
	if !s.sessions.remove(sess) {
		return
	}

	room, err := s.repo.Get(context.Background(), sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		return
	}
	role, ok := room.Evict(sess.ID())
	if !ok {
		return
	}
	s.metrics.ParticipantLeft(domain.ProtocolVideo, role)
	s.logger.Infow("participant left",
		"workspace_id", sess.WorkspaceID(),
		"room_id", sess.RoomID(),
		"participant_id", sess.ID(),
		"role", role,
	)
	s.broadcastToMembers(room, sess.ID(),
		domain.NewParticipantLeftMessage(room.ID(), sess.ID(), role))
}

// HandleMessage routes one inbound frame per the video dispatch policy.
// Video rooms never carry frame bytes; only signaling and lifecycle.
func (s *VideoService) HandleMessage(ctx context.Context, sess ports.Session, msg domain.Message) {
	s.sessions.touch(sess)

	room, err := s.repo.Get(ctx, sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		if msg.Type == domain.MessageHeartbeat {
			_ = sess.Send(domain.NewHeartbeatAck())
		}
		return
	}

	switch msg.Type {
	case domain.MessageHeartbeat:
		_ = sess.Send(domain.NewHeartbeatAck())

	case domain.MessageStreamStarted, domain.MessageStreamStopped:
		if sess.Role() != domain.RoleProducer {
			_ = sess.Send(domain.NewErrorMessage(string(msg.Type)+" is only accepted from the producer", ""))
			return
		}
		out := msg
		out.Source = string(sess.ID())
		if out.Timestamp == "" {
			out.Timestamp = utils.Timestamp()
		}
		fanout := s.broadcastToConsumers(room, out)
		s.metrics.MessageRouted(domain.ProtocolVideo, msg.Type, fanout)

	case domain.MessageVideoConfigUpdate:
		if sess.Role() != domain.RoleProducer {
			_ = sess.Send(domain.NewErrorMessage("video_config_update is only accepted from the producer", ""))
			return
		}
		upd, err := msg.ConfigUpdate()
		if err != nil {
			_ = sess.Send(domain.NewErrorMessage(err.Error(), ""))
			return
		}
		room.ApplyConfigUpdate(upd)
		out := msg
		out.Source = string(sess.ID())
		if out.Timestamp == "" {
			out.Timestamp = utils.Timestamp()
		}
		fanout := s.broadcastToConsumers(room, out)
		s.metrics.MessageRouted(domain.ProtocolVideo, msg.Type, fanout)

	case domain.MessageRecoveryTriggered:
		if sess.Role() != domain.RoleConsumer {
			_ = sess.Send(domain.NewErrorMessage("recovery_triggered is only accepted from consumers", ""))
			return
		}
		out := msg
		out.Source = string(sess.ID())
		if out.Timestamp == "" {
			out.Timestamp = utils.Timestamp()
		}
		fanout := s.broadcastToMembers(room, sess.ID(), out)
		s.metrics.MessageRouted(domain.ProtocolVideo, msg.Type, fanout)

	case domain.MessageEmergencyStop:
		reason := msg.Reason
		if reason == "" {
			reason = "emergency stop from " + string(sess.ID())
		}
		out := domain.NewEmergencyStopMessage(reason, string(sess.ID()))
		fanout := s.broadcastToMembers(room, "", out)
		s.metrics.MessageRouted(domain.ProtocolVideo, msg.Type, fanout)
		s.logger.Warnw("emergency stop",
			"workspace_id", sess.WorkspaceID(),
			"room_id", sess.RoomID(),
			"source", sess.ID(),
			"reason", reason,
		)

	case domain.MessageStatusUpdate:
		out := msg
		out.Source = string(sess.ID())
		if out.Timestamp == "" {
			out.Timestamp = utils.Timestamp()
		}
		fanout := s.broadcastToMembers(room, sess.ID(), out)
		s.metrics.MessageRouted(domain.ProtocolVideo, msg.Type, fanout)

	case domain.MessageStreamStats:
		s.recordStreamStats(room, msg.Stats)
		out := msg
		if out.Timestamp == "" {
			out.Timestamp = utils.Timestamp()
		}
		fanout := s.broadcastToMembers(room, sess.ID(), out)
		s.metrics.MessageRouted(domain.ProtocolVideo, msg.Type, fanout)

	default:
		_ = sess.Send(domain.NewErrorMessage("unsupported message type for role: "+string(msg.Type), ""))
	}
}

// HandleSignal relays one WebRTC signaling message between a named pair.
// Missing targets are not fatal to the room; the caller gets the error and
// the room carries on.
func (s *VideoService) HandleSignal(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, req domain.SignalRequest) (string, error) {
	room, err := s.repo.Get(ctx, workspaceID, roomID)
	if err != nil {
		return "", err
	}

	role, member := room.Role(req.ClientID)
	if !member {
		return "", domain.ErrNotAMember
	}

	switch req.Message.Type {
	case domain.SignalOffer:
		if req.Message.TargetConsumer == "" {
			// Untargeted offers are a leftover of server-terminated WebRTC;
			// media is peer-to-peer here.
			return "Peer-to-peer mode - no server WebRTC processing", nil
		}
		if role != domain.RoleProducer {
			return "", domain.ErrInvalidRole
		}
		if err := s.relay(workspaceID, roomID, req.Message.TargetConsumer,
			domain.NewWebRTCOfferMessage(req.Message.SDP, req.ClientID)); err != nil {
			return "", err
		}
		s.metrics.SignalRelayed(domain.SignalOffer)
		return "Offer forwarded to consumer", nil

	case domain.SignalAnswer:
		if role != domain.RoleConsumer || req.Message.TargetProducer == "" {
			return "", domain.ErrInvalidRole
		}
		if err := s.relay(workspaceID, roomID, req.Message.TargetProducer,
			domain.NewWebRTCAnswerMessage(req.Message.SDP, req.ClientID)); err != nil {
			return "", err
		}
		s.metrics.SignalRelayed(domain.SignalAnswer)
		return "Answer forwarded to producer", nil

	case domain.SignalIce:
		switch {
		case role == domain.RoleProducer && req.Message.TargetConsumer != "":
			if err := s.relay(workspaceID, roomID, req.Message.TargetConsumer,
				domain.NewWebRTCIceMessage(req.Message.Candidate, req.ClientID, "")); err != nil {
				return "", err
			}
			s.metrics.SignalRelayed(domain.SignalIce)
			return "ICE candidate forwarded to consumer", nil
		case role == domain.RoleConsumer && req.Message.TargetProducer != "":
			if err := s.relay(workspaceID, roomID, req.Message.TargetProducer,
				domain.NewWebRTCIceMessage(req.Message.Candidate, "", req.ClientID)); err != nil {
				return "", err
			}
			s.metrics.SignalRelayed(domain.SignalIce)
			return "ICE candidate forwarded to producer", nil
		default:
			return "", domain.ErrInvalidRole
		}

	default:
		return "", domain.ErrUnknownMessageType
	}
}

// relay enqueues the wrapped signaling message on the target's session.
func (s *VideoService) relay(workspaceID domain.WorkspaceID, roomID domain.RoomID, target domain.ParticipantID, msg domain.Message) error {
	sess, ok := s.sessions.get(workspaceID, roomID, target)
	if !ok {
		return domain.ErrPeerNotFound
	}
	if err := sess.Send(msg); err != nil {
		return domain.ErrPeerNotFound
	}
	s.logger.Infow("relayed signaling message",
		"workspace_id", workspaceID,
		"room_id", roomID,
		"type", msg.Type,
		"target", target,
	)
	return nil
}

func (s *VideoService) recordStreamStats(room *domain.VideoRoom, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var stats struct {
		FrameCount int64 `json:"frame_count"`
		TotalBytes int64 `json:"total_bytes"`
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return
	}
	room.UpdateTelemetry(stats.FrameCount, stats.TotalBytes)
}

func (s *VideoService) broadcastToConsumers(room *domain.VideoRoom, msg domain.Message) int {
	sent := 0
	for _, id := range room.Consumers() {
		if sess, ok := s.sessions.get(room.WorkspaceID(), room.ID(), id); ok {
			if sess.Send(msg) == nil {
				sent++
			}
		}
	}
	return sent
}

// broadcastToMembers sends to every participant except exclude; empty
// exclude reaches the whole room, sender included.
func (s *VideoService) broadcastToMembers(room *domain.VideoRoom, exclude domain.ParticipantID, msg domain.Message) int {
	sent := 0
	for _, id := range room.Members(exclude) {
		if sess, ok := s.sessions.get(room.WorkspaceID(), room.ID(), id); ok {
			if sess.Send(msg) == nil {
				sent++
			}
		}
	}
	return sent
}

func (s *VideoService) Stats(ctx context.Context) domain.ServiceStats {
	workspaces, rooms := s.repo.Counts(ctx)
	connections, byRole, active := s.sessions.stats()
	return domain.ServiceStats{
		Workspaces:  workspaces,
		Rooms:       rooms,
		Connections: connections,
		ByRole:      byRole,
		Active:      active,
	}
}

func (s *VideoService) Shutdown() {
	s.sessions.closeAll()
}

func videoRoomInfo(room *domain.VideoRoom) domain.VideoRoomInfo {
	participants := room.Participants()
	frameCount, _, _ := room.Telemetry()
	return domain.VideoRoomInfo{
		ID:              room.ID(),
		WorkspaceID:     room.WorkspaceID(),
		Participants:    participants,
		FrameCount:      frameCount,
		Config:          room.Config(),
		HasProducer:     participants.Producer != nil,
		ActiveConsumers: len(participants.Consumers),
	}
}
