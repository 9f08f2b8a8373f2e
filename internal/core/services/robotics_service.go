package services

import (
	"context"

	"go.uber.org/zap"

	"robofabric/internal/core/domain"
	"robofabric/internal/core/ports"
	"robofabric/pkg/utils"
)

// commandSource marks joint updates injected through the REST command
// endpoint rather than a producer session.
const commandSource = "api"

// RoboticsService is the robotics room state machine and router. Room state
// is linearized through per-room locks; fan-out enqueues onto bounded
// session queues and never blocks on a slow peer.
type RoboticsService struct {
	repo     ports.RoboticsRoomRepository
	sessions *sessionTable
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewRoboticsService(repo ports.RoboticsRoomRepository, metrics ports.MetricsRecorder, logger *zap.Logger) *RoboticsService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &RoboticsService{
		repo:     repo,
		sessions: newSessionTable(),
		metrics:  metrics,
		logger:   logger.Sugar().With("component", "robotics"),
	}
}

// CreateRoom creates a room, generating ids where omitted. The workspace is
// created implicitly.
func (s *RoboticsService) CreateRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.WorkspaceID, domain.RoomID, error) {
	if workspaceID == "" {
		workspaceID = domain.WorkspaceID(utils.GenerateWorkspaceID())
	}
	if roomID == "" {
		roomID = domain.RoomID(utils.GenerateRoomID())
	}

	if _, err := s.repo.Create(ctx, workspaceID, roomID); err != nil {
		return "", "", err
	}
	s.metrics.RoomCreated(domain.ProtocolRobotics)
	s.logger.Infow("created room", "workspace_id", workspaceID, "room_id", roomID)
	return workspaceID, roomID, nil
}

func (s *RoboticsService) ListRooms(ctx context.Context, workspaceID domain.WorkspaceID) []domain.RoboticsRoomInfo {
	rooms := s.repo.List(ctx, workspaceID)
	out := make([]domain.RoboticsRoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roboticsRoomInfo(room))
	}
	return out
}

func (s *RoboticsService) GetRoomInfo(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.RoboticsRoomInfo, error) {
	room, err := s.repo.Get(ctx, workspaceID, roomID)
	if err != nil {
		return domain.RoboticsRoomInfo{}, err
	}
	return roboticsRoomInfo(room), nil
}

func (s *RoboticsService) GetRoomState(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) (domain.RoboticsRoomState, error) {
	room, err := s.repo.Get(ctx, workspaceID, roomID)
	if err != nil {
		return domain.RoboticsRoomState{}, err
	}
	return domain.RoboticsRoomState{
		RoomID:       room.ID(),
		WorkspaceID:  room.WorkspaceID(),
		Joints:       room.SnapshotJoints(),
		Participants: room.Participants(),
		Timestamp:    utils.Timestamp(),
	}, nil
}

// DeleteRoom closes every session in the room after a best-effort farewell
// frame, then removes the registry entry. Idempotent; false when the room
// did not exist.
func (s *RoboticsService) DeleteRoom(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID) bool {
	if _, err := s.repo.Get(ctx, workspaceID, roomID); err != nil {
		return false
	}

	for _, sess := range s.sessions.byRoom(workspaceID, roomID) {
		_ = sess.Send(domain.NewErrorMessage("room deleted", domain.ErrorCodeRoomDeleted))
		sess.Close()
	}

	deleted := s.repo.Delete(ctx, workspaceID, roomID)
	if deleted {
		s.metrics.RoomDeleted(domain.ProtocolRobotics)
		s.logger.Infow("deleted room", "workspace_id", workspaceID, "room_id", roomID)
	}
	return deleted
}

// SendCommand applies joint updates from the REST surface as if the current
// producer had sent them, and fans the payload out to consumers.
func (s *RoboticsService) SendCommand(ctx context.Context, workspaceID domain.WorkspaceID, roomID domain.RoomID, joints []domain.JointUpdate) (int, error) {
	room, err := s.repo.Get(ctx, workspaceID, roomID)
	if err != nil {
		return 0, err
	}

	changed := room.ApplyJointUpdates(joints)
	if len(joints) > 0 {
		s.broadcastToConsumers(room, domain.NewJointUpdateMessage(joints, commandSource))
	}
	return changed, nil
}

// Join admits the session into its room. Consumers receive the current
// state snapshot right after the joined acknowledgment when non-empty.
func (s *RoboticsService) Join(ctx context.Context, sess ports.Session) error {
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
	s.metrics.ParticipantJoined(domain.ProtocolRobotics, sess.Role())
	s.logger.Infow("participant joined",
		"workspace_id", sess.WorkspaceID(),
		"room_id", sess.RoomID(),
		"participant_id", sess.ID(),
		"role", sess.Role(),
	)

	if err := sess.Send(domain.NewJoinedMessage(room.ID(), room.WorkspaceID(), sess.Role())); err != nil {
		return err
	}

	if sess.Role() == domain.RoleConsumer {
		if joints := room.SnapshotJoints(); len(joints) > 0 {
			_ = sess.Send(domain.NewStateSyncMessage(joints))
		}
	}
	return nil
}

// Leave evicts the session from its room. Idempotent; the joint snapshot
// persists until overwritten or the room is deleted.
func (s *RoboticsService) Leave(sess ports.Session) {
	if !s.sessions.remove(sess) {
		return
	}

	room, err := s.repo.Get(context.Background(), sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		return
	}
	if role, ok := room.Evict(sess.ID()); ok {
		s.metrics.ParticipantLeft(domain.ProtocolRobotics, role)
		s.logger.Infow("participant left",
			"workspace_id", sess.WorkspaceID(),
			"room_id", sess.RoomID(),
			"participant_id", sess.ID(),
			"role", role,
		)
	}
}

// HandleMessage routes one inbound frame per the robotics dispatch policy.
func (s *RoboticsService) HandleMessage(ctx context.Context, sess ports.Session, msg domain.Message) {
	s.sessions.touch(sess)

	switch msg.Type {
	case domain.MessageHeartbeat:
		_ = sess.Send(domain.NewHeartbeatAck())

	case domain.MessageJointUpdate:
		s.handleJointUpdate(ctx, sess, msg)

	case domain.MessageStateSync:
		s.handleStateSync(ctx, sess, msg)

	case domain.MessageEmergencyStop:
		s.handleEmergencyStop(ctx, sess, msg)

	default:
		_ = sess.Send(domain.NewErrorMessage("unsupported message type for role: "+string(msg.Type), ""))
	}
}

func (s *RoboticsService) handleJointUpdate(ctx context.Context, sess ports.Session, msg domain.Message) {
	if sess.Role() != domain.RoleProducer {
		_ = sess.Send(domain.NewErrorMessage("joint_update is only accepted from the producer", ""))
		return
	}

	joints, err := msg.JointList()
	if err != nil {
		_ = sess.Send(domain.NewErrorMessage(err.Error(), ""))
		return
	}
	// An empty update list is a no-op and is not broadcast.
	if len(joints) == 0 {
		return
	}

	room, err := s.repo.Get(ctx, sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		_ = sess.Send(domain.NewErrorMessage("room no longer exists", ""))
		return
	}

	room.ApplyJointUpdates(joints)
	fanout := s.broadcastToConsumers(room, domain.NewJointUpdateMessage(joints, string(sess.ID())))
	s.metrics.MessageRouted(domain.ProtocolRobotics, domain.MessageJointUpdate, fanout)
}

func (s *RoboticsService) handleStateSync(ctx context.Context, sess ports.Session, msg domain.Message) {
	if sess.Role() != domain.RoleProducer {
		_ = sess.Send(domain.NewErrorMessage("state_sync is only accepted from the producer", ""))
		return
	}

	joints, err := msg.JointMap()
	if err != nil {
		_ = sess.Send(domain.NewErrorMessage(err.Error(), ""))
		return
	}
	if len(joints) == 0 {
		return
	}

	room, err := s.repo.Get(ctx, sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		_ = sess.Send(domain.NewErrorMessage("room no longer exists", ""))
		return
	}

	// Merge, then rebroadcast in list form even when nothing changed:
	// consumers may have missed prior traffic and there is no per-consumer
	// delta state.
	updates := room.MergeJointMap(joints)
	fanout := s.broadcastToConsumers(room, domain.NewJointUpdateMessage(updates, string(sess.ID())))
	s.metrics.MessageRouted(domain.ProtocolRobotics, domain.MessageStateSync, fanout)
}

func (s *RoboticsService) handleEmergencyStop(ctx context.Context, sess ports.Session, msg domain.Message) {
	room, err := s.repo.Get(ctx, sess.WorkspaceID(), sess.RoomID())
	if err != nil {
		return
	}

	reason := msg.Reason
	if reason == "" {
		reason = "emergency stop from " + string(sess.ID())
	}

	out := domain.NewEmergencyStopMessage(reason, string(sess.ID()))
	fanout := 0
	for _, id := range room.Members(sess.ID()) {
		if target, ok := s.sessions.get(sess.WorkspaceID(), sess.RoomID(), id); ok {
			if target.Send(out) == nil {
				fanout++
			}
		}
	}
	s.metrics.MessageRouted(domain.ProtocolRobotics, domain.MessageEmergencyStop, fanout)
	s.logger.Warnw("emergency stop",
		"workspace_id", sess.WorkspaceID(),
		"room_id", sess.RoomID(),
		"source", sess.ID(),
		"reason", reason,
	)
}

// broadcastToConsumers enqueues the message onto every consumer session of
// the room. Enqueue failures are left to the session's own cleanup path.
func (s *RoboticsService) broadcastToConsumers(room *domain.RoboticsRoom, msg domain.Message) int {
	sent := 0
	for _, id := range room.Consumers() {
		sess, ok := s.sessions.get(room.WorkspaceID(), room.ID(), id)
		if !ok {
			continue
		}
		if err := sess.Send(msg); err != nil {
			s.logger.Debugw("send failed during fan-out",
				"room_id", room.ID(), "participant_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (s *RoboticsService) Stats(ctx context.Context) domain.ServiceStats {
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

// Shutdown closes every live session.
func (s *RoboticsService) Shutdown() {
	s.sessions.closeAll()
}

func roboticsRoomInfo(room *domain.RoboticsRoom) domain.RoboticsRoomInfo {
	participants := room.Participants()
	return domain.RoboticsRoomInfo{
		ID:              room.ID(),
		WorkspaceID:     room.WorkspaceID(),
		Participants:    participants,
		JointsCount:     len(room.SnapshotJoints()),
		HasProducer:     participants.Producer != nil,
		ActiveConsumers: len(participants.Consumers),
	}
}
