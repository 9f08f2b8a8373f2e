package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"robofabric/internal/core/domain"
	"robofabric/internal/infrastructure/repositories/memory"
)

func newVideoFixture(t *testing.T) (*VideoService, domain.WorkspaceID, domain.RoomID) {
	t.Helper()
	svc := NewVideoService(memory.NewVideoRoomRepository(), nil, zap.NewNop())
	ws, room, err := svc.CreateRoom(context.Background(), "ws-1", "room-1", nil, nil)
	require.NoError(t, err)
	return svc, ws, room
}

func joinVideo(t *testing.T, svc *VideoService, id string, role domain.ParticipantRole, ws domain.WorkspaceID, room domain.RoomID) *fakeSession {
	t.Helper()
	sess := newFakeSession(id, role, string(ws), string(room))
	require.NoError(t, svc.Join(context.Background(), sess))
	return sess
}

func TestVideoCreateRoom_DefaultsApplied(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	info, err := svc.GetRoomInfo(context.Background(), ws, room)
	require.NoError(t, err)
	assert.Equal(t, domain.EncodingVP8, info.Config.Encoding)
	assert.Equal(t, 640, info.Config.Resolution.Width)
	assert.Equal(t, 30, info.Config.Framerate)
}

func TestVideoCreateRoom_ExplicitConfigKept(t *testing.T) {
	svc := NewVideoService(memory.NewVideoRoomRepository(), nil, zap.NewNop())

	cfg := domain.VideoConfig{
		Encoding:   domain.EncodingH264,
		Resolution: domain.Resolution{Width: 1280, Height: 720},
		Framerate:  60,
		Bitrate:    4_000_000,
		Quality:    90,
	}
	rec := domain.DefaultRecoveryConfig()
	rec.RecoveryPolicy = domain.RecoveryBlackScreen

	ws, room, err := svc.CreateRoom(context.Background(), "ws-1", "hd", &cfg, &rec)
	require.NoError(t, err)

	state, err := svc.GetRoomState(context.Background(), ws, room)
	require.NoError(t, err)
	assert.Equal(t, cfg, state.CurrentConfig)
	assert.Equal(t, domain.RecoveryBlackScreen, state.RecoveryConfig.RecoveryPolicy)
}

func TestVideoJoin_AnnouncedToExistingMembers(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	producer := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	consumer := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	// The producer hears about the consumer; the consumer only gets its own
	// joined acknowledgment.
	joined := producer.messagesOfType(domain.MessageParticipantJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, domain.ParticipantID("vc"), joined[0].ParticipantID)
	assert.Equal(t, domain.RoleConsumer, joined[0].Role)

	assert.Empty(t, consumer.messagesOfType(domain.MessageParticipantJoined))
}

func TestVideoLeave_Announced(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	producer := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	consumer := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	svc.Leave(consumer)

	left := producer.messagesOfType(domain.MessageParticipantLeft)
	require.Len(t, left, 1)
	assert.Equal(t, domain.ParticipantID("vc"), left[0].ParticipantID)
}

func TestSignal_OfferRelayedOnlyToTarget(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)
	other := joinVideo(t, svc, "other", domain.RoleConsumer, ws, room)

	result, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vp",
		Message: domain.SignalPayload{
			Type:           domain.SignalOffer,
			SDP:            "v=0 fake sdp",
			TargetConsumer: "vc",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Offer forwarded to consumer", result)

	offers := vc.messagesOfType(domain.MessageWebRTCOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, domain.ParticipantID("vp"), offers[0].FromProducer)
	require.NotNil(t, offers[0].Offer)
	assert.Equal(t, "v=0 fake sdp", offers[0].Offer.SDP)

	// Nobody else sees the offer.
	assert.Empty(t, other.messagesOfType(domain.MessageWebRTCOffer))
}

func TestSignal_AnswerRelayedToProducer(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	_, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vc",
		Message: domain.SignalPayload{
			Type:           domain.SignalAnswer,
			SDP:            "v=0 answer",
			TargetProducer: "vp",
		},
	})
	require.NoError(t, err)

	answers := vp.messagesOfType(domain.MessageWebRTCAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, domain.ParticipantID("vc"), answers[0].FromConsumer)
}

func TestSignal_IceBothDirections(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}`)

	_, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vp",
		Message:  domain.SignalPayload{Type: domain.SignalIce, Candidate: candidate, TargetConsumer: "vc"},
	})
	require.NoError(t, err)

	_, err = svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vc",
		Message:  domain.SignalPayload{Type: domain.SignalIce, Candidate: candidate, TargetProducer: "vp"},
	})
	require.NoError(t, err)

	got := vc.messagesOfType(domain.MessageWebRTCIce)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ParticipantID("vp"), got[0].FromProducer)

	got = vp.messagesOfType(domain.MessageWebRTCIce)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ParticipantID("vc"), got[0].FromConsumer)
}

func TestSignal_DirectionMismatchRejected(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	// Producer cannot send an answer.
	_, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vp",
		Message:  domain.SignalPayload{Type: domain.SignalAnswer, SDP: "x", TargetProducer: "vp"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestSignal_MissingTargetNotFatal(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)

	_, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vp",
		Message:  domain.SignalPayload{Type: domain.SignalOffer, SDP: "x", TargetConsumer: "ghost"},
	})
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)

	// The room is still functional afterwards.
	info, infoErr := svc.GetRoomInfo(context.Background(), ws, room)
	require.NoError(t, infoErr)
	assert.True(t, info.HasProducer)
}

func TestSignal_NonMemberRejected(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	_, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "stranger",
		Message:  domain.SignalPayload{Type: domain.SignalOffer, SDP: "x", TargetConsumer: "vc"},
	})
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestSignal_UnknownRoom(t *testing.T) {
	svc, ws, _ := newVideoFixture(t)

	_, err := svc.HandleSignal(context.Background(), ws, "missing", domain.SignalRequest{
		ClientID: "vp",
		Message:  domain.SignalPayload{Type: domain.SignalOffer},
	})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestSignal_UntargetedOfferIgnored(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)

	result, err := svc.HandleSignal(context.Background(), ws, room, domain.SignalRequest{
		ClientID: "vp",
		Message:  domain.SignalPayload{Type: domain.SignalOffer, SDP: "x"},
	})
	require.NoError(t, err)
	assert.Contains(t, result, "Peer-to-peer")
}

func TestVideoConfigUpdate_MergesAndBroadcasts(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	framerate := 60
	cfg, err := json.Marshal(domain.VideoConfigUpdate{Framerate: &framerate})
	require.NoError(t, err)

	svc.HandleMessage(context.Background(), vp, domain.Message{
		Type:   domain.MessageVideoConfigUpdate,
		Config: cfg,
	})

	state, err := svc.GetRoomState(context.Background(), ws, room)
	require.NoError(t, err)
	assert.Equal(t, 60, state.CurrentConfig.Framerate)
	// Untouched fields keep their defaults.
	assert.Equal(t, domain.EncodingVP8, state.CurrentConfig.Encoding)

	require.Len(t, vc.messagesOfType(domain.MessageVideoConfigUpdate), 1)
	assert.Empty(t, vp.messagesOfType(domain.MessageVideoConfigUpdate))
}

func TestVideoConfigUpdate_ConsumerRejected(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	svc.HandleMessage(context.Background(), vc, domain.Message{
		Type: domain.MessageVideoConfigUpdate,
	})

	assert.NotEmpty(t, vc.messagesOfType(domain.MessageError))
}

func TestStreamLifecycle_BroadcastToConsumers(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	svc.HandleMessage(context.Background(), vp, domain.Message{Type: domain.MessageStreamStarted})
	svc.HandleMessage(context.Background(), vp, domain.Message{Type: domain.MessageStreamStopped, Reason: "done"})

	require.Len(t, vc.messagesOfType(domain.MessageStreamStarted), 1)
	stopped := vc.messagesOfType(domain.MessageStreamStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "done", stopped[0].Reason)
	assert.Empty(t, vp.messagesOfType(domain.MessageStreamStarted))
}

func TestRecoveryTriggered_ConsumerReport(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)
	other := joinVideo(t, svc, "vc2", domain.RoleConsumer, ws, room)

	svc.HandleMessage(context.Background(), vc, domain.Message{
		Type:   domain.MessageRecoveryTriggered,
		Policy: string(domain.RecoveryFreezeLastFrame),
		Reason: "frame timeout",
	})

	require.Len(t, vp.messagesOfType(domain.MessageRecoveryTriggered), 1)
	require.Len(t, other.messagesOfType(domain.MessageRecoveryTriggered), 1)
	assert.Empty(t, vc.messagesOfType(domain.MessageRecoveryTriggered))
}

func TestVideoEmergencyStop_ReachesWholeRoom(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	svc.HandleMessage(context.Background(), vp, domain.Message{
		Type:   domain.MessageEmergencyStop,
		Reason: "halt",
	})

	require.Len(t, vc.messagesOfType(domain.MessageEmergencyStop), 1)
	require.Len(t, vp.messagesOfType(domain.MessageEmergencyStop), 1)
}

func TestStreamStats_UpdatesTelemetry(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	stats, err := json.Marshal(map[string]int64{"frame_count": 900, "total_bytes": 1 << 20})
	require.NoError(t, err)

	svc.HandleMessage(context.Background(), vp, domain.Message{
		Type:  domain.MessageStreamStats,
		Stats: stats,
	})

	state, err := svc.GetRoomState(context.Background(), ws, room)
	require.NoError(t, err)
	assert.Equal(t, int64(900), state.FrameCount)
	assert.Equal(t, int64(1<<20), state.TotalBytes)
	assert.NotNil(t, state.LastFrameAt)

	require.Len(t, vc.messagesOfType(domain.MessageStreamStats), 1)
}

func TestVideoDeleteRoom_ClosesSessions(t *testing.T) {
	svc, ws, room := newVideoFixture(t)

	vp := joinVideo(t, svc, "vp", domain.RoleProducer, ws, room)
	vc := joinVideo(t, svc, "vc", domain.RoleConsumer, ws, room)

	require.True(t, svc.DeleteRoom(context.Background(), ws, room))
	assert.True(t, vp.isClosed())
	assert.True(t, vc.isClosed())
	assert.False(t, svc.DeleteRoom(context.Background(), ws, room))
}
