package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"robofabric/internal/core/domain"
	"robofabric/internal/core/services"
	"robofabric/internal/infrastructure/repositories/memory"
)

type testFabric struct {
	server   *httptest.Server
	robotics *services.RoboticsService
	video    *services.VideoService
}

func newTestFabric(t *testing.T) *testFabric {
	t.Helper()

	robotics := services.NewRoboticsService(memory.NewRoboticsRoomRepository(), nil, zap.NewNop())
	video := services.NewVideoService(memory.NewVideoRoomRepository(), nil, zap.NewNop())

	wsServer := NewWebSocketServer(robotics, video, nil, Config{
		PingInterval:      10 * time.Second,
		PongTimeout:       20 * time.Second,
		WriteTimeout:      2 * time.Second,
		JoinTimeout:       2 * time.Second,
		OutboundQueueSize: 64,
		MaxMessageSize:    64 * 1024,
	}, zap.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/robotics/workspaces/:workspace_id/rooms/:room_id/ws", wsServer.HandleRobotics)
	router.GET("/video/workspaces/:workspace_id/rooms/:room_id/ws", wsServer.HandleVideo)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	t.Cleanup(robotics.Shutdown)
	t.Cleanup(video.Shutdown)

	return &testFabric{server: server, robotics: robotics, video: video}
}

func (f *testFabric) dial(t *testing.T, proto, workspace, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/" + proto + "/workspaces/" + workspace + "/rooms/" + room + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readMessage(t *testing.T, conn *websocket.Conn) domain.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg domain.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func joinAs(t *testing.T, conn *websocket.Conn, id, role string) domain.Message {
	t.Helper()
	sendJSON(t, conn, map[string]string{"participant_id": id, "role": role})
	return readMessage(t, conn)
}

func TestHandshake_ProducerJoinAndUpdateFlow(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	producer := f.dial(t, "robotics", string(ws), string(room))
	joined := joinAs(t, producer, "p1", "producer")
	assert.Equal(t, domain.MessageJoined, joined.Type)
	assert.Equal(t, room, joined.RoomID)
	assert.Equal(t, domain.RoleProducer, joined.Role)

	consumer := f.dial(t, "robotics", string(ws), string(room))
	joined = joinAs(t, consumer, "c1", "consumer")
	assert.Equal(t, domain.MessageJoined, joined.Type)

	data, err := json.Marshal([]domain.JointUpdate{{Name: "shoulder", Value: 45.0}})
	require.NoError(t, err)
	sendJSON(t, producer, domain.Message{Type: domain.MessageJointUpdate, Data: data})

	got := readMessage(t, consumer)
	assert.Equal(t, domain.MessageJointUpdate, got.Type)
	joints, err := got.JointList()
	require.NoError(t, err)
	require.Len(t, joints, 1)
	assert.Equal(t, "shoulder", joints[0].Name)
	assert.Equal(t, 45.0, joints[0].Value)
	assert.NotEmpty(t, got.Timestamp)

	state, err := f.robotics.GetRoomState(context.Background(), ws, room)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"shoulder": 45.0}, state.Joints)
}

func TestHandshake_SecondProducerRejectedAndClosed(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	first := f.dial(t, "robotics", string(ws), string(room))
	joined := joinAs(t, first, "p1", "producer")
	require.Equal(t, domain.MessageJoined, joined.Type)

	second := f.dial(t, "robotics", string(ws), string(room))
	errMsg := joinAs(t, second, "p2", "producer")
	assert.Equal(t, domain.MessageError, errMsg.Type)
	assert.Contains(t, errMsg.Message, "producer")

	// The server closes the rejected socket.
	second.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, readErr := second.ReadMessage()
	assert.Error(t, readErr)

	// The original producer keeps working.
	sendJSON(t, first, domain.Message{Type: domain.MessageHeartbeat})
	ack := readMessage(t, first)
	assert.Equal(t, domain.MessageHeartbeatAck, ack.Type)
}

func TestHandshake_UnknownRoomRejected(t *testing.T) {
	f := newTestFabric(t)

	conn := f.dial(t, "robotics", "W", "missing")
	errMsg := joinAs(t, conn, "p1", "producer")
	assert.Equal(t, domain.MessageError, errMsg.Type)
	assert.Contains(t, errMsg.Message, "not found")
}

func TestHandshake_NonJoinFirstFrameRejected(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	conn := f.dial(t, "robotics", string(ws), string(room))
	sendJSON(t, conn, domain.Message{Type: domain.MessageJointUpdate})

	errMsg := readMessage(t, conn)
	assert.Equal(t, domain.MessageError, errMsg.Type)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, readErr := conn.ReadMessage()
	assert.Error(t, readErr)
}

func TestHandshake_InvalidRoleRejected(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	conn := f.dial(t, "robotics", string(ws), string(room))
	errMsg := joinAs(t, conn, "p1", "director")
	assert.Equal(t, domain.MessageError, errMsg.Type)
}

func TestReadLoop_MalformedFrameKeepsSessionOpen(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	conn := f.dial(t, "robotics", string(ws), string(room))
	joined := joinAs(t, conn, "p1", "producer")
	require.Equal(t, domain.MessageJoined, joined.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	errMsg := readMessage(t, conn)
	assert.Equal(t, domain.MessageError, errMsg.Type)

	// Unknown type tags are protocol violations but not fatal either.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"warp_drive"}`)))
	errMsg = readMessage(t, conn)
	assert.Equal(t, domain.MessageError, errMsg.Type)

	sendJSON(t, conn, domain.Message{Type: domain.MessageHeartbeat})
	ack := readMessage(t, conn)
	assert.Equal(t, domain.MessageHeartbeatAck, ack.Type)
}

func TestReadLoop_BinaryFrameRejected(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	conn := f.dial(t, "robotics", string(ws), string(room))
	joined := joinAs(t, conn, "p1", "producer")
	require.Equal(t, domain.MessageJoined, joined.Type)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	errMsg := readMessage(t, conn)
	assert.Equal(t, domain.MessageError, errMsg.Type)
	assert.Contains(t, errMsg.Message, "binary")
}

func TestDisconnect_EvictsParticipant(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.robotics.CreateRoom(context.Background(), "W", "R1")
	require.NoError(t, err)

	conn := f.dial(t, "robotics", string(ws), string(room))
	joined := joinAs(t, conn, "p1", "producer")
	require.Equal(t, domain.MessageJoined, joined.Type)

	conn.Close()

	require.Eventually(t, func() bool {
		info, err := f.robotics.GetRoomInfo(context.Background(), ws, room)
		return err == nil && info.Participants.Producer == nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestVideoHandshake_ParticipantAnnouncements(t *testing.T) {
	f := newTestFabric(t)
	ws, room, err := f.video.CreateRoom(context.Background(), "W", "V1", nil, nil)
	require.NoError(t, err)

	producer := f.dial(t, "video", string(ws), string(room))
	joined := joinAs(t, producer, "vp", "producer")
	require.Equal(t, domain.MessageJoined, joined.Type)

	consumer := f.dial(t, "video", string(ws), string(room))
	joined = joinAs(t, consumer, "vc", "consumer")
	require.Equal(t, domain.MessageJoined, joined.Type)

	// The producer is told about the new consumer.
	ann := readMessage(t, producer)
	assert.Equal(t, domain.MessageParticipantJoined, ann.Type)
	assert.Equal(t, domain.ParticipantID("vc"), ann.ParticipantID)
	assert.Equal(t, domain.RoleConsumer, ann.Role)

	// Departure is announced too.
	consumer.Close()
	ann = readMessage(t, producer)
	assert.Equal(t, domain.MessageParticipantLeft, ann.Type)
	assert.Equal(t, domain.ParticipantID("vc"), ann.ParticipantID)
}
