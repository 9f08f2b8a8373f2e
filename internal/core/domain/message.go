package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	webrtc "github.com/pion/webrtc/v3"

	"robofabric/pkg/utils"
)

// MessageType discriminates the wire message union.
type MessageType string

const (
	// Connection and lifecycle
	MessageJoined       MessageType = "joined"
	MessageError        MessageType = "error"
	MessageHeartbeat    MessageType = "heartbeat"
	MessageHeartbeatAck MessageType = "heartbeat_ack"

	// Robot control
	MessageJointUpdate MessageType = "joint_update"
	MessageStateSync   MessageType = "state_sync"

	// Safety
	MessageEmergencyStop MessageType = "emergency_stop"

	// Video lifecycle and signaling
	MessageStreamStarted     MessageType = "stream_started"
	MessageStreamStopped     MessageType = "stream_stopped"
	MessageVideoConfigUpdate MessageType = "video_config_update"
	MessageRecoveryTriggered MessageType = "recovery_triggered"
	MessageParticipantJoined MessageType = "participant_joined"
	MessageParticipantLeft   MessageType = "participant_left"
	MessageWebRTCOffer       MessageType = "webrtc_offer"
	MessageWebRTCAnswer      MessageType = "webrtc_answer"
	MessageWebRTCIce         MessageType = "webrtc_ice"

	// Observability
	MessageStatusUpdate MessageType = "status_update"
	MessageStreamStats  MessageType = "stream_stats"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// ErrorCodeBackpressureDrop marks the notice sent to a slow consumer after
// drop-oldest kicked in on its outbound queue.
const ErrorCodeBackpressureDrop = "backpressure_drop"

// ErrorCodeRoomDeleted marks the farewell frame sent before a deleted room
// closes its sessions.
const ErrorCodeRoomDeleted = "room_deleted"

// JointUpdate is a single joint position update. Values are unclamped; the
// fabric does not validate ranges.
type JointUpdate struct {
	Name  string   `json:"name"`
	Value float64  `json:"value"`
	Speed *float64 `json:"speed,omitempty"`
}

// Message is the tagged union carried on the WebSocket wire. Exactly the
// fields relevant to the Type are set; everything else is omitted from the
// encoded frame.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`

	// Join acknowledgment and participant lifecycle
	RoomID        RoomID          `json:"room_id,omitempty"`
	WorkspaceID   WorkspaceID     `json:"workspace_id,omitempty"`
	Role          ParticipantRole `json:"role,omitempty"`
	ParticipantID ParticipantID   `json:"participant_id,omitempty"`

	// Errors
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`

	// joint_update carries a list, state_sync and status_update carry
	// objects; Data stays raw until the handler knows which.
	Data   json.RawMessage `json:"data,omitempty"`
	Source string          `json:"source,omitempty"`

	// emergency_stop, stream_stopped, recovery_triggered
	Reason string `json:"reason,omitempty"`

	// status_update
	Status string `json:"status,omitempty"`

	// video config and telemetry
	Config json.RawMessage `json:"config,omitempty"`
	Stats  json.RawMessage `json:"stats,omitempty"`
	Policy string          `json:"policy,omitempty"`

	// WebRTC signaling relays
	Offer        *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer       *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate    json.RawMessage            `json:"candidate,omitempty"`
	FromProducer ParticipantID              `json:"from_producer,omitempty"`
	FromConsumer ParticipantID              `json:"from_consumer,omitempty"`
}

var knownTypes = map[MessageType]struct{}{
	MessageJoined:            {},
	MessageError:             {},
	MessageHeartbeat:         {},
	MessageHeartbeatAck:      {},
	MessageJointUpdate:       {},
	MessageStateSync:         {},
	MessageEmergencyStop:     {},
	MessageStreamStarted:     {},
	MessageStreamStopped:     {},
	MessageVideoConfigUpdate: {},
	MessageRecoveryTriggered: {},
	MessageParticipantJoined: {},
	MessageParticipantLeft:   {},
	MessageWebRTCOffer:       {},
	MessageWebRTCAnswer:      {},
	MessageWebRTCIce:         {},
	MessageStatusUpdate:      {},
	MessageStreamStats:       {},
}

// DecodeMessage parses a single JSON text frame into the message union.
// Unknown type tags route to a protocol-violation error.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed message frame: %w", err)
	}
	if _, ok := knownTypes[msg.Type]; !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
	return msg, nil
}

// JointList decodes the Data field of a joint_update message.
func (m Message) JointList() ([]JointUpdate, error) {
	if len(m.Data) == 0 {
		return nil, nil
	}
	var joints []JointUpdate
	if err := json.Unmarshal(m.Data, &joints); err != nil {
		return nil, fmt.Errorf("invalid joint_update data: %w", err)
	}
	return joints, nil
}

// JointMap decodes the Data field of a state_sync message.
func (m Message) JointMap() (map[string]float64, error) {
	if len(m.Data) == 0 {
		return nil, nil
	}
	var joints map[string]float64
	if err := json.Unmarshal(m.Data, &joints); err != nil {
		return nil, fmt.Errorf("invalid state_sync data: %w", err)
	}
	return joints, nil
}

// ConfigUpdate decodes the Config field of a video_config_update message.
func (m Message) ConfigUpdate() (VideoConfigUpdate, error) {
	var upd VideoConfigUpdate
	if len(m.Config) == 0 {
		return upd, nil
	}
	if err := json.Unmarshal(m.Config, &upd); err != nil {
		return upd, fmt.Errorf("invalid video config update: %w", err)
	}
	return upd, nil
}

// ----- server-originated message constructors -----

func NewJoinedMessage(roomID RoomID, workspaceID WorkspaceID, role ParticipantRole) Message {
	return Message{
		Type:        MessageJoined,
		RoomID:      roomID,
		WorkspaceID: workspaceID,
		Role:        role,
		Timestamp:   utils.Timestamp(),
	}
}

func NewErrorMessage(text, code string) Message {
	return Message{
		Type:      MessageError,
		Message:   text,
		Code:      code,
		Timestamp: utils.Timestamp(),
	}
}

func NewHeartbeatAck() Message {
	return Message{
		Type:      MessageHeartbeatAck,
		Timestamp: utils.Timestamp(),
	}
}

func NewJointUpdateMessage(joints []JointUpdate, source string) Message {
	data, _ := json.Marshal(joints)
	return Message{
		Type:      MessageJointUpdate,
		Data:      data,
		Source:    source,
		Timestamp: utils.Timestamp(),
	}
}

func NewStateSyncMessage(joints map[string]float64) Message {
	data, _ := json.Marshal(joints)
	return Message{
		Type:      MessageStateSync,
		Data:      data,
		Timestamp: utils.Timestamp(),
	}
}

func NewEmergencyStopMessage(reason, source string) Message {
	return Message{
		Type:      MessageEmergencyStop,
		Reason:    reason,
		Source:    source,
		Timestamp: utils.Timestamp(),
	}
}

func NewParticipantJoinedMessage(roomID RoomID, participantID ParticipantID, role ParticipantRole) Message {
	return Message{
		Type:          MessageParticipantJoined,
		RoomID:        roomID,
		ParticipantID: participantID,
		Role:          role,
		Timestamp:     utils.Timestamp(),
	}
}

func NewParticipantLeftMessage(roomID RoomID, participantID ParticipantID, role ParticipantRole) Message {
	return Message{
		Type:          MessageParticipantLeft,
		RoomID:        roomID,
		ParticipantID: participantID,
		Role:          role,
		Timestamp:     utils.Timestamp(),
	}
}

func NewWebRTCOfferMessage(sdp string, fromProducer ParticipantID) Message {
	return Message{
		Type:         MessageWebRTCOffer,
		Offer:        &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp},
		FromProducer: fromProducer,
		Timestamp:    utils.Timestamp(),
	}
}

func NewWebRTCAnswerMessage(sdp string, fromConsumer ParticipantID) Message {
	return Message{
		Type:         MessageWebRTCAnswer,
		Answer:       &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp},
		FromConsumer: fromConsumer,
		Timestamp:    utils.Timestamp(),
	}
}

func NewWebRTCIceMessage(candidate json.RawMessage, fromProducer, fromConsumer ParticipantID) Message {
	return Message{
		Type:         MessageWebRTCIce,
		Candidate:    candidate,
		FromProducer: fromProducer,
		FromConsumer: fromConsumer,
		Timestamp:    utils.Timestamp(),
	}
}
