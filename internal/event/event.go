package event

import "encoding/json"

// Client -> Server
const (
	EventAnnounceIdentity = "announce-identity"
	EventJoinThread       = "join-thread"
	EventLeaveThread      = "leave-thread"
	EventSendMessage      = "send-message"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
)

// Server -> Client
const (
	EventConnected         = "connected"
	EventAck               = "ack"
	EventMessage           = "message"
	EventMessageSent       = "message-sent"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventError             = "socket-error"
)

// WsEvent is the wire envelope for every WebSocket frame in both
// directions. ID is a client-chosen correlation id on inbound events;
// Ref echoes it back on acks so the client can match responses.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	ID      string          `json:"id,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// NewEvent builds an outbound envelope from a payload struct.
func NewEvent(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// NewAck builds an ack envelope referencing the inbound event id.
func NewAck(ref string, payload any) (WsEvent, error) {
	ev, err := NewEvent(EventAck, payload)
	if err != nil {
		return WsEvent{}, err
	}
	ev.Ref = ref
	return ev, nil
}
