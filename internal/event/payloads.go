package event

import "threadhub/internal/model"

// Inbound payloads

type AnnounceIdentityPayload struct {
	UserID string `json:"userId"`
}

type JoinThreadPayload struct {
	ThreadID string `json:"threadId"`
}

type LeaveThreadPayload struct {
	ThreadID string `json:"threadId"`
}

type SendMessagePayload struct {
	ThreadID   string `json:"threadId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
	Message    string `json:"message"`
}

type TypingPayload struct {
	ThreadID string `json:"threadId"`
}

// Outbound payloads

type ConnectedPayload struct {
	ConnectionID        string `json:"connectionId"`
	Authenticated       bool   `json:"authenticated"`
	AuthenticatedUserID string `json:"authenticatedUserId,omitempty"`
}

type AnnounceAck struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type JoinAck struct {
	Success  bool   `json:"success"`
	ThreadID string `json:"threadId"`
}

type SendAck struct {
	Success bool               `json:"success"`
	Chat    *model.ChatMessage `json:"chat"`
}

type TypingNotice struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
