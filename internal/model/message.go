package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents a single chat message in MongoDB. Messages are
// immutable once created; they are never edited or deleted here.
type Message struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ThreadID  primitive.ObjectID `json:"threadId" bson:"thread_id"`
	SenderID  string             `json:"senderId" bson:"sender_id"`
	Body      string             `json:"message" bson:"body"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// UserRef carries the display fields of a user embedded in payloads.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ChatMessage is the canonical sender-enriched message payload. The
// same shape is returned by the REST handlers and broadcast over the
// WebSocket boundary.
type ChatMessage struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Sender    UserRef   `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
