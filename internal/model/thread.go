package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Thread types
const (
	ThreadTypeDirect = "direct"
	ThreadTypeGroup  = "group"
)

// Thread represents a conversation in MongoDB. Direct threads hold
// exactly two participants stored in sorted order; at most one direct
// thread exists per unordered pair.
type Thread struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type         string             `json:"type" bson:"type"`
	Name         string             `json:"name" bson:"name"`
	CreatedBy    string             `json:"createdBy,omitempty" bson:"created_by,omitempty"`
	Participants []string           `json:"participants" bson:"participants"`
	LastMessage  string             `json:"lastMessage" bson:"last_message"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updated_at"`
}

// HasParticipant reports whether userID belongs to the thread.
func (t *Thread) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ThreadView is a thread enriched with participant display fields,
// returned by the threads-for-user listing.
type ThreadView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	Participants []UserRef `json:"participants"`
	LastMessage  string    `json:"lastMessage"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
