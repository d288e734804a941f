package chat

import "errors"

// Request-level failures. All of these are terminal for the request
// that produced them; only ErrStoreUnavailable is worth retrying.
var (
	ErrThreadNotFound           = errors.New("thread not found")
	ErrNotAParticipant          = errors.New("you are not a participant of this thread")
	ErrEmptyMessage             = errors.New("message is required")
	ErrIdentityRequired         = errors.New("userId required")
	ErrThreadRequired           = errors.New("threadId required")
	ErrDestinationRequired      = errors.New("threadId or receiverId required")
	ErrInvalidThreadComposition = errors.New("group must have at least 2 participants")
	ErrStoreUnavailable         = errors.New("store unavailable")
)
