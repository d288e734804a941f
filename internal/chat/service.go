package chat

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"threadhub/internal/repo"
)

// Service implements thread resolution and message dispatch on top of
// the durable thread/message/user stores.
type Service struct {
	threads  repo.ThreadRepository
	messages repo.MessageRepository
	users    repo.UserRepository
	logger   *zap.Logger

	// Per-pair serialization for direct-thread creation. Without it,
	// two concurrent first messages between the same users would race
	// the find-or-create and produce duplicate direct threads.
	pairMu    sync.Mutex
	pairLocks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(threads repo.ThreadRepository, messages repo.MessageRepository, users repo.UserRepository, logger *zap.Logger) *Service {
	return &Service{
		threads:   threads,
		messages:  messages,
		users:     users,
		logger:    logger,
		pairLocks: make(map[string]*pairLock),
	}
}

// lockPair acquires the mutual-exclusion token for a canonical pair
// key and returns the release func. Locks are reference-counted so the
// map does not grow with every pair ever seen.
func (s *Service) lockPair(key string) func() {
	s.pairMu.Lock()
	l, ok := s.pairLocks[key]
	if !ok {
		l = &pairLock{}
		s.pairLocks[key] = l
	}
	l.refs++
	s.pairMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.pairMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.pairLocks, key)
		}
		s.pairMu.Unlock()
	}
}

// storeErr marks a collaborator failure as retryable for callers.
func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
