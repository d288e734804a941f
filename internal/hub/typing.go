package hub

import (
	"sync"
	"time"
)

// typingDebounce is how long a typing indicator stays alive without a
// renewed typing-start.
const typingDebounce = 3 * time.Second

type typingKey struct {
	threadID string
	userID   string
}

// TypingCoordinator owns one debounce timer per (thread, user) pair.
// Starting again resets the window; expiry is strictly timer-driven,
// there is no sweep goroutine. The onExpire callback fires outside the
// coordinator lock.
type TypingCoordinator struct {
	mu       sync.Mutex
	timers   map[typingKey]*time.Timer
	debounce time.Duration
	onExpire func(threadID, userID string)
}

func NewTypingCoordinator(onExpire func(threadID, userID string)) *TypingCoordinator {
	return &TypingCoordinator{
		timers:   make(map[typingKey]*time.Timer),
		debounce: typingDebounce,
		onExpire: onExpire,
	}
}

// Start installs (or restarts) the expiry timer for the pair.
func (t *TypingCoordinator) Start(threadID, userID string) {
	key := typingKey{threadID: threadID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.debounce, func() {
		// A restart may have replaced this timer between firing and
		// acquiring the lock; only the current timer may expire the
		// entry.
		t.mu.Lock()
		current, ok := t.timers[key]
		if ok && current == timer {
			delete(t.timers, key)
		} else {
			ok = false
		}
		t.mu.Unlock()

		if ok && t.onExpire != nil {
			t.onExpire(threadID, userID)
		}
	})
	t.timers[key] = timer
}

// Stop cancels any pending timer for the pair. Safe to call when no
// timer exists.
func (t *TypingCoordinator) Stop(threadID, userID string) {
	key := typingKey{threadID: threadID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
}

// ClearUser cancels every pending timer the user holds and returns the
// thread ids that were affected so the caller can emit stop
// notifications.
func (t *TypingCoordinator) ClearUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var threads []string
	for key, timer := range t.timers {
		if key.userID == userID {
			timer.Stop()
			delete(t.timers, key)
			threads = append(threads, key.threadID)
		}
	}
	return threads
}

// Active returns the number of live typing entries.
func (t *TypingCoordinator) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
