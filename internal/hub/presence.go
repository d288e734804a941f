package hub

import "sync"

// PresenceRegistry tracks which connections each user currently holds.
// A user is online while at least one connection is registered. The
// registry is process-local; running several instances needs an
// external broadcast layer this service does not provide.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
	byConn map[string]string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// AddConnection registers a connection for the user. Idempotent.
func (p *PresenceRegistry) AddConnection(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		p.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	p.byConn[connID] = userID
}

// RemoveConnection drops a connection and reports the owning user and
// whether that user just went offline (last connection removed).
func (p *PresenceRegistry) RemoveConnection(connID string) (userID string, offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.byConn[connID]
	if !ok {
		return "", false
	}
	delete(p.byConn, connID)

	conns := p.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.byUser, userID)
		return userID, true
	}
	return userID, false
}

// ConnectionsFor returns the user's live connection ids, empty when
// offline.
func (p *PresenceRegistry) ConnectionsFor(userID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := p.byUser[userID]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// UserFor returns the user owning a connection, if any.
func (p *PresenceRegistry) UserFor(connID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	userID, ok := p.byConn[connID]
	return userID, ok
}

// IsOnline reports whether the user has at least one live connection.
func (p *PresenceRegistry) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// Counts returns (total connections, distinct online users).
func (p *PresenceRegistry) Counts() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byConn), len(p.byUser)
}
