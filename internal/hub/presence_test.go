package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceMultipleConnections(t *testing.T) {
	p := NewPresenceRegistry()

	p.AddConnection("alice", "c1")
	p.AddConnection("alice", "c2")

	assert.True(t, p.IsOnline("alice"))
	assert.ElementsMatch(t, []string{"c1", "c2"}, p.ConnectionsFor("alice"))

	conns, users := p.Counts()
	assert.Equal(t, 2, conns)
	assert.Equal(t, 1, users)
}

func TestPresenceAddIsIdempotent(t *testing.T) {
	p := NewPresenceRegistry()

	p.AddConnection("alice", "c1")
	p.AddConnection("alice", "c1")

	conns, users := p.Counts()
	assert.Equal(t, 1, conns)
	assert.Equal(t, 1, users)
}

func TestPresenceOfflineOnlyAfterLastConnection(t *testing.T) {
	req := require.New(t)
	p := NewPresenceRegistry()

	p.AddConnection("alice", "c1")
	p.AddConnection("alice", "c2")

	userID, offline := p.RemoveConnection("c1")
	req.Equal("alice", userID)
	req.False(offline, "user still holds c2")
	req.True(p.IsOnline("alice"))

	userID, offline = p.RemoveConnection("c2")
	req.Equal("alice", userID)
	req.True(offline)
	req.False(p.IsOnline("alice"))
	req.Empty(p.ConnectionsFor("alice"))
}

func TestPresenceRemoveUnknownConnection(t *testing.T) {
	p := NewPresenceRegistry()

	userID, offline := p.RemoveConnection("ghost")
	assert.Empty(t, userID)
	assert.False(t, offline)
}

func TestPresenceUserFor(t *testing.T) {
	p := NewPresenceRegistry()
	p.AddConnection("alice", "c1")

	userID, ok := p.UserFor("c1")
	assert.True(t, ok)
	assert.Equal(t, "alice", userID)

	_, ok = p.UserFor("c2")
	assert.False(t, ok)
}

func TestPresenceIgnoresEmptyKeys(t *testing.T) {
	p := NewPresenceRegistry()

	p.AddConnection("", "c1")
	p.AddConnection("alice", "")

	conns, users := p.Counts()
	assert.Zero(t, conns)
	assert.Zero(t, users)
}
