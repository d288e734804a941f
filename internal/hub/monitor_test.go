package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"threadhub/internal/model"
)

func TestMonitorStatsIdle(t *testing.T) {
	h := NewHub(Config{Logger: zap.NewNop()})
	ms := NewMonitorService(h)

	stats := ms.GetStats()
	assert.Equal(t, "idle", stats.Status)
	assert.Zero(t, stats.Connections.TotalConnected)
	assert.Zero(t, stats.Rooms.TotalRooms)
	assert.Zero(t, stats.Typing.ActiveEntries)
}

func TestMonitorStatsLive(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob")
	h, srv := newSessionHub(t, newFakeBackend(thread))
	ms := NewMonitorService(h)

	alice := dial(t, srv)
	announce(t, alice, "alice")
	join(t, alice, thread.ID.Hex())

	bob := dial(t, srv)
	announce(t, bob, "bob")
	join(t, bob, thread.ID.Hex())

	h.typing.Start(thread.ID.Hex(), "alice")

	require.Eventually(t, func() bool {
		stats := ms.GetStats()
		return stats.Connections.TotalConnected == 2 && stats.Rooms.TotalRooms == 1
	}, 2*time.Second, 10*time.Millisecond)

	stats := ms.GetStats()
	assert.Equal(t, "healthy", stats.Status)
	assert.Equal(t, 2, stats.Connections.OnlineUsers)
	assert.Equal(t, 1, stats.Typing.ActiveEntries)

	require.Len(t, stats.Rooms.RoomDetails, 1)
	room := stats.Rooms.RoomDetails[0]
	assert.Equal(t, thread.ID.Hex(), room.ThreadID)
	assert.Equal(t, 2, room.Subscribers)
	assert.ElementsMatch(t, []string{"alice", "bob"}, room.UserIDs)
}
