package hub

import (
	"github.com/samber/lo"

	"threadhub/internal/model"
)

// MonitorService gathers hub statistics for the monitor API
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	totalConnected, onlineUsers := ms.hub.presence.Counts()

	status := "healthy"
	if totalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnected: totalConnected,
			OnlineUsers:    onlineUsers,
		},
		Rooms:  ms.getRoomStats(),
		Typing: model.TypingStats{ActiveEntries: ms.hub.typing.Active()},
	}
}

// getRoomStats walks every shard to collect per-channel membership
func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	for _, bucket := range ms.hub.shards {
		bucket.RLock()
		for threadID, room := range bucket.rooms {
			userIDs := lo.Uniq(lo.FilterMap(lo.Values(room), func(c *Client, _ int) (string, bool) {
				id := c.Identity()
				return id, id != ""
			}))

			stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
				ThreadID:    threadID,
				Subscribers: len(room),
				UserIDs:     userIDs,
			})
			stats.TotalRooms++
		}
		bucket.RUnlock()
	}

	return stats
}
