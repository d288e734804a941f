package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Typing      TypingStats     `json:"typing"`
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"` // live WebSocket connections
	OnlineUsers    int `json:"onlineUsers"`    // distinct users with >=1 connection
}

// RoomStats holds thread channel statistics
type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	RoomDetails []RoomInfo `json:"roomDetails"`
}

// RoomInfo contains information about a single thread channel
type RoomInfo struct {
	ThreadID    string   `json:"threadId"`
	Subscribers int      `json:"subscribers"`
	UserIDs     []string `json:"userIds"`
}

// TypingStats holds typing coordinator statistics
type TypingStats struct {
	ActiveEntries int `json:"activeEntries"` // pending typing debounce timers
}
