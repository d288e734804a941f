package hub

import (
	"go.uber.org/zap"

	"threadhub/internal/event"
)

// EventLogger observes every inbound and outbound envelope on a
// connection. It is composed around the client's read/write pumps
// rather than patched into them, so alternative sinks can be swapped in.
type EventLogger func(direction string, ev event.WsEvent, connID string)

// NewZapEventLogger logs socket traffic at debug level.
func NewZapEventLogger(logger *zap.Logger) EventLogger {
	return func(direction string, ev event.WsEvent, connID string) {
		logger.Debug("socket event",
			zap.String("direction", direction),
			zap.String("event", ev.Event),
			zap.String("connection_id", connID),
			zap.ByteString("payload", ev.Payload),
		)
	}
}

func (h *Hub) logEvent(direction string, ev event.WsEvent, connID string) {
	if h.eventLog != nil {
		h.eventLog(direction, ev, connID)
	}
}
