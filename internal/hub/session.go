package hub

import (
	"encoding/json"
	"log"

	"threadhub/internal/chat"
	"threadhub/internal/event"
	"threadhub/internal/model"
)

// handleEvent is the per-connection state machine: it relays events
// between the network boundary, the ephemeral registries and the chat
// service. Every failure is converted into an ack/error event; nothing
// here terminates the connection.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventAnnounceIdentity:
		h.handleAnnounceIdentity(ev, c)
	case event.EventJoinThread:
		h.handleJoinThread(ev, c)
	case event.EventLeaveThread:
		h.handleLeaveThread(ev, c)
	case event.EventSendMessage:
		h.handleSendMessage(ev, c)
	case event.EventTypingStart:
		h.handleTypingStart(ev, c)
	case event.EventTypingStop:
		h.handleTypingStop(ev, c)
	default:
		log.Printf("unknown event type: %s", ev.Event)
	}
}

func (h *Hub) handleAnnounceIdentity(ev event.WsEvent, c *Client) {
	var payload event.AnnounceIdentityPayload
	_ = json.Unmarshal(ev.Payload, &payload)

	// Legacy precedence: a declared identity wins over the handshake
	// one, but only while the permissive mode is enabled.
	userID := c.authUserID
	if h.allowDeclaredIdentity && payload.UserID != "" {
		userID = payload.UserID
	}
	if userID == "" {
		h.sendError(c, ev.ID, errMessage(chat.ErrIdentityRequired))
		return
	}

	c.BindIdentity(userID)
	h.presence.AddConnection(userID, c.ID)

	h.ack(c, ev.ID, event.AnnounceAck{Success: true, UserID: userID})
}

func (h *Hub) handleJoinThread(ev event.WsEvent, c *Client) {
	var payload event.JoinThreadPayload
	_ = json.Unmarshal(ev.Payload, &payload)

	if payload.ThreadID == "" {
		h.sendError(c, ev.ID, errMessage(chat.ErrThreadRequired))
		return
	}
	userID := c.Identity()
	if userID == "" {
		h.sendError(c, ev.ID, errMessage(chat.ErrIdentityRequired))
		return
	}

	thread, err := h.chats.GetByID(h.ctx, payload.ThreadID)
	if err != nil {
		h.sendError(c, ev.ID, errMessage(err))
		return
	}
	if !thread.HasParticipant(userID) {
		h.sendError(c, ev.ID, errMessage(chat.ErrNotAParticipant))
		return
	}

	h.joinRoom(payload.ThreadID, c)
	h.ack(c, ev.ID, event.JoinAck{Success: true, ThreadID: payload.ThreadID})
}

func (h *Hub) handleLeaveThread(ev event.WsEvent, c *Client) {
	var payload event.LeaveThreadPayload
	_ = json.Unmarshal(ev.Payload, &payload)
	if payload.ThreadID == "" {
		return
	}

	h.leaveRoom(payload.ThreadID, c)

	if userID := c.Identity(); userID != "" {
		h.typing.Stop(payload.ThreadID, userID)
		h.notifyStoppedTyping(payload.ThreadID, userID, exceptConn(c.ID))
	}
}

func (h *Hub) handleSendMessage(ev event.WsEvent, c *Client) {
	var payload event.SendMessagePayload
	_ = json.Unmarshal(ev.Payload, &payload)

	userID := c.Identity()
	if userID == "" {
		h.sendError(c, ev.ID, errMessage(chat.ErrIdentityRequired))
		return
	}

	switch {
	case payload.ThreadID != "":
		chat, err := h.chats.SendToThread(h.ctx, payload.ThreadID, userID, payload.Message)
		if err != nil {
			h.sendError(c, ev.ID, errMessage(err))
			return
		}

		// Other subscribers of the thread channel get the message;
		// the sending connection gets the echo.
		if out, err := event.NewEvent(event.EventMessage, chat); err == nil {
			h.publishToRoom(out, payload.ThreadID, exceptConn(c.ID))
		}
		h.echoAndAck(c, ev.ID, chat)

	case payload.ReceiverID != "":
		chat, err := h.chats.SendDirect(h.ctx, userID, payload.ReceiverID, payload.Message)
		if err != nil {
			h.sendError(c, ev.ID, errMessage(err))
			return
		}

		// Target the receiver's live connections directly instead of
		// the thread channel: if the receiver also joined the channel a
		// room broadcast would deliver the message twice.
		if out, err := event.NewEvent(event.EventMessage, chat); err == nil {
			for _, connID := range h.presence.ConnectionsFor(payload.ReceiverID) {
				if connID == c.ID {
					continue
				}
				if receiver := h.clientByID(connID); receiver != nil {
					receiver.Send(out)
				}
			}
		}
		h.echoAndAck(c, ev.ID, chat)

	default:
		h.sendError(c, ev.ID, errMessage(chat.ErrDestinationRequired))
	}
}

func (h *Hub) handleTypingStart(ev event.WsEvent, c *Client) {
	var payload event.TypingPayload
	_ = json.Unmarshal(ev.Payload, &payload)

	userID := c.Identity()
	if userID == "" || payload.ThreadID == "" {
		return
	}

	// Typing is ephemeral: an unauthorized or unknown thread is
	// dropped silently, matching the no-ack contract of this event.
	thread, err := h.chats.GetByID(h.ctx, payload.ThreadID)
	if err != nil || !thread.HasParticipant(userID) {
		return
	}

	h.typing.Start(payload.ThreadID, userID)

	// Exclude only the emitting connection: the typist's other devices
	// still see the indicator.
	if out, err := event.NewEvent(event.EventUserTyping, event.TypingNotice{
		ThreadID: payload.ThreadID,
		UserID:   userID,
	}); err == nil {
		h.publishToRoom(out, payload.ThreadID, exceptConn(c.ID))
	}
}

func (h *Hub) handleTypingStop(ev event.WsEvent, c *Client) {
	var payload event.TypingPayload
	_ = json.Unmarshal(ev.Payload, &payload)

	userID := c.Identity()
	if userID == "" || payload.ThreadID == "" {
		return
	}

	h.typing.Stop(payload.ThreadID, userID)
	h.notifyStoppedTyping(payload.ThreadID, userID, exceptConn(c.ID))
}

// onTypingExpired runs when a debounce timer fires with no renewed
// activity. No connection is at hand here, so every connection of the
// typist is excluded.
func (h *Hub) onTypingExpired(threadID, userID string) {
	h.notifyStoppedTyping(threadID, userID, exceptUser(userID))
}

func (h *Hub) notifyStoppedTyping(threadID, userID string, skip func(*Client) bool) {
	out, err := event.NewEvent(event.EventUserStoppedTyping, event.TypingNotice{
		ThreadID: threadID,
		UserID:   userID,
	})
	if err != nil {
		return
	}
	h.publishToRoom(out, threadID, skip)
}

// echoAndAck sends the message-sent echo (so the sender's own devices
// render their sent message) and the ack for the request.
func (h *Hub) echoAndAck(c *Client, ref string, chat *model.ChatMessage) {
	if echo, err := event.NewEvent(event.EventMessageSent, chat); err == nil {
		c.Send(echo)
	}
	h.ack(c, ref, event.SendAck{Success: true, Chat: chat})
}

func (h *Hub) ack(c *Client, ref string, payload any) {
	if ref == "" {
		return
	}
	if out, err := event.NewAck(ref, payload); err == nil {
		c.Send(out)
	}
}

// sendError reports a failed request on both surfaces the legacy
// clients rely on: the ack (when the request carried an id) and the
// socket-error event.
func (h *Hub) sendError(c *Client, ref string, message string) {
	payload := event.ErrorPayload{Message: message}
	h.ack(c, ref, payload)
	if out, err := event.NewEvent(event.EventError, payload); err == nil {
		c.Send(out)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
