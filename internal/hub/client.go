package hub

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"threadhub/internal/event"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound events
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound events
	kickOnFull         = true                   // when true, disconnect client when egress is full
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

// Client is one WebSocket connection. A user may hold several clients
// at once (multiple tabs or devices); each carries its own identity
// binding and set of joined thread channels.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub

	egress chan event.WsEvent

	// authUserID is the identity verified from the handshake token,
	// empty for unauthenticated connections. Set once, never mutated.
	authUserID string

	mu     sync.RWMutex
	userID string              // bound via announce-identity
	joined map[string]struct{} // thread ids this client subscribed to

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

// RegisterClient creates a client for an upgraded connection and hands
// it to the hub. Returns nil when registration times out.
func RegisterClient(conn *websocket.Conn, authUserID string, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		ID:         uuid.New().String(),
		conn:       conn,
		hub:        h,
		egress:     make(chan event.WsEvent, sendBufSize),
		authUserID: authUserID,
		joined:     make(map[string]struct{}),
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}

	select {
	case h.register <- client:
		go client.readMessages()
		go client.writeMessages()
		log.Printf("client %s registered (authenticated=%v)", client.ID, authUserID != "")
		return client
	case <-time.After(registerTimeout):
		log.Printf("failed to register client %s: timeout", client.ID)
		cancel()
		conn.Close()
		return nil
	}
}

// Identity returns the effective user identity of the connection: the
// announced one, falling back to the handshake-verified one.
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.userID != "" {
		return c.userID
	}
	return c.authUserID
}

// BindIdentity associates the connection with a user.
func (c *Client) BindIdentity(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Client) markJoined(threadID string) {
	c.mu.Lock()
	c.joined[threadID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) markLeft(threadID string) {
	c.mu.Lock()
	delete(c.joined, threadID)
	c.mu.Unlock()
}

// JoinedThreads snapshots the client's channel memberships.
func (c *Client) JoinedThreads() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	return out
}

func (c *Client) readMessages() {
	defer func() {
		select {
		case c.hub.unregister <- c:
			// unregistered
		case <-time.After(unregisterTimeout):
			log.Printf("failed to unregister client %s: timeout", c.ID)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					log.Printf("client disconnected: %v", c.ID)
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					log.Printf("unexpected close for %s: %v", c.ID, err)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					log.Printf("client %s timed out - closing connection", c.ID)
					return
				}

				log.Printf("error reading from client %s: %v", c.ID, err)
				return
			}

			c.hub.logEvent("in", ev, c.ID)

			// Non-blocking handoff to the worker pool so a slow
			// handler never stalls the read pump
			select {
			case c.hub.inbound <- inboundMessage{client: c, event: ev}:
				// accepted for processing
			case <-time.After(inboundSendTimeout):
				log.Printf("inbound send timeout: dropping client %s", c.ID)
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.egress:
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
					log.Printf("connection closed: %v", err)
				}
				return
			}

			c.hub.logEvent("out", ev, c.ID)

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("write error for client %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("ping error for client %s: %v", c.ID, err)
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Send enqueues an outbound event, applying the egress-full policy on
// timeout.
func (c *Client) Send(ev event.WsEvent) {
	select {
	case c.egress <- ev:
		// enqueued
	case <-time.After(sendTimeout):
		log.Printf("egress full for client %s", c.ID)
		if kickOnFull {
			select {
			case c.hub.unregister <- c:
				// unregistered
			case <-time.After(unregisterTimeout):
				log.Printf("failed to unregister client %s: timeout", c.ID)
			}
		}
	case <-c.ctx.Done():
		// client already closed
	}
}

// Close shuts the client down exactly once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()
		close(c.egress)

		// Wait for writeMessages to close conn, or force close after
		// a safety timeout
		go func() {
			select {
			case <-c.connClosed:
				// writeMessages closed it
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				log.Printf("safety timeout: force closed connection for client %s", c.ID)
			}
		}()
	})
}

// IsClosed returns true once Close has run.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}
