package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"threadhub/internal/auth"
	"threadhub/internal/event"
	"threadhub/internal/model"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// ChatBackend is what the hub needs from the chat service: thread
// lookups for authorization and message dispatch for durable sends.
type ChatBackend interface {
	GetByID(ctx context.Context, threadID string) (*model.Thread, error)
	SendToThread(ctx context.Context, threadID, senderID, text string) (*model.ChatMessage, error)
	SendDirect(ctx context.Context, senderID, receiverID, text string) (*model.ChatMessage, error)
}

// TokenVerifier turns a handshake credential into a user identity.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client // threadID -> clientID -> client
}

// Config carries the hub's collaborators and policy switches.
type Config struct {
	Chats    ChatBackend
	Verifier TokenVerifier
	Logger   *zap.Logger

	// AllowDeclaredIdentity lets a connection bind a client-supplied
	// identity without a verified handshake token. This mirrors the
	// permissive legacy contract; keep it off unless clients cannot
	// present tokens yet.
	AllowDeclaredIdentity bool

	// AllowedOrigins for the WebSocket handshake. Empty allows all.
	AllowedOrigins []string
}

type Hub struct {
	shards [shardCount]*roomBucket

	clientsMu sync.RWMutex
	clients   map[string]*Client // clientID -> client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	presence *PresenceRegistry
	typing   *TypingCoordinator

	chats                 ChatBackend
	verifier              TokenVerifier
	allowDeclaredIdentity bool

	logger   *zap.Logger
	eventLog EventLogger
	upgrader websocket.Upgrader

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewHub(cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Hub{
		clients:               make(map[string]*Client),
		register:              make(chan *Client, 1024),
		unregister:            make(chan *Client, 1024),
		inbound:               make(chan inboundMessage, 4096), // buffer for burst handling
		presence:              NewPresenceRegistry(),
		chats:                 cfg.Chats,
		verifier:              cfg.Verifier,
		allowDeclaredIdentity: cfg.AllowDeclaredIdentity,
		logger:                logger,
		eventLog:              NewZapEventLogger(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		ctx:    ctx,
		cancel: cancel,
	}

	h.typing = NewTypingCoordinator(h.onTypingExpired)

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c.ID] = c
	h.clientsMu.Unlock()
}

// removeClient tears down everything a connection owned: channel
// subscriptions, presence, and the typing state of its user.
func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	h.clientsMu.Unlock()

	for _, threadID := range c.JoinedThreads() {
		h.leaveRoom(threadID, c)
	}

	userID, offline := h.presence.RemoveConnection(c.ID)
	if userID == "" {
		userID = c.Identity()
	}
	if userID != "" {
		for _, threadID := range h.typing.ClearUser(userID) {
			h.notifyStoppedTyping(threadID, userID, exceptUser(userID))
		}
	}
	if offline {
		log.Printf("user %s went offline", userID)
	}

	c.Close()
	log.Printf("client %s removed", c.ID)
}

func (h *Hub) clientByID(connID string) *Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[connID]
}

func getShard(threadID string) uint32 {
	if threadID == "" {
		return 0
	}

	sum := sha1.Sum([]byte(threadID))
	return binary.BigEndian.Uint32(sum[:4]) % shardCount
}

func (h *Hub) joinRoom(threadID string, c *Client) {
	b := h.shards[getShard(threadID)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[threadID]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[threadID] = room
	}
	room[c.ID] = c
	c.markJoined(threadID)
}

func (h *Hub) leaveRoom(threadID string, c *Client) {
	b := h.shards[getShard(threadID)]
	b.Lock()
	defer b.Unlock()

	if room, ok := b.rooms[threadID]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, threadID)
		}
	}
	c.markLeft(threadID)
}

// publishToRoom delivers an event to every subscriber of a thread
// channel for which skip returns false.
func (h *Hub) publishToRoom(ev event.WsEvent, threadID string, skip func(*Client) bool) {
	b := h.shards[getShard(threadID)]

	// collect clients while holding RLock
	b.RLock()
	room, ok := b.rooms[threadID]
	if !ok || len(room) == 0 {
		b.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		if skip == nil || !skip(c) {
			clients = append(clients, c)
		}
	}
	b.RUnlock()

	// deliver without holding the lock
	for _, c := range clients {
		c.Send(ev)
	}
}

func exceptConn(connID string) func(*Client) bool {
	return func(c *Client) bool { return c.ID == connID }
}

func exceptUser(userID string) func(*Client) bool {
	return func(c *Client) bool { return c.Identity() == userID }
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the request and starts the connection session.
// A handshake token is verified passively: an invalid or missing token
// never rejects the connection, it only leaves it unauthenticated.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	authUserID := ""
	if token := auth.TokenFromRequest(r); token != "" && h.verifier != nil {
		if userID, err := h.verifier.Verify(token); err == nil {
			authUserID = userID
		}
	}

	c := RegisterClient(conn, authUserID, h)
	if c == nil {
		return
	}

	connected, err := event.NewEvent(event.EventConnected, event.ConnectedPayload{
		ConnectionID:        c.ID,
		Authenticated:       authUserID != "",
		AuthenticatedUserID: authUserID,
	})
	if err == nil {
		c.Send(connected)
	}
}

// Presence exposes the registry for the monitor surface.
func (h *Hub) Presence() *PresenceRegistry {
	return h.presence
}

// Typing exposes the coordinator for the monitor surface.
func (h *Hub) Typing() *TypingCoordinator {
	return h.typing
}

// Stop shuts the hub down. Safe to call more than once; the server loop
// and the container teardown both trigger it.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		h.clientsMu.RLock()
		for _, c := range h.clients {
			c.Close()
		}
		h.clientsMu.RUnlock()

		close(h.inbound)
		h.wg.Wait()
	})
}
