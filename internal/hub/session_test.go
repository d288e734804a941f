package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"threadhub/internal/chat"
	"threadhub/internal/event"
	"threadhub/internal/model"
)

// fakeBackend implements ChatBackend in memory so the session tests run
// against real WebSocket connections without a store.
type fakeBackend struct {
	mu      sync.Mutex
	threads map[string]*model.Thread
	seq     int
}

func newFakeBackend(threads ...*model.Thread) *fakeBackend {
	b := &fakeBackend{threads: make(map[string]*model.Thread)}
	for _, t := range threads {
		b.threads[t.ID.Hex()] = t
	}
	return b
}

func testThread(kind string, participants ...string) *model.Thread {
	return &model.Thread{
		ID:           primitive.NewObjectID(),
		Type:         kind,
		Participants: participants,
	}
}

func (b *fakeBackend) GetByID(_ context.Context, threadID string) (*model.Thread, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.threads[threadID]; ok {
		return t, nil
	}
	return nil, chat.ErrThreadNotFound
}

func (b *fakeBackend) SendToThread(_ context.Context, threadID, senderID, text string) (*model.ChatMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return nil, chat.ErrEmptyMessage
	}
	thread, ok := b.threads[threadID]
	if !ok {
		return nil, chat.ErrThreadNotFound
	}
	if !thread.HasParticipant(senderID) {
		return nil, chat.ErrNotAParticipant
	}

	b.seq++
	return &model.ChatMessage{
		ID:        fmt.Sprintf("m%d", b.seq),
		ThreadID:  threadID,
		Sender:    model.UserRef{ID: senderID},
		Message:   strings.TrimSpace(text),
		CreatedAt: time.Now(),
	}, nil
}

func (b *fakeBackend) SendDirect(ctx context.Context, senderID, receiverID, text string) (*model.ChatMessage, error) {
	b.mu.Lock()
	var direct *model.Thread
	for _, t := range b.threads {
		if t.Type == model.ThreadTypeDirect && t.HasParticipant(senderID) && t.HasParticipant(receiverID) {
			direct = t
			break
		}
	}
	if direct == nil {
		direct = testThread(model.ThreadTypeDirect, senderID, receiverID)
		b.threads[direct.ID.Hex()] = direct
	}
	b.mu.Unlock()

	return b.SendToThread(ctx, direct.ID.Hex(), senderID, text)
}

func newSessionHub(t *testing.T, backend ChatBackend) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(Config{
		Chats:                 backend,
		Logger:                zap.NewNop(),
		AllowDeclaredIdentity: true,
	})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return h, srv
}

// wsClient drives one live connection from the test side.
type wsClient struct {
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	w := &wsClient{conn: conn}
	w.waitFor(t, event.EventConnected)
	return w
}

func (w *wsClient) send(t *testing.T, ev event.WsEvent) {
	t.Helper()
	require.NoError(t, w.conn.WriteJSON(ev))
}

// waitFor reads frames until the named event arrives, skipping
// everything else.
func (w *wsClient) waitFor(t *testing.T, name string) event.WsEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, w.conn.SetReadDeadline(deadline))
		var ev event.WsEvent
		require.NoError(t, w.conn.ReadJSON(&ev))
		if ev.Event == name {
			return ev
		}
	}
	t.Fatalf("timed out waiting for %q", name)
	return event.WsEvent{}
}

// drain reads every frame delivered within the window. The connection
// must not be read from again afterwards.
func (w *wsClient) drain(t *testing.T, window time.Duration) []event.WsEvent {
	t.Helper()
	require.NoError(t, w.conn.SetReadDeadline(time.Now().Add(window)))
	var out []event.WsEvent
	for {
		var ev event.WsEvent
		if err := w.conn.ReadJSON(&ev); err != nil {
			return out
		}
		out = append(out, ev)
	}
}

func payloadOf[T any](t *testing.T, ev event.WsEvent) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.Payload, &out))
	return out
}

func announce(t *testing.T, w *wsClient, userID string) {
	t.Helper()
	raw, err := json.Marshal(event.AnnounceIdentityPayload{UserID: userID})
	require.NoError(t, err)
	w.send(t, event.WsEvent{Event: event.EventAnnounceIdentity, Payload: raw, ID: "announce-" + userID})

	ack := w.waitFor(t, event.EventAck)
	require.Equal(t, "announce-"+userID, ack.Ref)
	require.True(t, payloadOf[event.AnnounceAck](t, ack).Success)
}

func join(t *testing.T, w *wsClient, threadID string) {
	t.Helper()
	raw, err := json.Marshal(event.JoinThreadPayload{ThreadID: threadID})
	require.NoError(t, err)
	w.send(t, event.WsEvent{Event: event.EventJoinThread, Payload: raw, ID: "join"})

	ack := w.waitFor(t, event.EventAck)
	require.Equal(t, "join", ack.Ref)
	require.True(t, payloadOf[event.JoinAck](t, ack).Success)
}

func TestSessionAnnouncePopulatesPresence(t *testing.T) {
	h, srv := newSessionHub(t, newFakeBackend())

	w := dial(t, srv)
	announce(t, w, "alice")

	require.Eventually(t, func() bool {
		return h.Presence().IsOnline("alice")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionJoinUnknownThread(t *testing.T) {
	_, srv := newSessionHub(t, newFakeBackend())

	w := dial(t, srv)
	announce(t, w, "alice")

	raw, _ := json.Marshal(event.JoinThreadPayload{ThreadID: primitive.NewObjectID().Hex()})
	w.send(t, event.WsEvent{Event: event.EventJoinThread, Payload: raw, ID: "join"})

	errEv := w.waitFor(t, event.EventError)
	assert.Equal(t, chat.ErrThreadNotFound.Error(), payloadOf[event.ErrorPayload](t, errEv).Message)
}

func TestSessionJoinRequiresParticipant(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob")
	_, srv := newSessionHub(t, newFakeBackend(thread))

	w := dial(t, srv)
	announce(t, w, "carol")

	raw, _ := json.Marshal(event.JoinThreadPayload{ThreadID: thread.ID.Hex()})
	w.send(t, event.WsEvent{Event: event.EventJoinThread, Payload: raw, ID: "join"})

	errEv := w.waitFor(t, event.EventError)
	assert.Equal(t, chat.ErrNotAParticipant.Error(), payloadOf[event.ErrorPayload](t, errEv).Message)
}

func TestSessionThreadMessageFanout(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob", "carol")
	_, srv := newSessionHub(t, newFakeBackend(thread))

	alice := dial(t, srv)
	announce(t, alice, "alice")
	join(t, alice, thread.ID.Hex())

	bob := dial(t, srv)
	announce(t, bob, "bob")
	join(t, bob, thread.ID.Hex())

	raw, _ := json.Marshal(event.SendMessagePayload{ThreadID: thread.ID.Hex(), Message: "hello"})
	alice.send(t, event.WsEvent{Event: event.EventSendMessage, Payload: raw, ID: "42"})

	// Subscribers other than the sender get the message.
	msg := payloadOf[model.ChatMessage](t, bob.waitFor(t, event.EventMessage))
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "alice", msg.Sender.ID)
	assert.Equal(t, thread.ID.Hex(), msg.ThreadID)

	// The sender gets the echo and the ack, never the room copy.
	frames := alice.drain(t, 300*time.Millisecond)
	var sawEcho, sawAck bool
	for _, ev := range frames {
		switch ev.Event {
		case event.EventMessageSent:
			sawEcho = true
		case event.EventAck:
			sawAck = true
			assert.Equal(t, "42", ev.Ref)
			ack := payloadOf[event.SendAck](t, ev)
			require.NotNil(t, ack.Chat)
			assert.Equal(t, "hello", ack.Chat.Message)
		case event.EventMessage:
			t.Fatal("sender must not receive the room broadcast of its own message")
		}
	}
	assert.True(t, sawEcho, "missing message-sent echo")
	assert.True(t, sawAck, "missing ack")
}

func TestSessionDirectMessageTargetsReceiverConnections(t *testing.T) {
	_, srv := newSessionHub(t, newFakeBackend())

	alice := dial(t, srv)
	announce(t, alice, "alice")

	// Two devices for bob, neither subscribed to any thread channel.
	bob1 := dial(t, srv)
	announce(t, bob1, "bob")
	bob2 := dial(t, srv)
	announce(t, bob2, "bob")

	raw, _ := json.Marshal(event.SendMessagePayload{ReceiverID: "bob", Message: "ping"})
	alice.send(t, event.WsEvent{Event: event.EventSendMessage, Payload: raw, ID: "7"})

	for _, device := range []*wsClient{bob1, bob2} {
		msg := payloadOf[model.ChatMessage](t, device.waitFor(t, event.EventMessage))
		assert.Equal(t, "ping", msg.Message)
		assert.Equal(t, "alice", msg.Sender.ID)
	}

	ack := alice.waitFor(t, event.EventAck)
	assert.Equal(t, "7", ack.Ref)

	// Each device got the message exactly once.
	for _, device := range []*wsClient{bob1, bob2} {
		for _, ev := range device.drain(t, 300*time.Millisecond) {
			assert.NotEqual(t, event.EventMessage, ev.Event, "duplicate delivery")
		}
	}
}

func TestSessionSendWithoutDestination(t *testing.T) {
	_, srv := newSessionHub(t, newFakeBackend())

	w := dial(t, srv)
	announce(t, w, "alice")

	raw, _ := json.Marshal(event.SendMessagePayload{Message: "hi"})
	w.send(t, event.WsEvent{Event: event.EventSendMessage, Payload: raw, ID: "1"})

	errEv := w.waitFor(t, event.EventError)
	assert.Equal(t, chat.ErrDestinationRequired.Error(), payloadOf[event.ErrorPayload](t, errEv).Message)
}

func TestSessionTypingLifecycle(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob")
	_, srv := newSessionHub(t, newFakeBackend(thread))

	alice := dial(t, srv)
	announce(t, alice, "alice")
	join(t, alice, thread.ID.Hex())

	bob := dial(t, srv)
	announce(t, bob, "bob")
	join(t, bob, thread.ID.Hex())

	raw, _ := json.Marshal(event.TypingPayload{ThreadID: thread.ID.Hex()})
	alice.send(t, event.WsEvent{Event: event.EventTypingStart, Payload: raw})

	notice := payloadOf[event.TypingNotice](t, bob.waitFor(t, event.EventUserTyping))
	assert.Equal(t, "alice", notice.UserID)
	assert.Equal(t, thread.ID.Hex(), notice.ThreadID)

	alice.send(t, event.WsEvent{Event: event.EventTypingStop, Payload: raw})

	notice = payloadOf[event.TypingNotice](t, bob.waitFor(t, event.EventUserStoppedTyping))
	assert.Equal(t, "alice", notice.UserID)
}

func TestSessionTypingVisibleOnTypistOtherDevices(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob")
	_, srv := newSessionHub(t, newFakeBackend(thread))

	// Two devices for alice, both subscribed to the thread.
	alice1 := dial(t, srv)
	announce(t, alice1, "alice")
	join(t, alice1, thread.ID.Hex())

	alice2 := dial(t, srv)
	announce(t, alice2, "alice")
	join(t, alice2, thread.ID.Hex())

	raw, _ := json.Marshal(event.TypingPayload{ThreadID: thread.ID.Hex()})
	alice1.send(t, event.WsEvent{Event: event.EventTypingStart, Payload: raw})

	// Only the emitting connection is excluded.
	notice := payloadOf[event.TypingNotice](t, alice2.waitFor(t, event.EventUserTyping))
	assert.Equal(t, "alice", notice.UserID)

	alice1.send(t, event.WsEvent{Event: event.EventTypingStop, Payload: raw})
	alice2.waitFor(t, event.EventUserStoppedTyping)

	for _, ev := range alice1.drain(t, 300*time.Millisecond) {
		assert.NotEqual(t, event.EventUserTyping, ev.Event, "emitting connection must not hear itself")
		assert.NotEqual(t, event.EventUserStoppedTyping, ev.Event)
	}
}

func TestSessionTypingExpiresWithoutStop(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob")
	h, srv := newSessionHub(t, newFakeBackend(thread))
	h.typing.debounce = 50 * time.Millisecond

	alice := dial(t, srv)
	announce(t, alice, "alice")
	join(t, alice, thread.ID.Hex())

	bob := dial(t, srv)
	announce(t, bob, "bob")
	join(t, bob, thread.ID.Hex())

	raw, _ := json.Marshal(event.TypingPayload{ThreadID: thread.ID.Hex()})
	alice.send(t, event.WsEvent{Event: event.EventTypingStart, Payload: raw})

	bob.waitFor(t, event.EventUserTyping)
	notice := payloadOf[event.TypingNotice](t, bob.waitFor(t, event.EventUserStoppedTyping))
	assert.Equal(t, "alice", notice.UserID)
}

func TestSessionDisconnectStopsTyping(t *testing.T) {
	thread := testThread(model.ThreadTypeGroup, "alice", "bob")
	h, srv := newSessionHub(t, newFakeBackend(thread))

	alice := dial(t, srv)
	announce(t, alice, "alice")
	join(t, alice, thread.ID.Hex())

	bob := dial(t, srv)
	announce(t, bob, "bob")
	join(t, bob, thread.ID.Hex())

	raw, _ := json.Marshal(event.TypingPayload{ThreadID: thread.ID.Hex()})
	alice.send(t, event.WsEvent{Event: event.EventTypingStart, Payload: raw})
	bob.waitFor(t, event.EventUserTyping)

	require.NoError(t, alice.conn.Close())

	notice := payloadOf[event.TypingNotice](t, bob.waitFor(t, event.EventUserStoppedTyping))
	assert.Equal(t, "alice", notice.UserID)

	require.Eventually(t, func() bool {
		return !h.Presence().IsOnline("alice")
	}, 2*time.Second, 10*time.Millisecond)
}
