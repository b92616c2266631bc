package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vovarama1992/inbox-sync-core/internal/inbox"
)

type eventSink struct {
	mu     sync.Mutex
	events []inbox.PushEvent
}

func (s *eventSink) dispatch(ev inbox.PushEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) snapshot() []inbox.PushEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inbox.PushEvent(nil), s.events...)
}

// pushServer upgrades connections and hands them to serve.
func pushServer(t *testing.T, serve func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFramesAreDecodedToTaggedEvents(t *testing.T) {
	_, wsURL := pushServer(t, func(conn *websocket.Conn) {
		frames := []map[string]any{
			{
				"event":     "inbox_update",
				"sessionId": "sess-1",
				"message":   map[string]any{"id": "m1", "sender": "user", "content": "hi"},
			},
			{"event": "inbox_refresh"},
			{"event": "takeover_started", "sessionId": "sess-1", "takenBy": "op-7",
				"expiresAt": time.Now().Add(time.Hour).Format(time.RFC3339)},
			{"event": "takeover_ended", "sessionId": "sess-1"},
			{"event": "something_unknown"},
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteJSON(f))
		}
		// keep the connection open until the client is done
		time.Sleep(500 * time.Millisecond)
	})

	sink := &eventSink{}
	ch := NewChannel(wsURL, "", sink.dispatch, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 4
	}, 2*time.Second, 10*time.Millisecond)

	events := sink.snapshot()
	upd, ok := events[0].(inbox.UpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "sess-1", upd.SessionID)
	assert.Equal(t, "m1", upd.Message.ID)

	_, ok = events[1].(inbox.RefreshEvent)
	assert.True(t, ok)

	started, ok := events[2].(inbox.TakeoverStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "op-7", started.TakenBy)

	ended, ok := events[3].(inbox.TakeoverEndedEvent)
	require.True(t, ok)
	assert.Equal(t, "sess-1", ended.SessionID)
}

func TestJoinWritesJoinFrame(t *testing.T) {
	joined := make(chan string, 1)
	_, wsURL := pushServer(t, func(conn *websocket.Conn) {
		var f struct {
			Event     string `json:"event"`
			SessionID string `json:"sessionId"`
		}
		if err := conn.ReadJSON(&f); err == nil && f.Event == "join_conversation" {
			joined <- f.SessionID
		}
	})

	ch := NewChannel(wsURL, "", func(inbox.PushEvent) {}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	require.Eventually(t, func() bool {
		return ch.Join("sess-1") == nil
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case sess := <-joined:
		assert.Equal(t, "sess-1", sess)
	case <-time.After(2 * time.Second):
		t.Fatal("join frame never arrived")
	}
}

func TestRunReturnsOnCancelWhileIdle(t *testing.T) {
	// the server accepts the dial and then goes silent, so the read loop
	// is parked on the socket when the context is cancelled
	hold := make(chan struct{})
	_, wsURL := pushServer(t, func(conn *websocket.Conn) {
		<-hold
	})
	t.Cleanup(func() { close(hold) })

	ch := NewChannel(wsURL, "", func(inbox.PushEvent) {}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ch.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return ch.current() != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestJoinBeforeConnectReturnsError(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/push", "", func(inbox.PushEvent) {}, zap.NewNop())
	assert.ErrorIs(t, ch.Join("sess-1"), ErrNotConnected)
}

func TestUpdateWithoutMessageIsDropped(t *testing.T) {
	_, wsURL := pushServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteJSON(map[string]any{"event": "inbox_update", "sessionId": "sess-1"}))
		require.NoError(t, conn.WriteJSON(map[string]any{"event": "inbox_refresh"}))
		time.Sleep(500 * time.Millisecond)
	})

	sink := &eventSink{}
	ch := NewChannel(wsURL, "", sink.dispatch, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := sink.snapshot()[0].(inbox.RefreshEvent)
	assert.True(t, ok)
}
