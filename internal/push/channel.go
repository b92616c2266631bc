// Package push maintains the long-lived websocket to the inbox backend and
// turns its frames into tagged events for the inbox dispatch loop.
package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vovarama1992/inbox-sync-core/internal/inbox"
)

var ErrNotConnected = errors.New("push channel not connected")

const redialDelay = 3 * time.Second

// frame is the wire shape for both directions.
type frame struct {
	Event     string             `json:"event"`
	SessionID string             `json:"sessionId,omitempty"`
	Message   *inbox.ChatMessage `json:"message,omitempty"`
	TakenBy   string             `json:"takenBy,omitempty"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
}

// Channel is one connection per inbox session, not per conversation. The
// stream promises nothing beyond eventual delivery; anything missed while
// disconnected is backstopped by the poller.
type Channel struct {
	url      string
	token    string
	dispatch func(inbox.PushEvent)
	log      *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	lastJoin string
}

func NewChannel(url, token string, dispatch func(inbox.PushEvent), log *zap.Logger) *Channel {
	return &Channel{
		url:      url,
		token:    token,
		dispatch: dispatch,
		log:      log,
	}
}

// Run dials, reads until the connection drops, and redials, until ctx is
// cancelled. Reconnection lives here so the core never has to.
func (c *Channel) Run(ctx context.Context) {
	// cancellation must unblock a read parked on an idle connection
	go func() {
		<-ctx.Done()
		c.close()
	}()

	for {
		if err := c.connect(ctx); err != nil {
			c.log.Warn("dial failed", zap.Error(err))
		} else {
			c.readLoop(ctx)
		}

		select {
		case <-ctx.Done():
			c.close()
			return
		case <-time.After(redialDelay):
		}
	}
}

// Join subscribes to a conversation's event room. The channel remembers the
// last joined room and re-joins it after a reconnect.
func (c *Channel) Join(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastJoin = sessionID
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame{Event: "join_conversation", SessionID: sessionID})
}

func (c *Channel) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	rejoin := c.lastJoin
	c.mu.Unlock()

	// cancellation may have landed between the dial and the assignment
	if ctx.Err() != nil {
		c.close()
		return ctx.Err()
	}

	c.log.Info("connected", zap.String("url", c.url))

	if rejoin != "" {
		if err := c.Join(rejoin); err != nil {
			c.log.Warn("rejoin failed", zap.String("sessionId", rejoin), zap.Error(err))
		}
	}
	return nil
}

func (c *Channel) readLoop(ctx context.Context) {
	conn := c.current()
	if conn == nil {
		return
	}
	defer c.close()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				c.log.Warn("read failed", zap.Error(err))
			}
			return
		}

		ev, ok := decode(f)
		if !ok {
			c.log.Debug("unknown push event", zap.String("event", f.Event))
			continue
		}
		c.dispatch(ev)
	}
}

func decode(f frame) (inbox.PushEvent, bool) {
	switch f.Event {
	case "inbox_update":
		if f.Message == nil {
			return nil, false
		}
		return inbox.UpdateEvent{SessionID: f.SessionID, Message: *f.Message}, true
	case "inbox_refresh":
		return inbox.RefreshEvent{}, true
	case "takeover_started":
		var exp time.Time
		if f.ExpiresAt != nil {
			exp = *f.ExpiresAt
		}
		return inbox.TakeoverStartedEvent{
			SessionID: f.SessionID,
			TakenBy:   f.TakenBy,
			ExpiresAt: exp,
		}, true
	case "takeover_ended":
		return inbox.TakeoverEndedEvent{SessionID: f.SessionID}, true
	}
	return nil, false
}

func (c *Channel) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
