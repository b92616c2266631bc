package inbox

import (
	"context"
	"time"
)

// Upstream — the inbox API this core synchronizes against. It owns
// conversation metadata and transcripts; everything here is a cache of it.
type Upstream interface {
	ListConversations(ctx context.Context, page, take int) ([]Conversation, error)
	Poll(ctx context.Context, since string) (*PollResult, error)
	Send(ctx context.Context, req SendRequest) error
	RequestTakeover(ctx context.Context, sessionID, userID string, durationMinutes int) (*TakeoverStatus, error)
	Release(ctx context.Context, sessionID string) error
	CheckTakeover(ctx context.Context, sessionID string) (*TakeoverStatus, error)
}

// Joiner subscribes the push stream to a conversation's event room.
type Joiner interface {
	Join(sessionID string) error
}

// Notifier receives mutation descriptors for user-facing side effects
// (sound, toast). The store and service never do that I/O themselves.
type Notifier interface {
	Notify(m Mutation)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(Mutation)

func (f NotifierFunc) Notify(m Mutation) { f(m) }

// PushEvent is one tagged variant per server push event. All variants are
// delivered to a single dispatch entry point instead of per-event callbacks.
type PushEvent interface {
	pushEvent()
}

type UpdateEvent struct {
	SessionID string
	Message   ChatMessage
}

// RefreshEvent signals that the list must be refetched wholesale, used for
// structural changes not expressible as a single message.
type RefreshEvent struct{}

type TakeoverStartedEvent struct {
	SessionID string
	TakenBy   string
	ExpiresAt time.Time
}

type TakeoverEndedEvent struct {
	SessionID string
}

func (UpdateEvent) pushEvent()          {}
func (RefreshEvent) pushEvent()         {}
func (TakeoverStartedEvent) pushEvent() {}
func (TakeoverEndedEvent) pushEvent()   {}
