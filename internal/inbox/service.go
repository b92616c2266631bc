package inbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrEmptyMessage = errors.New("message has no content")
)

const (
	listPageSize   = 100
	refreshTimeout = 15 * time.Second
)

// FilterStore persists the agent-subscription filter (which agent codes the
// operator wants surfaced). Injected so the filter stays testable
// independent of the storage medium.
type FilterStore interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, codes []string) error
}

// Service wires the store, reconciler and takeover coordinator behind a
// single dispatch goroutine. Three producers race against each other (the
// poll ticker, the push stream and user commands) and every one of them
// mutates shared state only by scheduling a closure on the dispatch loop,
// so exactly one mutation is ever in flight.
type Service struct {
	upstream Upstream
	joiner   Joiner
	filters  FilterStore
	notifier Notifier

	store      *ConversationStore
	reconciler *Reconciler
	takeover   *TakeoverCoordinator

	calls   chan func()
	stopped chan struct{} // closed when Run exits
	refresh singleflight.Group

	// dispatch-goroutine state, never touched from outside the loop
	selected string
	filter   map[string]bool

	log *zap.Logger
}

func NewService(upstream Upstream, joiner Joiner, filters FilterStore, notifier Notifier, log *zap.Logger) *Service {
	store := NewConversationStore()
	return &Service{
		upstream:   upstream,
		joiner:     joiner,
		filters:    filters,
		notifier:   notifier,
		store:      store,
		reconciler: NewReconciler(store),
		takeover:   NewTakeoverCoordinator(),
		calls:      make(chan func(), 64),
		stopped:    make(chan struct{}),
		filter:     make(map[string]bool),
		log:        log,
	}
}

// Run drains the dispatch queue until ctx is cancelled. Everything that
// touches the store or the takeover coordinator runs here.
func (s *Service) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.calls:
			fn()
		}
	}
}

// do schedules fn on the dispatch goroutine and waits for it, so callers
// observe their own writes. Once Run has exited, do returns without
// executing fn instead of blocking a caller forever.
func (s *Service) do(fn func()) {
	done := make(chan struct{})
	select {
	case s.calls <- func() {
		fn()
		close(done)
	}:
	case <-s.stopped:
		return
	}
	select {
	case <-done:
	case <-s.stopped:
	}
}

// Start loads the persisted filter and kicks the initial list fetch.
func (s *Service) Start(ctx context.Context) error {
	codes, err := s.filters.Load(ctx)
	if err != nil {
		return fmt.Errorf("load agent filter: %w", err)
	}
	s.do(func() { s.applyFilterCodes(codes) })
	s.RequestRefresh("startup")
	return nil
}

// ---------------------------------------------------------------
// inbound: push + poll
// ---------------------------------------------------------------

// Dispatch is the single entry point for push events.
func (s *Service) Dispatch(ev PushEvent) {
	s.do(func() {
		switch e := ev.(type) {
		case UpdateEvent:
			msg := e.Message
			msg.SessionID = e.SessionID
			s.applyInbound(msg)
		case RefreshEvent:
			s.RequestRefresh("push refresh")
		case TakeoverStartedEvent:
			// takeover pushes are scoped to the conversation on screen
			if e.SessionID == s.selected {
				s.takeover.SetActive(e.SessionID, e.TakenBy, e.ExpiresAt)
			}
		case TakeoverEndedEvent:
			if e.SessionID == s.selected {
				s.takeover.SetInactive(e.SessionID)
			}
		}
	})
}

// HandleInbound is the poll sink: same reconciliation as the push path.
func (s *Service) HandleInbound(msg ChatMessage) {
	s.do(func() { s.applyInbound(msg) })
}

func (s *Service) applyInbound(msg ChatMessage) {
	outcome, mut := s.reconciler.Apply(msg)
	switch outcome {
	case OutcomeUnknownSession:
		// Never synthesize a conversation from an event payload; the
		// list endpoint is the authority for metadata.
		s.log.Info("inbound for unknown session, forcing refresh",
			zap.String("sessionId", msg.SessionID))
		s.RequestRefresh("unknown session")
	case OutcomeAppended:
		if msg.Sender == SenderUser && s.notifier != nil {
			s.notifier.Notify(mut)
		}
	case OutcomeDuplicate:
		s.log.Debug("duplicate message dropped",
			zap.String("sessionId", msg.SessionID), zap.String("id", msg.ID))
	}
}

// RequestRefresh refetches the full conversation list. Concurrent triggers
// (poll delta, push refresh, unknown session) collapse into one upstream
// call; failures are logged and left to the next poll tick.
func (s *Service) RequestRefresh(reason string) {
	go func() {
		_, _, _ = s.refresh.Do("list", func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()

			// the fetch dies with the service, not just with its timeout
			go func() {
				select {
				case <-s.stopped:
					cancel()
				case <-ctx.Done():
				}
			}()

			list, err := s.upstream.ListConversations(ctx, 1, listPageSize)
			if err != nil {
				s.log.Warn("list refresh failed",
					zap.String("reason", reason), zap.Error(err))
				return nil, err
			}
			s.do(func() { s.store.ReplaceAll(list) })
			s.log.Debug("list refreshed",
				zap.String("reason", reason), zap.Int("conversations", len(list)))
			return nil, nil
		})
	}()
}

// ---------------------------------------------------------------
// user commands
// ---------------------------------------------------------------

// Conversations returns the list snapshot with the agent filter applied.
// The filter shapes the view only; reconciliation ignores it.
func (s *Service) Conversations(ctx context.Context) []Conversation {
	var out []Conversation
	s.do(func() {
		for _, c := range s.store.All() {
			if s.surfaced(c) {
				out = append(out, c)
			}
		}
	})
	return out
}

func (s *Service) Conversation(ctx context.Context, sessionID string) (Conversation, TakeoverStatus, error) {
	var (
		conv  Conversation
		st    TakeoverStatus
		found bool
	)
	s.do(func() {
		c, ok := s.store.Get(sessionID)
		if !ok {
			return
		}
		found = true
		conv = *c
		conv.Messages = append([]ChatMessage(nil), c.Messages...)
		st = s.takeover.Status(sessionID)
	})
	if !found {
		return Conversation{}, TakeoverStatus{}, ErrNotFound
	}
	return conv, st, nil
}

// Select marks a conversation as the one on screen: joins its push room
// and refetches takeover state from the server instead of trusting the
// cache, since control can change while the conversation is not observed.
func (s *Service) Select(ctx context.Context, sessionID string) (Conversation, TakeoverStatus, error) {
	conv, _, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return Conversation{}, TakeoverStatus{}, err
	}

	s.do(func() { s.selected = sessionID })

	if s.joiner != nil {
		if err := s.joiner.Join(sessionID); err != nil {
			s.log.Warn("join failed", zap.String("sessionId", sessionID), zap.Error(err))
		}
	}

	st, err := s.upstream.CheckTakeover(ctx, sessionID)
	if err != nil {
		// keep the cached status; the push stream or the next check
		// will correct it
		s.log.Warn("takeover status check failed",
			zap.String("sessionId", sessionID), zap.Error(err))
		var cached TakeoverStatus
		s.do(func() { cached = s.takeover.Status(sessionID) })
		return conv, cached, nil
	}

	s.do(func() { s.takeover.Replace(sessionID, *st) })
	return conv, *st, nil
}

// OpenChat synthesizes a conversation locally for an explicit new chat by
// contact lookup, before the server has ever listed it.
func (s *Service) OpenChat(ctx context.Context, platform Platform, contact, name string) (Conversation, error) {
	if contact == "" {
		return Conversation{}, fmt.Errorf("open chat: missing contact")
	}
	sessionID := string(platform) + ":" + contact
	var conv Conversation
	s.do(func() {
		s.store.Upsert(sessionID, func(c *Conversation) {
			c.Platform = platform
			c.CustomerContact = contact
			if name != "" {
				c.CustomerName = name
			}
		})
		c, _ := s.store.Get(sessionID)
		conv = *c
	})
	return conv, nil
}

// Send pushes a message upstream and, only after success, appends the
// optimistic echo. The echo and the failure path are mutually exclusive:
// nothing local exists to roll back when the send fails.
func (s *Service) Send(ctx context.Context, req SendRequest) (ChatMessage, error) {
	if req.Content == "" && req.MediaURL == "" {
		return ChatMessage{}, ErrEmptyMessage
	}

	var known bool
	s.do(func() { _, known = s.store.Get(req.SessionID) })
	if !known {
		return ChatMessage{}, ErrNotFound
	}

	if err := s.upstream.Send(ctx, req); err != nil {
		return ChatMessage{}, fmt.Errorf("send: %w", err)
	}

	msg := ChatMessage{
		ID:        "tmp-" + uuid.NewString(),
		SessionID: req.SessionID,
		From:      "agent",
		Sender:    SenderAgent,
		Content:   req.Content,
		MediaURL:  req.MediaURL,
		MediaType: req.MediaType,
		Timestamp: time.Now(),
		Status:    StatusSent,
	}
	s.do(func() { s.store.AppendMessage(req.SessionID, msg) })
	return msg, nil
}

// RequestTakeover asks the server for human control. Fail-closed: local
// state moves only on server confirmation, never optimistically.
func (s *Service) RequestTakeover(ctx context.Context, sessionID, userID string, durationMinutes int) (TakeoverStatus, error) {
	st, err := s.upstream.RequestTakeover(ctx, sessionID, userID, durationMinutes)
	if err != nil {
		return TakeoverStatus{}, fmt.Errorf("takeover: %w", err)
	}
	s.do(func() { s.takeover.SetActive(sessionID, st.TakenBy, st.ExpiresAt) })
	return *st, nil
}

// Release hands control back to the agent, again only on confirmation.
func (s *Service) Release(ctx context.Context, sessionID string) error {
	if err := s.upstream.Release(ctx, sessionID); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	s.do(func() { s.takeover.SetInactive(sessionID) })
	return nil
}

func (s *Service) TakeoverState(sessionID string) TakeoverStatus {
	var st TakeoverStatus
	s.do(func() { st = s.takeover.Status(sessionID) })
	return st
}

// ---------------------------------------------------------------
// agent filter
// ---------------------------------------------------------------

func (s *Service) Filter(ctx context.Context) []string {
	var codes []string
	s.do(func() {
		for code := range s.filter {
			codes = append(codes, code)
		}
	})
	sort.Strings(codes)
	return codes
}

func (s *Service) SetFilter(ctx context.Context, codes []string) error {
	if err := s.filters.Save(ctx, codes); err != nil {
		return fmt.Errorf("save agent filter: %w", err)
	}
	s.do(func() { s.applyFilterCodes(codes) })
	return nil
}

func (s *Service) applyFilterCodes(codes []string) {
	s.filter = make(map[string]bool, len(codes))
	for _, c := range codes {
		s.filter[c] = true
	}
}

// surfaced applies the agent filter: an empty filter shows everything, and
// conversations without an owning agent always surface.
func (s *Service) surfaced(c Conversation) bool {
	if len(s.filter) == 0 || c.AgentCode == "" {
		return true
	}
	return s.filter[c.AgentCode]
}
