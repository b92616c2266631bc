package inbox

import (
	"sort"
	"time"
)

type MutationKind string

const (
	MutationCreated  MutationKind = "created"
	MutationUpdated  MutationKind = "updated"
	MutationMessage  MutationKind = "message"
	MutationReplaced MutationKind = "replaced"
)

// Mutation describes what a store operation did, so the caller can decide
// on side effects (notification sound, toast) without the store doing I/O.
type Mutation struct {
	Kind      MutationKind
	SessionID string
	Message   *ChatMessage
}

// ConversationStore is the authoritative in-memory cache of conversations,
// ordered by UpdatedAt descending (most recent activity first). It has no
// locking: every mutation goes through the dispatch goroutine.
type ConversationStore struct {
	order []*Conversation
	byID  map[string]*Conversation
	now   func() time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byID: make(map[string]*Conversation),
		now:  time.Now,
	}
}

func (s *ConversationStore) Get(sessionID string) (*Conversation, bool) {
	c, ok := s.byID[sessionID]
	return c, ok
}

// All returns a snapshot copy in list order. Message slices are copied so
// callers cannot mutate conversations behind the store's back.
func (s *ConversationStore) All() []Conversation {
	out := make([]Conversation, 0, len(s.order))
	for _, c := range s.order {
		cp := *c
		cp.Messages = append([]ChatMessage(nil), c.Messages...)
		out = append(out, cp)
	}
	return out
}

func (s *ConversationStore) Len() int { return len(s.order) }

// Upsert applies mutate to the conversation with that id, creating it with
// defaults first when absent, then re-sorts the collection.
func (s *ConversationStore) Upsert(sessionID string, mutate func(*Conversation)) Mutation {
	c, ok := s.byID[sessionID]
	kind := MutationUpdated
	if !ok {
		c = &Conversation{
			SessionID: sessionID,
			Status:    ConversationActive,
			UpdatedAt: s.now(),
		}
		s.byID[sessionID] = c
		s.order = append(s.order, c)
		kind = MutationCreated
	}
	if mutate != nil {
		mutate(c)
	}
	s.resort()
	return Mutation{Kind: kind, SessionID: sessionID}
}

// AppendMessage adds msg to the conversation's transcript and bumps
// UpdatedAt to now, moving the conversation to the top of the list.
// Callers are responsible for deduplication (the reconciler enforces it).
func (s *ConversationStore) AppendMessage(sessionID string, msg ChatMessage) Mutation {
	s.Upsert(sessionID, func(c *Conversation) {
		c.Messages = append(c.Messages, msg)
		c.UpdatedAt = s.now()
	})
	return Mutation{Kind: MutationMessage, SessionID: sessionID, Message: &msg}
}

// ReplaceAll swaps the whole collection for a fresh server snapshot.
func (s *ConversationStore) ReplaceAll(list []Conversation) Mutation {
	s.order = s.order[:0]
	s.byID = make(map[string]*Conversation, len(list))
	for i := range list {
		c := list[i]
		if c.Status == "" {
			c.Status = ConversationActive
		}
		s.byID[c.SessionID] = &c
		s.order = append(s.order, &c)
	}
	s.resort()
	return Mutation{Kind: MutationReplaced}
}

// resort keeps UpdatedAt-descending order; the sort is stable so
// conversations with equal timestamps keep their relative positions.
func (s *ConversationStore) resort() {
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.order[i].UpdatedAt.After(s.order[j].UpdatedAt)
	})
}
