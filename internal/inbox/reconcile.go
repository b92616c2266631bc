package inbox

import "time"

// echoWindow bounds the content-based match between an optimistic local
// echo and the authoritative server copy of the same message. Same sender,
// same content, timestamps within the window → same message. A legitimate
// identical repeat inside the window is suppressed; that trade is accepted.
const echoWindow = 60 * time.Second

type Outcome int

const (
	// OutcomeAppended — genuinely new message, appended to the transcript.
	OutcomeAppended Outcome = iota
	// OutcomeConfirmed — authoritative copy of a prior optimistic echo;
	// the existing slot adopted the server id and status.
	OutcomeConfirmed
	// OutcomeDuplicate — exact id already present, dropped.
	OutcomeDuplicate
	// OutcomeUnknownSession — the session is not in the store. Nothing is
	// synthesized from the event payload; the caller must trigger a full
	// list refresh, which is the authoritative source for metadata.
	OutcomeUnknownSession
)

// Reconciler decides whether an inbound message (poll or push, same rule
// for both) is new, a confirmation of an optimistic echo, or a duplicate.
type Reconciler struct {
	store *ConversationStore
}

func NewReconciler(store *ConversationStore) *Reconciler {
	return &Reconciler{store: store}
}

func (r *Reconciler) Apply(msg ChatMessage) (Outcome, Mutation) {
	conv, ok := r.store.Get(msg.SessionID)
	if !ok {
		return OutcomeUnknownSession, Mutation{}
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID == msg.ID {
			return OutcomeDuplicate, Mutation{}
		}
	}

	if slot := r.findEcho(conv, msg); slot >= 0 {
		mut := r.store.Upsert(msg.SessionID, func(c *Conversation) {
			m := &c.Messages[slot]
			m.ID = msg.ID
			if msg.Status != "" {
				m.Status = msg.Status
			} else {
				m.Status = StatusDelivered
			}
		})
		return OutcomeConfirmed, mut
	}

	return OutcomeAppended, r.store.AppendMessage(msg.SessionID, msg)
}

// findEcho returns the index of a transcript entry that the incoming
// message is the server-side copy of, or -1. Optimistic sends carry a
// client-generated temporary id, so the match is by content, not id.
func (r *Reconciler) findEcho(conv *Conversation, msg ChatMessage) int {
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.Sender != msg.Sender || m.Content != msg.Content {
			continue
		}
		d := msg.Timestamp.Sub(m.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < echoWindow {
			return i
		}
	}
	return -1
}
