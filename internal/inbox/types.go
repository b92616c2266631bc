package inbox

import "time"

type Platform string

const (
	PlatformAssistAI  Platform = "assistai"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformInstagram Platform = "instagram"
	PlatformMessenger Platform = "messenger"
	PlatformWeb       Platform = "web"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// MessageStatus is only meaningful for optimistic sends; messages that
// arrive from the server carry it empty.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationResolved ConversationStatus = "resolved"
)

type ChatMessage struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	From      string        `json:"from"`
	Sender    Sender        `json:"sender"`
	Content   string        `json:"content"`
	MediaURL  string        `json:"mediaUrl,omitempty"`
	MediaType string        `json:"mediaType,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
}

// Conversation — one customer-channel session with its full transcript.
// Messages keeps arrival order, which is not guaranteed to be timestamp
// order under racing poll/push delivery.
type Conversation struct {
	SessionID       string             `json:"sessionId"`
	Platform        Platform           `json:"platform"`
	CustomerContact string             `json:"customerContact"`
	CustomerName    string             `json:"customerName,omitempty"`
	AgentCode       string             `json:"agentCode,omitempty"`
	AgentName       string             `json:"agentName,omitempty"`
	Messages        []ChatMessage      `json:"messages"`
	Status          ConversationStatus `json:"status"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// TakeoverStatus is a client-side cache of who controls a conversation.
// The server copy is the source of truth; ExpiresAt is ground truth and
// the remaining time is always derived from it.
type TakeoverStatus struct {
	Active    bool      `json:"active"`
	TakenBy   string    `json:"takenBy,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// RemainingMinutes is a derived view, recomputed on every read. It can
// reach zero while Active is still true: the authoritative transition
// back to AI control comes from the server, not from a local timer.
func (t TakeoverStatus) RemainingMinutes(now time.Time) int {
	if !t.Active || !now.Before(t.ExpiresAt) {
		return 0
	}
	return int(t.ExpiresAt.Sub(now).Round(time.Minute) / time.Minute)
}

type PollResult struct {
	Success bool          `json:"success"`
	Now     string        `json:"now"`
	New     []ChatMessage `json:"new"`
	Updated []ChatMessage `json:"updated"`
}

type SendRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}
