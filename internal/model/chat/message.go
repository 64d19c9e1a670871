package chat

import "time"

// Senders of advisor chat messages.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message persists individual advisor turns for audit/debug.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
