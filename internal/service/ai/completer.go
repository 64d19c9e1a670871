package ai

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Role marks who wrote a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryMessage is one earlier turn handed to a completer.
type HistoryMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is a single-shot prompt: instructions, prior turns and
// the new query.
type CompletionRequest struct {
	System  string
	History []HistoryMessage
	Query   string
	// JSON asks providers that support it for a JSON-only reply.
	JSON bool
}

// Completer turns a prompt into text. Implementations must honour ctx
// cancellation; callers bound every call with a deadline.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

func toSchemaMessages(history []HistoryMessage, limit int) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	start := 0
	if limit > 0 && len(history) > limit {
		start = len(history) - limit
	}

	out := make([]*schema.Message, 0, len(history)-start)
	for _, msg := range history[start:] {
		switch msg.Role {
		case RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
