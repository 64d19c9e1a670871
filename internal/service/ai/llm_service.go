package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/config"
	"github.com/farmsense/cava/backend/internal/model/chat"
	"github.com/farmsense/cava/backend/internal/model/registration"
)

// ErrStreamingDisabled is returned by StreamResponse when ARK_STREAM is off.
var ErrStreamingDisabled = errors.New("streaming disabled in configuration")

// Service runs the eino chain used both as the extraction Completer and for
// the farm advisor chat.
type Service struct {
	cfg     config.AIConfig
	chain   compose.Runnable[map[string]any, *schema.Message]
	prompts *AdvisorPromptManager
	logger  *zap.Logger
}

// NewService builds the Ark chat model from cfg and compiles the chain.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger)
}

// NewServiceWithModel compiles the chain over an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:     cfg,
		chain:   runnable,
		prompts: NewAdvisorPromptManager(),
		logger:  logger.Named("ai"),
	}, nil
}

// StreamingEnabled reports whether advisor replies may be streamed over SSE.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Complete implements Completer.
func (s *Service) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	input := map[string]any{
		"system":  req.System,
		"history": toSchemaMessages(req.History, 0),
		"query":   req.Query,
	}

	msg, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if msg == nil {
		return "", errors.New("empty model response")
	}
	return msg.Content, nil
}

// GenerateResponse answers an advisor chat message for a registered farmer.
func (s *Service) GenerateResponse(ctx context.Context, sessionID string, farmer *registration.FarmerRecord, messages []chat.Message, userMessage string) (*schema.Message, error) {
	input := s.buildChainInput(farmer, messages, userMessage)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	farmerID := ""
	if farmer != nil {
		farmerID = farmer.ID
	}
	s.logger.Info("generated advisor response",
		zap.String("session_id", sessionID),
		zap.String("farmer_id", farmerID),
		zap.Int("length", len(response.Content)),
	)
	return response, nil
}

// StreamResponse streams advisor reply chunks via the chain.
func (s *Service) StreamResponse(ctx context.Context, farmer *registration.FarmerRecord, messages []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, ErrStreamingDisabled
	}

	input := s.buildChainInput(farmer, messages, userMessage)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	return stream, nil
}

func (s *Service) buildChainInput(farmer *registration.FarmerRecord, messages []chat.Message, userMessage string) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(farmer),
		"history": toSchemaMessages(HistoryFromTranscript(messages), s.cfg.HistoryLimit),
		"query":   strings.TrimSpace(userMessage),
	}
}

// HistoryFromTranscript converts stored chat messages into completer history.
func HistoryFromTranscript(messages []chat.Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Sender {
		case chat.SenderUser:
			out = append(out, HistoryMessage{Role: RoleUser, Content: content})
		case chat.SenderAssistant:
			out = append(out, HistoryMessage{Role: RoleAssistant, Content: content})
		}
	}
	return out
}
