package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/model/chat"
	"github.com/farmsense/cava/backend/internal/model/registration"
	aiService "github.com/farmsense/cava/backend/internal/service/ai"
	chatService "github.com/farmsense/cava/backend/internal/service/chat"
	"github.com/farmsense/cava/backend/internal/store"
	"github.com/farmsense/cava/backend/pkg/utils"
)

// Handler streams advisor replies via Server-Sent Events.
type Handler struct {
	aiService *aiService.Service
	chatSvc   *chatService.Service
	farmers   store.FarmerRepository
	logger    *zap.Logger
}

// New creates a stream handler.
func New(aiSvc *aiService.Service, chatSvc *chatService.Service, farmers store.FarmerRepository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		aiService: aiSvc,
		chatSvc:   chatSvc,
		farmers:   farmers,
		logger:    logger.Named("stream"),
	}
}

// StreamResponse is one SSE chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest answers one advisor message for a chat session.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, farmer, err := h.getSessionFarmer(ctx, sessionID)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to load session: %v", err))
		return err
	}

	messages, err := h.chatSvc.LoadTranscript(ctx, session.ID)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to load conversation: %v", err))
		return err
	}

	// The client may already have stored the message via POST /messages.
	if !hasMatchingUserMessage(messages, sessionID, userMessage) {
		userMsg := chat.Message{
			SessionID: sessionID,
			Sender:    chat.SenderUser,
			Content:   userMessage,
		}
		if err := h.chatSvc.SaveMessage(ctx, userMsg); err != nil {
			h.logger.Warn("failed to save user message", zap.String("session_id", sessionID), zap.Error(err))
		}
	} else {
		messages = messages[:len(messages)-1]
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	response, err := h.dispatchAIResponse(ctx, w, flusher, sessionID, farmer, messages, userMessage)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("AI generation failed: %v", err))
		return err
	}

	assistantMsg := chat.Message{
		SessionID: sessionID,
		Sender:    chat.SenderAssistant,
		Content:   response.Content,
	}
	if err := h.chatSvc.SaveMessage(ctx, assistantMsg); err != nil {
		h.logger.Warn("failed to save assistant message", zap.String("session_id", sessionID), zap.Error(err))
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	h.logger.Info("advisor response streamed",
		zap.String("session_id", sessionID),
		zap.String("farmer_id", farmer.ID),
	)
	return nil
}

func (h *Handler) dispatchAIResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, farmer *registration.FarmerRecord, messages []chat.Message, userMessage string) (*schema.Message, error) {
	if h.aiService.StreamingEnabled() {
		return h.streamAIResponse(ctx, w, flusher, sessionID, farmer, messages, userMessage)
	}

	response, err := h.aiService.GenerateResponse(ctx, sessionID, farmer, messages, userMessage)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})

	return response, nil
}

// getSessionFarmer resolves the chat session and the farmer it belongs to.
func (h *Handler) getSessionFarmer(ctx context.Context, sessionID string) (*chat.Session, *registration.FarmerRecord, error) {
	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("session not found: %w", err)
	}

	farmer, err := h.farmers.GetFarmer(ctx, session.FarmerID)
	if err != nil {
		return nil, nil, fmt.Errorf("farmer %s: %w", session.FarmerID, err)
	}

	return &session, &farmer, nil
}

func hasMatchingUserMessage(messages []chat.Message, sessionID, content string) bool {
	if len(messages) == 0 {
		return false
	}

	last := messages[len(messages)-1]
	if last.SessionID != sessionID {
		return false
	}

	if last.Sender != chat.SenderUser {
		return false
	}

	return last.Content == content
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}

func (h *Handler) streamAIResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, farmer *registration.FarmerRecord, messages []chat.Message, userMessage string) (*schema.Message, error) {
	stream, err := h.aiService.StreamResponse(ctx, farmer, messages, userMessage)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.sendSSE(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: sessionID,
				Content:   chunk.Content,
			})
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})

	return response, nil
}
