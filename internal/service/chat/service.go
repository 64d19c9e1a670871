// Package chat keeps the advisor conversations farmers have after they
// register.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmsense/cava/backend/internal/model/chat"
)

const defaultTranscriptLimit = 200

var (
	ErrFarmerRequired  = errors.New("farmer id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMessage  = errors.New("message needs a known sender and content")
)

// Option configures a Service.
type Option func(*Service)

// WithTranscriptLimit caps the messages kept per session; older ones are
// dropped first.
func WithTranscriptLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// Service keeps advisor chat sessions and their transcripts in memory.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	limit    int
}

// NewService creates an empty chat service.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		limit:    defaultTranscriptLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens an advisor conversation for a registered farmer.
func (s *Service) CreateSession(_ context.Context, farmerID string) (chat.Session, error) {
	farmerID = strings.TrimSpace(farmerID)
	if farmerID == "" {
		return chat.Session{}, ErrFarmerRequired
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		FarmerID:  farmerID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = nil
	s.mu.Unlock()

	return session, nil
}

// SaveMessage appends a message to the session transcript, trimming the
// oldest messages past the limit.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.Sender != chat.SenderUser && message.Sender != chat.SenderAssistant {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(message.Content) == "" {
		return ErrInvalidMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	transcript := append(s.messages[message.SessionID], message)
	if over := len(transcript) - s.limit; over > 0 {
		transcript = append([]chat.Message(nil), transcript[over:]...)
	}
	s.messages[message.SessionID] = transcript
	return nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns a copy of the messages stored for a session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	return append([]chat.Message{}, s.messages[sessionID]...), nil
}

// EndSession drops a session and its transcript.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}
