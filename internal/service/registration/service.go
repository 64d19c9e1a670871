// Package registration runs the CAVA registration conversation: it reads each
// user turn, folds it into the session and decides what to say next.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/model/registration"
	"github.com/farmsense/cava/backend/internal/service/session"
	"github.com/farmsense/cava/backend/internal/store"
)

const defaultHistoryLimit = 8

// Request is one inbound user message.
type Request struct {
	SessionID   string `json:"session_id"`
	MessageText string `json:"message_text"`
}

// Response is the reply to one user message.
type Response struct {
	SessionID            string                        `json:"session_id"`
	ReplyText            string                        `json:"reply_text"`
	RegistrationComplete bool                          `json:"registration_complete"`
	ExtractedFields      map[registration.Field]string `json:"extracted_fields"`
	State                registration.State            `json:"state"`
	Pending              *registration.Candidate       `json:"pending,omitempty"`
	FarmerID             string                        `json:"farmer_id,omitempty"`
	Fallback             bool                          `json:"fallback,omitempty"`
	Retryable            bool                          `json:"retryable,omitempty"`
}

// Config tunes the service.
type Config struct {
	// HistoryLimit bounds the turns handed to the extractor.
	HistoryLimit int
}

// Service is the dialogue policy and completion handler.
type Service struct {
	extractor    registration.Extractor
	sessions     *session.Store
	farmers      store.FarmerRepository
	historyLimit int
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires the policy to its collaborators.
func NewService(extractor registration.Extractor, sessions *session.Store, farmers store.FarmerRepository, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Service{
		extractor:    extractor,
		sessions:     sessions,
		farmers:      farmers,
		historyLimit: limit,
		logger:       logger.Named("registration"),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// HandleMessage processes one user turn. An empty message only returns the
// current prompt, which lets clients open a conversation.
//
// When the record cannot be saved the response is still returned, with
// Retryable set, alongside an error wrapping
// registration.ErrPersistenceUnavailable.
func (s *Service) HandleMessage(ctx context.Context, req Request) (Response, error) {
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		return Response{}, registration.ErrSessionIDRequired
	}
	text := strings.TrimSpace(req.MessageText)

	var (
		resp    Response
		turnErr error
	)
	err := s.sessions.Do(ctx, id, func(sess *registration.Session) error {
		if text == "" {
			reply := s.prompt(sess, greetingText)
			if len(sess.Turns) == 0 || sess.Turns[len(sess.Turns)-1].Text != reply {
				sess.AppendTurn(registration.SpeakerAssistant, reply, s.now())
			}
			resp = s.respond(sess, reply)
			return nil
		}

		ext, err := s.extract(ctx, sess, text)
		if err != nil {
			return err
		}

		now := s.now()
		sess.AppendTurn(registration.SpeakerUser, text, now)
		if ext.Language != "" {
			sess.Language = ext.Language
		}

		out := s.advance(ctx, sess, ext)
		sess.AppendTurn(registration.SpeakerAssistant, out.reply, s.now())

		resp = s.respond(sess, out.reply)
		resp.Fallback = ext.Fallback
		if out.record != nil {
			resp.FarmerID = out.record.ID
			s.sessions.Purge(sess.ID)
		}
		if out.err != nil {
			resp.Retryable = true
			turnErr = out.err
		}

		s.logger.Debug("turn handled",
			zap.String("session_id", sess.ID),
			zap.String("state", string(sess.State)),
			zap.String("intent", string(ext.Intent)),
			zap.String("source", string(ext.Source)),
			zap.Bool("fallback", ext.Fallback),
		)
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, turnErr
}

// extract reads the utterance. A fallback result is used as is; the error
// behind it has already been logged by the extractor.
func (s *Service) extract(ctx context.Context, sess *registration.Session, text string) (registration.Extraction, error) {
	history := sess.Turns
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	req := registration.ExtractionRequest{
		SessionID: sess.ID,
		History:   append([]registration.Turn(nil), history...),
		Utterance: text,
		Missing:   sess.Missing(),
		Asked:     sess.Asked,
		State:     sess.State,
		Profile:   sess.Profile.Clone(),
	}
	if sess.Pending != nil {
		c := *sess.Pending
		req.Pending = &c
	}

	ext, err := s.extractor.Extract(ctx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return registration.Extraction{}, ctxErr
	}
	if err != nil && !ext.Fallback {
		return registration.Extraction{}, fmt.Errorf("extract: %w", err)
	}
	return ext, nil
}

func (s *Service) respond(sess *registration.Session, reply string) Response {
	fields := make(map[registration.Field]string, len(sess.Profile))
	for f, v := range sess.Profile {
		if v != "" {
			fields[f] = v
		}
	}
	resp := Response{
		SessionID:            sess.ID,
		ReplyText:            reply,
		RegistrationComplete: sess.IsComplete(),
		ExtractedFields:      fields,
		State:                sess.State,
		FarmerID:             sess.RecordID,
	}
	if sess.Pending != nil {
		c := *sess.Pending
		resp.Pending = &c
	}
	return resp
}

// Complete validates and saves the session's profile. The session must be
// awaiting confirmation. On a validation failure the offending field is
// cleared and the session goes back to collecting.
func (s *Service) Complete(ctx context.Context, sessionID string) (registration.FarmerRecord, error) {
	var rec registration.FarmerRecord
	err := s.sessions.Do(ctx, sessionID, func(sess *registration.Session) error {
		var err error
		rec, err = s.complete(ctx, sess)
		if err != nil {
			var vErr *registration.ValidationError
			if errors.As(err, &vErr) {
				s.reopen(sess, vErr.Field)
			}
			return err
		}
		s.sessions.Purge(sess.ID)
		return nil
	})
	return rec, err
}

// Session returns a snapshot of a live session.
func (s *Service) Session(sessionID string) (registration.Session, bool) {
	return s.sessions.Get(sessionID)
}

// Reset forgets a session; the next message starts over.
func (s *Service) Reset(sessionID string) bool {
	return s.sessions.Purge(sessionID)
}
