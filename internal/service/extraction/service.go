package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	analysis "github.com/farmsense/cava/backend/internal/analysis/extraction"
	"github.com/farmsense/cava/backend/internal/model/registration"
	"github.com/farmsense/cava/backend/internal/service/ai"
)

// Config controls the LLM extractor.
type Config struct {
	Timeout      time.Duration
	HistoryLimit int
}

// LLMExtractor asks a language model to read each user turn and falls back to
// the rule extractor when the model is slow, failing or incoherent.
type LLMExtractor struct {
	completer    ai.Completer
	rules        *analysis.RuleExtractor
	timeout      time.Duration
	historyLimit int
	logger       *zap.Logger
}

// NewLLMExtractor creates the extractor. rules may be nil to use the default
// gazetteer.
func NewLLMExtractor(completer ai.Completer, rules *analysis.RuleExtractor, cfg Config, logger *zap.Logger) *LLMExtractor {
	if rules == nil {
		rules = analysis.NewRuleExtractor(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 8
	}

	return &LLMExtractor{
		completer:    completer,
		rules:        rules,
		timeout:      timeout,
		historyLimit: historyLimit,
		logger:       logger.Named("extraction"),
	}
}

// Extract implements registration.Extractor. The rule extractor runs alongside
// the model call; its result is both a reconciliation hint and the fallback.
func (e *LLMExtractor) Extract(ctx context.Context, req registration.ExtractionRequest) (registration.Extraction, error) {
	var (
		hint registration.Extraction
		raw  string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hint = e.rules.Analyze(req)
		return nil
	})
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, e.timeout)
		defer cancel()

		out, err := e.complete(callCtx, req)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s: %v", registration.ErrExtractionTimeout, e.timeout, err)
			}
			return fmt.Errorf("%w: %v", registration.ErrExtractionProviderError, err)
		}
		raw = out
		return nil
	})

	err := g.Wait()
	if err == nil {
		parsed, parseErr := parseExtraction(raw)
		if parseErr == nil {
			return reconcile(parsed, hint, req, e.rules.Gazetteer()), nil
		}
		err = fmt.Errorf("%w: %v", registration.ErrExtractionProviderError, parseErr)
	}

	e.logger.Warn("llm extraction failed, using rules",
		zap.String("session_id", req.SessionID),
		zap.Error(err),
	)
	hint.Fallback = true
	return hint, err
}

type completion struct {
	out string
	err error
}

// complete calls the model but returns as soon as ctx ends, even when the
// completer does not watch ctx itself. A late answer is discarded.
func (e *LLMExtractor) complete(ctx context.Context, req registration.ExtractionRequest) (string, error) {
	done := make(chan completion, 1)
	go func() {
		out, err := e.completer.Complete(ctx, e.buildRequest(req))
		done <- completion{out: out, err: err}
	}()

	select {
	case c := <-done:
		return c.out, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *LLMExtractor) buildRequest(req registration.ExtractionRequest) ai.CompletionRequest {
	history := req.History
	if len(history) > e.historyLimit {
		history = history[len(history)-e.historyLimit:]
	}

	messages := make([]ai.HistoryMessage, 0, len(history))
	for _, turn := range history {
		role := ai.RoleUser
		if turn.Speaker == registration.SpeakerAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.HistoryMessage{Role: role, Content: turn.Text})
	}

	return ai.CompletionRequest{
		System:  buildSystemPrompt(req),
		History: messages,
		Query:   req.Utterance,
		JSON:    true,
	}
}
