package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/farmsense/cava/backend/internal/model/registration"
	"github.com/farmsense/cava/backend/internal/service/ai"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func replying(out string) ai.Completer {
	return ai.CompleterFunc(func(context.Context, ai.CompletionRequest) (string, error) {
		return out, nil
	})
}

func newExtractor(t *testing.T, c ai.Completer) *LLMExtractor {
	t.Helper()
	return NewLLMExtractor(c, nil, Config{Timeout: 50 * time.Millisecond, HistoryLimit: 2}, zaptest.NewLogger(t))
}

func askFor(f registration.Field, utterance string) registration.ExtractionRequest {
	profile := registration.Profile{}
	return registration.ExtractionRequest{
		SessionID: "s-1",
		Utterance: utterance,
		Missing:   profile.Missing(),
		Asked:     f,
		State:     registration.StateCollecting,
		Profile:   profile,
	}
}

func TestExtractUsesModelOutput(t *testing.T) {
	ex := newExtractor(t, replying(`{"fields":{"first_name":{"value":"Peter","confidence":0.95},"last_name":{"value":"Knaflič","confidence":0.4}},"intent":"provide","language":"sl","reply":"Hvala, Peter!"}`))

	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "Jaz sem Peter Knaflič"))
	require.NoError(t, err)

	assert.Equal(t, registration.SourceLLM, ext.Source)
	assert.False(t, ext.Fallback)
	assert.Equal(t, registration.High("Peter"), ext.Fields[registration.FirstName])
	assert.Equal(t, registration.Low("Knaflič"), ext.Fields[registration.LastName])
	assert.Equal(t, registration.IntentProvide, ext.Intent)
	assert.Equal(t, "sl", ext.Language)
	assert.Equal(t, "Hvala, Peter!", ext.Reply)
}

func TestExtractTimeoutFallsBackToRules(t *testing.T) {
	slow := ai.CompleterFunc(func(ctx context.Context, _ ai.CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ex := newExtractor(t, slow)

	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "Peter"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, registration.ErrExtractionTimeout), "got %v", err)

	assert.True(t, ext.Fallback)
	assert.Equal(t, registration.SourceRules, ext.Source)
	assert.Equal(t, registration.High("Peter"), ext.Fields[registration.FirstName])
}

func TestExtractDeadlineHoldsWhenCompleterIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	stuck := ai.CompleterFunc(func(context.Context, ai.CompletionRequest) (string, error) {
		defer close(finished)
		<-release
		return `{"fields":{"first_name":{"value":"Marko","confidence":0.9}}}`, nil
	})
	t.Cleanup(func() {
		close(release)
		<-finished
	})
	ex := newExtractor(t, stuck)

	start := time.Now()
	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "Peter"))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, registration.ErrExtractionTimeout)
	assert.Less(t, elapsed, time.Second, "extract must return at the deadline")
	assert.True(t, ext.Fallback)
	assert.Equal(t, registration.High("Peter"), ext.Fields[registration.FirstName])
}

func TestExtractProviderErrorFallsBackToRules(t *testing.T) {
	failing := ai.CompleterFunc(func(context.Context, ai.CompletionRequest) (string, error) {
		return "", errors.New("quota exceeded")
	})
	ex := newExtractor(t, failing)

	ext, err := ex.Extract(context.Background(), askFor(registration.PhoneNumber, "+386 40 123 456"))
	require.ErrorIs(t, err, registration.ErrExtractionProviderError)
	assert.True(t, ext.Fallback)
	assert.Equal(t, "+38640123456", ext.Fields[registration.PhoneNumber].Text)
}

func TestExtractUnparseableOutputFallsBackToRules(t *testing.T) {
	ex := newExtractor(t, replying("Sure! The farmer is called Peter."))

	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "Peter"))
	require.ErrorIs(t, err, registration.ErrExtractionProviderError)
	assert.True(t, ext.Fallback)
	assert.Equal(t, registration.SourceRules, ext.Source)
}

func TestExtractDemotesCityUsedAsName(t *testing.T) {
	ex := newExtractor(t, replying(`{"fields":{"first_name":{"value":"Ljubljana","confidence":0.9}},"intent":"provide"}`))

	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "Ljubljana"))
	require.NoError(t, err)

	_, named := ext.Fields[registration.FirstName]
	assert.False(t, named)
	assert.Equal(t, registration.Low("Ljubljana"), ext.Fields[registration.FarmLocation])
}

func TestExtractHonoursRuleNegation(t *testing.T) {
	ex := newExtractor(t, replying(`{"fields":{"first_name":{"value":"Ljubljana","confidence":0.9},"farm_location":{"value":"Ljubljana","confidence":0.9}}}`))

	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "My name is not Ljubljana, I live there"))
	require.NoError(t, err)

	_, named := ext.Fields[registration.FirstName]
	assert.False(t, named)
	assert.True(t, ext.IsNegated(registration.FirstName, "Ljubljana"))
	assert.Equal(t, registration.High("Ljubljana"), ext.Fields[registration.FarmLocation])
}

func TestExtractAcceptsFencedJSONAndBareValues(t *testing.T) {
	ex := newExtractor(t, replying("```json\n{\"fields\":{\"phone\":\"+386 40 123 456\"},\"intent\":\"provide\"}\n```"))

	ext, err := ex.Extract(context.Background(), askFor(registration.PhoneNumber, "it's +386 40 123 456"))
	require.NoError(t, err)
	assert.Equal(t, registration.High("+38640123456"), ext.Fields[registration.PhoneNumber])
}

func TestExtractDropsStrayInvalidPhone(t *testing.T) {
	ex := newExtractor(t, replying(`{"fields":{"phone_number":{"value":"12","confidence":0.9}},"intent":"off_topic"}`))

	ext, err := ex.Extract(context.Background(), askFor(registration.FirstName, "I have 12 cows"))
	require.NoError(t, err)
	assert.False(t, ext.HasFields())
	assert.Equal(t, registration.IntentOffTopic, ext.Intent)
}

func TestExtractBuildsBoundedRequest(t *testing.T) {
	var got ai.CompletionRequest
	capture := ai.CompleterFunc(func(_ context.Context, req ai.CompletionRequest) (string, error) {
		got = req
		return `{"intent":"greeting"}`, nil
	})
	ex := newExtractor(t, capture)

	req := askFor(registration.FirstName, "hello")
	req.History = []registration.Turn{
		{Speaker: registration.SpeakerUser, Text: "one"},
		{Speaker: registration.SpeakerAssistant, Text: "two"},
		{Speaker: registration.SpeakerUser, Text: "three"},
	}

	ext, err := ex.Extract(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, registration.IntentGreeting, ext.Intent)

	assert.True(t, got.JSON)
	assert.Equal(t, "hello", got.Query)
	assert.Equal(t, []ai.HistoryMessage{
		{Role: ai.RoleAssistant, Content: "two"},
		{Role: ai.RoleUser, Content: "three"},
	}, got.History)
	assert.Contains(t, got.System, "Still missing: first_name, last_name, phone_number, farm_location, primary_crops")
	assert.Contains(t, got.System, "just asked for: first_name")
}

func TestParseIntentAliases(t *testing.T) {
	assert.Equal(t, registration.IntentOffTopic, parseIntent("Off-Topic"))
	assert.Equal(t, registration.IntentAffirm, parseIntent("yes"))
	assert.Equal(t, registration.Intent(""), parseIntent("shrug"))
}
