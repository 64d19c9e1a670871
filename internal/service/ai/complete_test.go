package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/farmsense/cava/backend/internal/config"
)

type scriptedModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestCompleteRunsChainWithSystemHistoryAndQuery(t *testing.T) {
	fake := &scriptedModel{reply: `{"intent":"greeting"}`}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := svc.Complete(context.Background(), CompletionRequest{
		System:  `Return {"fields":{}} only.`,
		History: []HistoryMessage{{Role: RoleAssistant, Content: "What is your first name?"}},
		Query:   "hello",
		JSON:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"greeting"}`, out)

	require.Len(t, fake.input, 3)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, `Return {"fields":{}} only.`, fake.input[0].Content)
	assert.Equal(t, schema.Assistant, fake.input[1].Role)
	assert.Equal(t, schema.User, fake.input[2].Role)
	assert.Equal(t, "hello", fake.input[2].Content)
}

func TestCompleteWrapsModelError(t *testing.T) {
	boom := errors.New("rate limited")
	svc, err := NewServiceWithModel(context.Background(), &scriptedModel{err: boom}, config.AIConfig{}, nil)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), CompletionRequest{Query: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), boom.Error())
}
