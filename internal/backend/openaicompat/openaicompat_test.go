package openaicompat

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/parley/internal/chat"
)

type fakeCompletions struct {
	params     openai.ChatCompletionNewParams
	completion *openai.ChatCompletion
	err        error
}

func (fc *fakeCompletions) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	fc.params = body
	return fc.completion, fc.err
}

func completionWith(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		ID: "chatcmpl-1",
		Choices: []openai.ChatCompletionChoice{
			{FinishReason: "stop", Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestCompleteMessages_Success(t *testing.T) {
	vendor, ok := LookupVendor("deepseek")
	require.True(t, ok)
	completions := &fakeCompletions{completion: completionWith("Hi there!")}
	c := New(vendor, completions, "", zerolog.Nop())

	reply, err := c.CompleteMessages(context.Background(), []chat.Turn{
		{Role: chat.RoleSystem, Content: "You are a helpful assistant"},
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi"},
		{Role: chat.RoleUser, Content: "Again"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
	assert.Equal(t, openai.ChatModel("deepseek-chat"), completions.params.Model)
	require.Len(t, completions.params.Messages, 4)
	assert.NotNil(t, completions.params.Messages[0].OfSystem)
	assert.NotNil(t, completions.params.Messages[1].OfUser)
	assert.NotNil(t, completions.params.Messages[2].OfAssistant)
	assert.NotNil(t, completions.params.Messages[3].OfUser)
}

func TestCompleteMessages_ModelOverride(t *testing.T) {
	vendor, _ := LookupVendor("xai")
	completions := &fakeCompletions{completion: completionWith("42")}
	c := New(vendor, completions, "grok-2", zerolog.Nop())

	_, err := c.CompleteMessages(context.Background(), []chat.Turn{{Role: chat.RoleUser, Content: "Hello"}})

	require.NoError(t, err)
	assert.Equal(t, openai.ChatModel("grok-2"), completions.params.Model)
	assert.Equal(t, "xai", c.Name())
}

func TestCompleteMessages_APIError(t *testing.T) {
	apiErr := errors.New("401 Unauthorized")
	vendor, _ := LookupVendor("openai")
	c := New(vendor, &fakeCompletions{err: apiErr}, "", zerolog.Nop())

	_, err := c.CompleteMessages(context.Background(), []chat.Turn{{Role: chat.RoleUser, Content: "Hello"}})

	assert.ErrorIs(t, err, apiErr)
}

func TestCompleteMessages_NoChoices(t *testing.T) {
	vendor, _ := LookupVendor("openai")
	c := New(vendor, &fakeCompletions{completion: &openai.ChatCompletion{ID: "chatcmpl-2"}}, "", zerolog.Nop())

	_, err := c.CompleteMessages(context.Background(), []chat.Turn{{Role: chat.RoleUser, Content: "Hello"}})

	assert.EqualError(t, err, "no choices in chat completion chatcmpl-2")
}

func TestVendors(t *testing.T) {
	assert.Equal(t, []string{"deepseek", "openai", "xai"}, VendorNames())

	deepseek, _ := LookupVendor("deepseek")
	assert.Equal(t, "DEEPSEEK_API_KEY", deepseek.APIKeyEnv)
	assert.Equal(t, "https://api.deepseek.com", deepseek.BaseURL)

	_, ok := LookupVendor("gemini")
	assert.False(t, ok)
}
