package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPrompt(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Hi there!"},
		{Role: RoleUser, Content: "How are you?"},
	}

	expected := "User: Hello\nAssistant: Hi there!\nUser: How are you?\nAssistant: "
	assert.Equal(t, expected, RenderPrompt(turns))
}

func TestRenderPrompt_Empty(t *testing.T) {
	assert.Equal(t, "Assistant: ", RenderPrompt(nil))
}

func TestRenderPrompt_SystemTurn(t *testing.T) {
	turns := []Turn{
		{Role: RoleSystem, Content: "Be brief"},
		{Role: RoleUser, Content: "Hello"},
	}

	assert.Equal(t, "System: Be brief\nUser: Hello\nAssistant: ", RenderPrompt(turns))
}

func TestStripEchoedPrefix(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{raw: "Assistant: hi", expected: "hi"},
		{raw: "hi", expected: "hi"},
		{raw: "assistant: hi", expected: "assistant: hi"},
		{raw: "Assistant: Assistant: hi", expected: "Assistant: hi"},
		{raw: " Assistant: hi", expected: " Assistant: hi"},
		{raw: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripEchoedPrefix(tt.raw))
		})
	}
}

func TestResolveModel(t *testing.T) {
	model, err := ResolveModel("llama3.2:latest")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:latest", model)

	model, err = ResolveModel("")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:latest", model)
}

func TestResolveModel_Rejected(t *testing.T) {
	for _, input := range []string{"llama 3.2:latest", "llama3.2", "llama3.2:\tlatest", " "} {
		t.Run(input, func(t *testing.T) {
			_, err := ResolveModel(input)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, "model", validationErr.Field)
			assert.Equal(t, input, validationErr.Value)
		})
	}
}
