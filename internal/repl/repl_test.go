package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/parley/internal/chat"
)

func newTestREPL(input string) (*REPL, *bytes.Buffer) {
	var out bytes.Buffer
	return New(strings.NewReader(input), &out, zerolog.Nop()), &out
}

func TestPromptModel_Default(t *testing.T) {
	r, _ := newTestREPL("\n")

	model, err := r.PromptModel()

	require.NoError(t, err)
	assert.Equal(t, "llama3.2:latest", model)
}

func TestPromptModel_RepromptsUntilValid(t *testing.T) {
	r, out := newTestREPL("llama 3.2:latest\nllama3.2\nqwen2.5-coder:latest\n")

	model, err := r.PromptModel()

	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:latest", model)
	assert.Contains(t, out.String(), "Model name cannot contain white space")
	assert.Contains(t, out.String(), "Model name must have a tag, for example llama2:latest")
	assert.Equal(t, 3, strings.Count(out.String(), "Enter the Ollama model"))
}

func TestPromptModel_EOF(t *testing.T) {
	r, _ := newTestREPL("")

	_, err := r.PromptModel()

	assert.Error(t, err)
}

func TestRun_Conversation(t *testing.T) {
	r, out := newTestREPL("Hello\nHow are you?\nexit\nnever read\n")
	calls := 0
	backend := chat.MessageCompleterFunc(func(_ context.Context, turns []chat.Turn) (string, error) {
		calls++
		return fmt.Sprintf("reply to %s", turns[len(turns)-1].Content), nil
	})
	session := chat.Start(chat.Messages("fake", backend), chat.DefaultOptions())

	err := r.Run(context.Background(), session, "Ollama")

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 4, session.Len())
	assert.Contains(t, out.String(), "Ollama: reply to Hello\n")
	assert.Contains(t, out.String(), "Ollama: reply to How are you?\n")
}

func TestRun_ExitIsCaseInsensitive(t *testing.T) {
	for _, input := range []string{"exit\n", "EXIT\n", "Exit\r\n"} {
		r, _ := newTestREPL(input + "Hello\n")
		calls := 0
		backend := chat.MessageCompleterFunc(func(_ context.Context, _ []chat.Turn) (string, error) {
			calls++
			return "hi", nil
		})

		err := r.Run(context.Background(), chat.Start(chat.Messages("fake", backend), chat.Options{}), "Bot")

		assert.NoError(t, err)
		assert.Equal(t, 0, calls, "input %q", input)
	}
}

func TestRun_SkipsBlankLines(t *testing.T) {
	r, _ := newTestREPL("\n   \nHello\n")
	calls := 0
	backend := chat.MessageCompleterFunc(func(_ context.Context, _ []chat.Turn) (string, error) {
		calls++
		return "hi", nil
	})

	err := r.Run(context.Background(), chat.Start(chat.Messages("fake", backend), chat.Options{}), "Bot")

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_FailureContinues(t *testing.T) {
	r, out := newTestREPL("Hello\nTell me a joke\nStill there?\n")
	calls := 0
	backend := chat.MessageCompleterFunc(func(_ context.Context, _ []chat.Turn) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("status 500\ninternal error")
		}
		return "Hi there!", nil
	})
	session := chat.Start(chat.Messages("fake", backend), chat.DefaultOptions())

	err := r.Run(context.Background(), session, "Bot")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 4, session.Len())
	assert.Contains(t, out.String(), "Failed to get response, input removed from history: backend error (fake): status 500 internal error\n")
	assert.Equal(t, []chat.Turn{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi there!"},
		{Role: chat.RoleUser, Content: "Still there?"},
		{Role: chat.RoleAssistant, Content: "Hi there!"},
	}, session.Transcript())
}

func TestRun_UnavailableStops(t *testing.T) {
	r, _ := newTestREPL("Hello\nAgain\n")
	calls := 0
	backend := chat.MessageCompleterFunc(func(_ context.Context, _ []chat.Turn) (string, error) {
		calls++
		return "", fmt.Errorf("ollama not found: %w", chat.ErrUnavailable)
	})

	err := r.Run(context.Background(), chat.Start(chat.Messages("fake", backend), chat.Options{}), "Bot")

	assert.ErrorIs(t, err, chat.ErrUnavailable)
	assert.Equal(t, 1, calls)
}

func TestRun_CancelledContext(t *testing.T) {
	r, _ := newTestREPL("Hello\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	backend := chat.MessageCompleterFunc(func(_ context.Context, _ []chat.Turn) (string, error) {
		calls++
		return "hi", nil
	})

	err := r.Run(ctx, chat.Start(chat.Messages("fake", backend), chat.Options{}), "Bot")

	assert.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestRun_LastLineWithoutNewline(t *testing.T) {
	r, _ := newTestREPL("Hello")
	backend := chat.MessageCompleterFunc(func(_ context.Context, _ []chat.Turn) (string, error) {
		return "hi", nil
	})
	session := chat.Start(chat.Messages("fake", backend), chat.Options{})

	err := r.Run(context.Background(), session, "Bot")

	require.NoError(t, err)
	assert.Equal(t, 2, session.Len())
}

func TestGreet(t *testing.T) {
	r, out := newTestREPL("")

	r.Greet("Ollama", "llama3.2:latest")

	assert.Equal(t, "Starting chat with Ollama model: llama3.2:latest. Type 'exit' to quit.\n", out.String())
}
