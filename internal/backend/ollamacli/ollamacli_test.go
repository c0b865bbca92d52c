package ollamacli

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/parley/internal/chat"
	"github.com/cchalm/parley/internal/fragment"
)

// fakeOllama writes an executable shell script standing in for ollama and returns its path
func fakeOllama(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake executables are shell scripts")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ollama")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	c, err := New(fakeOllama(t, body), "llama3.2:latest", zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestCompletePrompt_JSONRecords(t *testing.T) {
	c := newTestClient(t, `cat > /dev/null
echo '{"response":"Hi"}'
echo '{"response":" there!"}'`)

	reply, err := c.CompletePrompt(context.Background(), "User: Hello\nAssistant: ")

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
}

func TestCompletePrompt_PlainText(t *testing.T) {
	c := newTestClient(t, `cat > /dev/null
echo 'Assistant: Hi there!'`)

	reply, err := c.CompletePrompt(context.Background(), "User: Hello\nAssistant: ")

	require.NoError(t, err)
	assert.Equal(t, "Assistant: Hi there!\n", reply)
}

func TestCompletePrompt_PassesModelAndPrompt(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, `cat > "`+dir+`/stdin.txt"
echo "$@" > "`+dir+`/args.txt"
echo ok`)

	_, err := c.CompletePrompt(context.Background(), "User: Hello\nAssistant: ")
	require.NoError(t, err)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "run llama3.2:latest\n", string(args))

	stdin, err := os.ReadFile(filepath.Join(dir, "stdin.txt"))
	require.NoError(t, err)
	assert.Equal(t, "User: Hello\nAssistant: \n", string(stdin))
}

func TestCompletePrompt_ErrorRecord(t *testing.T) {
	c := newTestClient(t, `cat > /dev/null
echo '{"response":"partial"}'
echo '{"error":"model requires more system memory"}'
exec sleep 5`)

	start := time.Now()
	_, err := c.CompletePrompt(context.Background(), "User: Hello\nAssistant: ")

	var recordErr *fragment.RecordError
	require.ErrorAs(t, err, &recordErr)
	assert.Equal(t, "model requires more system memory", recordErr.Message)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCompletePrompt_NonZeroExit(t *testing.T) {
	c := newTestClient(t, `cat > /dev/null
echo 'pulling manifest' 
echo 'Error: pull model manifest: file does not exist' >&2
exit 1`)

	_, err := c.CompletePrompt(context.Background(), "User: Hello\nAssistant: ")

	require.Error(t, err)
	assert.Equal(t, "ollama exited with code 1: Error: pull model manifest: file does not exist", err.Error())
}

func TestCompletePrompt_ContextDeadline(t *testing.T) {
	c := newTestClient(t, `exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.CompletePrompt(ctx, "User: Hello\nAssistant: ")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_MissingExecutable(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "no-such-ollama"), "llama3.2:latest", zerolog.Nop())

	assert.ErrorIs(t, err, chat.ErrUnavailable)
}

func TestNew_InvalidModel(t *testing.T) {
	_, err := New(fakeOllama(t, "exit 0"), "llama3.2", zerolog.Nop())

	var validationErr *chat.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestNew_DefaultModel(t *testing.T) {
	c, err := New(fakeOllama(t, "exit 0"), "", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, chat.DefaultModel, c.Model())
}

func TestSession_WithProcessBackend(t *testing.T) {
	c := newTestClient(t, `cat > /dev/null
echo '{"response":"Assistant: Hi there!"}'`)
	s := chat.Start(chat.Prompt(Name, c), chat.DefaultOptions())

	reply, err := s.Submit(context.Background(), "Hello")

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply.Content)
	assert.Equal(t, 2, s.Len())
}
