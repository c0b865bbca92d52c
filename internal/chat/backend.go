package chat

import (
	"context"
	"strings"
)

// MessageCompleter is a backend with native multi-turn support. It receives the whole transcript, system turn
// included, in chronological order.
type MessageCompleter interface {
	CompleteMessages(ctx context.Context, turns []Turn) (string, error)
}

// PromptCompleter is a backend that only accepts a single flattened prompt
type PromptCompleter interface {
	CompletePrompt(ctx context.Context, prompt string) (string, error)
}

// MessageCompleterFunc adapts a function to MessageCompleter
type MessageCompleterFunc func(ctx context.Context, turns []Turn) (string, error)

func (f MessageCompleterFunc) CompleteMessages(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}

// PromptCompleterFunc adapts a function to PromptCompleter
type PromptCompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f PromptCompleterFunc) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Backend is what a Session talks to. It is built with either Messages or Prompt.
type Backend interface {
	Name() string
	complete(ctx context.Context, turns []Turn) (string, error)
}

// Messages wraps a structured-messages backend
func Messages(name string, c MessageCompleter) Backend {
	return messagesBackend{name: name, completer: c}
}

// Prompt wraps a flattened-prompt backend. Replies are trimmed and have an echoed "Assistant: " cue removed.
func Prompt(name string, c PromptCompleter) Backend {
	return promptBackend{name: name, completer: c}
}

type messagesBackend struct {
	name      string
	completer MessageCompleter
}

func (b messagesBackend) Name() string { return b.name }

func (b messagesBackend) complete(ctx context.Context, turns []Turn) (string, error) {
	return b.completer.CompleteMessages(ctx, turns)
}

type promptBackend struct {
	name      string
	completer PromptCompleter
}

func (b promptBackend) Name() string { return b.name }

func (b promptBackend) complete(ctx context.Context, turns []Turn) (string, error) {
	raw, err := b.completer.CompletePrompt(ctx, RenderPrompt(turns))
	if err != nil {
		return "", err
	}
	return StripEchoedPrefix(strings.TrimSpace(raw)), nil
}
