package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultMaxHistory is the number of user and assistant turns kept before the history is halved
	DefaultMaxHistory = 20
	// DefaultTimeout bounds a single backend call in the interactive chat
	DefaultTimeout = 60 * time.Second
)

var errEmptyResponse = errors.New("empty response")

// Options configures a Session. The zero value means no system prompt, unbounded history and no timeout.
type Options struct {
	SystemPrompt string
	MaxHistory   int           // Once exceeded the history is cut to the most recent MaxHistory/2 turns; odd values round up
	Timeout      time.Duration // Per backend call
	Tracer       trace.Tracer
}

// DefaultOptions returns the settings of the interactive chat: 20 turns of history and a 60 second timeout
func DefaultOptions() Options {
	return Options{
		MaxHistory: DefaultMaxHistory,
		Timeout:    DefaultTimeout,
	}
}

// Session owns one conversation transcript. It is not safe for concurrent use; one caller drives it turn by turn.
type Session struct {
	id      string
	backend Backend

	system *Turn  // Pinned ahead of turns, never trimmed
	turns  []Turn // User and assistant turns, oldest first

	maxHistory int
	timeout    time.Duration
	tracer     trace.Tracer
}

// Start creates a session with an empty transcript, seeded with a system turn if opts.SystemPrompt is set
func Start(backend Backend, opts Options) *Session {
	s := &Session{
		id:         uuid.New().String(),
		backend:    backend,
		maxHistory: opts.MaxHistory + opts.MaxHistory%2,
		timeout:    opts.Timeout,
		tracer:     opts.Tracer,
	}
	if opts.SystemPrompt != "" {
		s.system = &Turn{Role: RoleSystem, Content: opts.SystemPrompt}
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	return s
}

// ID returns the session's unique identifier
func (s *Session) ID() string {
	return s.id
}

// Backend returns the name of the backend the session talks to
func (s *Session) Backend() string {
	return s.backend.Name()
}

// Len returns the number of user and assistant turns, excluding the system turn
func (s *Session) Len() int {
	return len(s.turns)
}

// Transcript returns a copy of the conversation so far, system turn first
func (s *Session) Transcript() []Turn {
	transcript := make([]Turn, 0, len(s.turns)+1)
	if s.system != nil {
		transcript = append(transcript, *s.system)
	}
	return append(transcript, s.turns...)
}

// Submit sends a user message with the full conversation as context and blocks until the backend replies, fails,
// or the session timeout elapses. Failures are returned as *BackendError and leave the transcript exactly as it was
// before the call.
func (s *Session) Submit(ctx context.Context, text string) (Reply, error) {
	ctx, span := s.tracer.Start(ctx, "chat.submit", trace.WithAttributes(
		attribute.String("chat.session_id", s.id),
		attribute.String("chat.backend", s.backend.Name()),
		attribute.Int("chat.transcript_length", len(s.turns)),
	))
	defer span.End()

	checkpoint := len(s.turns)
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: text})

	content, err := s.complete(ctx)
	if err != nil {
		s.turns = s.turns[:checkpoint]

		backendErr := &BackendError{Backend: s.backend.Name(), Err: err}
		span.RecordError(backendErr)
		span.SetStatus(codes.Error, backendErr.Error())
		return Reply{}, backendErr
	}

	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: content})
	span.SetAttributes(attribute.Bool("chat.trimmed", s.trim()))

	return Reply{Content: content}, nil
}

func (s *Session) complete(ctx context.Context) (string, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// A backend that ignores cancellation is abandoned rather than waited for
	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	turns := s.Transcript()
	go func() {
		content, err := s.backend.complete(callCtx, turns)
		done <- result{content: content, err: err}
	}()

	var content string
	var err error
	select {
	case r := <-done:
		content, err = r.content, r.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	if err != nil {
		// Only report a timeout when it was ours, not the caller's
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		return "", err
	}
	if content == "" {
		return "", errEmptyResponse
	}
	return content, nil
}

// trim drops the oldest turns once the history exceeds its maximum, keeping the most recent half. The half is
// rounded up to whole exchanges so the kept history always opens with a user turn.
func (s *Session) trim() bool {
	if s.maxHistory <= 0 || len(s.turns) <= s.maxHistory {
		return false
	}
	keep := s.maxHistory / 2
	keep += keep % 2
	s.turns = append([]Turn(nil), s.turns[len(s.turns)-keep:]...)
	return true
}
