// Package repl runs the interactive terminal loop around a chat session.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/cchalm/parley/internal/chat"
)

const exitCommand = "exit"

// Submitter is the part of *chat.Session the loop drives
type Submitter interface {
	Submit(ctx context.Context, text string) (chat.Reply, error)
}

// REPL reads user input line by line and prints replies
type REPL struct {
	in  *bufio.Reader
	out io.Writer
	log zerolog.Logger

	userLabel      lipgloss.Style
	assistantLabel lipgloss.Style
	errorText      lipgloss.Style
	noticeText     lipgloss.Style
}

// New creates a REPL. Styling is dropped automatically when out is not a color terminal.
func New(in io.Reader, out io.Writer, logger zerolog.Logger) *REPL {
	renderer := lipgloss.NewRenderer(out)
	return &REPL{
		in:  bufio.NewReader(in),
		out: out,
		log: logger,

		userLabel:      renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		assistantLabel: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		errorText:      renderer.NewStyle().Foreground(lipgloss.Color("9")),
		noticeText:     renderer.NewStyle().Faint(true),
	}
}

// PromptModel asks for an Ollama model identifier until a valid one is entered. A blank answer selects
// chat.DefaultModel.
func (r *REPL) PromptModel() (string, error) {
	for {
		r.printf("Enter the Ollama model you want to use (e.g., llama3.2:latest, qwen2.5-coder:latest, or press Enter for default '%s'): ", chat.DefaultModel)
		line, err := r.readLine()
		if err != nil {
			return "", fmt.Errorf("failed to read model name: %w", err)
		}

		model, err := chat.ResolveModel(line)
		var validationErr *chat.ValidationError
		if errors.As(err, &validationErr) {
			r.printf("%s\n", r.errorText.Render(capitalize(validationErr.Reason)))
			continue
		} else if err != nil {
			return "", err
		}
		return model, nil
	}
}

// Greet prints the banner shown before the first prompt
func (r *REPL) Greet(speaker string, model string) {
	r.printf("%s\n", r.noticeText.Render(fmt.Sprintf("Starting chat with %s model: %s. Type '%s' to quit.", speaker, model, exitCommand)))
}

// Run reads messages until the user types "exit", input ends, or ctx is cancelled. Failed turns are reported and
// the loop carries on; only a backend that is missing entirely ends it with an error.
func (r *REPL) Run(ctx context.Context, session Submitter, speaker string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		r.printf("%s", r.userLabel.Render("You: "))
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			r.printf("\n")
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.EqualFold(line, exitCommand) {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		reply, err := session.Submit(ctx, line)
		if err != nil {
			var backendErr *chat.BackendError
			if !errors.As(err, &backendErr) {
				return err
			}
			r.log.Debug().Err(err).Msg("Turn failed")
			r.printf("%s\n", r.errorText.Render("Failed to get response, input removed from history: "+oneLine(err.Error())))
			if errors.Is(err, chat.ErrUnavailable) {
				return fmt.Errorf("cannot continue: %w", err)
			}
			continue
		}

		r.printf("%s%s\n", r.assistantLabel.Render(speaker+": "), reply.Content)
	}
}

// readLine returns the next line without its line terminator. A final line without a newline is returned before
// io.EOF.
func (r *REPL) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *REPL) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.log.Warn().Err(err).Msg("Failed to write output")
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
