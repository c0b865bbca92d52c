// Package ollamacli runs prompts through a local `ollama run` process.
package ollamacli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cchalm/parley/internal/chat"
	"github.com/cchalm/parley/internal/fragment"
)

// Name identifies this backend in errors and logs
const Name = "ollama-cli"

// waitDelay bounds how long Wait blocks on output pipes after the process is killed
const waitDelay = 2 * time.Second

// Client is a flattened-prompt backend. Each call starts a fresh process, writes the prompt to its stdin and reads
// the reply from its stdout.
type Client struct {
	path  string
	model string
	log   zerolog.Logger
}

// New locates the ollama executable and validates the model identifier. An empty model selects
// chat.DefaultModel.
func New(bin string, model string, logger zerolog.Logger) (*Client, error) {
	resolved, err := chat.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("ollama not found, ensure it is installed and in your PATH (%v): %w", err, chat.ErrUnavailable)
	}
	return &Client{
		path:  path,
		model: resolved,
		log:   logger.With().Str("backend", Name).Str("model", resolved).Logger(),
	}, nil
}

// Model returns the model the client runs
func (c *Client) Model() string {
	return c.model
}

// CompletePrompt runs the model on prompt. Output lines may be JSON records or plain text; an error record or a
// non-zero exit fails the call and any partial output is discarded.
func (c *Client) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.path, "run", c.model)
	cmd.Stdin = strings.NewReader(prompt + "\n")
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open ollama output: %w", err)
	}

	c.log.Debug().Int("prompt_bytes", len(prompt)).Msg("Starting ollama")
	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to start ollama (%v): %w", err, chat.ErrUnavailable)
		}
		return "", fmt.Errorf("failed to start ollama: %w", err)
	}

	output, collectErr := fragment.Collect(fragment.Scan(stdout))
	if collectErr != nil {
		// Kill the process rather than waiting for it to finish a reply we will not use
		cancel()
		_ = cmd.Wait()
		return "", fmt.Errorf("ollama error: %w", collectErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ollama killed: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("ollama exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("failed to wait for ollama: %w", err)
	}

	c.log.Debug().Dur("elapsed", time.Since(start)).Int("reply_bytes", len(output)).Msg("Ollama finished")
	return output, nil
}
