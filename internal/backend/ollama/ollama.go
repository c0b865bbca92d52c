// Package ollama talks to a running Ollama server over its REST API.
//
// Endpoints used:
//   - POST /api/chat  non-streaming multi-turn chat
//   - GET  /api/tags  health check
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/cchalm/parley/internal/chat"
)

const (
	// Name identifies this backend in errors and logs
	Name = "ollama"

	// DefaultHost is where a local Ollama listens unless OLLAMA_HOST says otherwise
	DefaultHost = "http://localhost:11434"
)

// Client is a structured-messages backend
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	log        zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message    chatMessage `json:"message"`
	DoneReason string      `json:"done_reason"`
	Done       bool        `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a client for the server at baseURL. An empty model selects chat.DefaultModel and a nil httpClient
// selects http.DefaultClient.
func New(baseURL string, model string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	resolved, err := chat.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = DefaultHost
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      resolved,
		httpClient: httpClient,
		log:        logger.With().Str("backend", Name).Str("model", resolved).Logger(),
	}, nil
}

// Model returns the model the client chats with
func (c *Client) Model() string {
	return c.model
}

// CompleteMessages sends the transcript to /api/chat and returns the assistant's reply
func (c *Client) CompleteMessages(ctx context.Context, turns []chat.Turn) (string, error) {
	msgs := make([]chatMessage, len(turns))
	for i, turn := range turns {
		msgs[i] = chatMessage{Role: string(turn.Role), Content: turn.Content}
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var resp chatResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	c.log.Debug().Str("done_reason", resp.DoneReason).Int("turns", len(turns)).Msg("Chat completed")
	return resp.Message.Content, nil
}

// HealthCheck returns nil if the server is reachable. A server that refuses connections outright is reported as
// chat.ErrUnavailable; during a chat the same failure is an ordinary per-turn error.
func (c *Client) HealthCheck(ctx context.Context) error {
	respBody, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("ollama is not running at %s (%v): %w", c.baseURL, err, chat.ErrUnavailable)
		}
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	return respBody.Close()
}

// do sends a request to baseURL+path and returns the body of a 2xx response. The caller closes it.
func (c *Client) do(ctx context.Context, method string, path string, body []byte) (io.ReadCloser, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		var errResp errorResponse
		if json.Unmarshal(b, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}
