// Package claude is a chat backend for Anthropic's Messages API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/cchalm/parley/internal/chat"
)

const (
	// Name identifies this backend in errors and logs
	Name = "anthropic"

	DefaultModel           = anthropic.ModelClaudeSonnet4_0
	DefaultMaxOutputTokens = 4096
)

// MessageSender sends a single Messages API request and returns the complete response
type MessageSender interface {
	SendMessage(ctx context.Context, params anthropic.MessageNewParams, opts ...anthropt.RequestOption) (anthropic.Message, error)
}

// StreamingMessageSender streams the response and accumulates it into one message, which avoids the SDK's
// long-request restrictions on non-streaming calls
type StreamingMessageSender struct {
	client anthropic.Client
}

func NewStreamingMessageSender(client anthropic.Client) StreamingMessageSender {
	return StreamingMessageSender{
		client: client,
	}
}

func (sms StreamingMessageSender) SendMessage(
	ctx context.Context,
	params anthropic.MessageNewParams,
	opts ...anthropt.RequestOption,
) (anthropic.Message, error) {
	stream := sms.client.Messages.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	response := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		err := response.Accumulate(event)
		if err != nil {
			return anthropic.Message{}, fmt.Errorf("failed to accumulate response content stream: %w", err)
		}
	}
	if stream.Err() != nil {
		return anthropic.Message{}, fmt.Errorf("failed to stream response: %w", stream.Err())
	}
	return response, nil
}

// Client is a structured-messages backend
type Client struct {
	sender          MessageSender
	model           anthropic.Model
	maxOutputTokens int64
	log             zerolog.Logger
}

// New creates a backend. An empty model selects DefaultModel.
func New(sender MessageSender, model string, maxOutputTokens int64, logger zerolog.Logger) *Client {
	m := anthropic.Model(model)
	if model == "" {
		m = DefaultModel
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}
	return &Client{
		sender:          sender,
		model:           m,
		maxOutputTokens: maxOutputTokens,
		log:             logger.With().Str("backend", Name).Str("model", string(m)).Logger(),
	}
}

// Model returns the model the client talks to
func (c *Client) Model() string {
	return string(c.model)
}

// CompleteMessages sends the transcript and returns the concatenated text of the reply. System turns are moved into
// the request's system prompt, since the Messages API only accepts user and assistant messages.
func (c *Client) CompleteMessages(ctx context.Context, turns []chat.Turn) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxOutputTokens,
	}
	for _, turn := range turns {
		block := anthropic.NewTextBlock(turn.Content)
		switch turn.Role {
		case chat.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: turn.Content})
		case chat.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		case chat.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			return "", fmt.Errorf("unsupported role %q", turn.Role)
		}
	}

	response, err := c.sender.SendMessage(ctx, params)
	if err != nil {
		return "", err
	}
	if response.StopReason == "" {
		b, err := json.Marshal(response)
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to marshal corrupt message for inspection")
		}
		return "", fmt.Errorf("malformed message: %v", string(b))
	}

	c.log.Debug().
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Str("stop_reason", string(response.StopReason)).
		Msg("Message completed")

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
