// Package openaicompat is a chat backend for vendors that speak the OpenAI chat completions protocol: OpenAI itself,
// DeepSeek and xAI.
package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/cchalm/parley/internal/chat"
)

// Vendor describes where an OpenAI-compatible API lives and which credential it needs
type Vendor struct {
	Name         string
	DisplayName  string
	BaseURL      string // Empty for the SDK default
	APIKeyEnv    string
	DefaultModel string
}

var vendors = map[string]Vendor{
	"openai": {
		Name:         "openai",
		DisplayName:  "OpenAI",
		APIKeyEnv:    "OPENAI_API_KEY",
		DefaultModel: "gpt-4o-mini",
	},
	"deepseek": {
		Name:         "deepseek",
		DisplayName:  "DeepSeek",
		BaseURL:      "https://api.deepseek.com",
		APIKeyEnv:    "DEEPSEEK_API_KEY",
		DefaultModel: "deepseek-chat",
	},
	"xai": {
		Name:         "xai",
		DisplayName:  "Grok",
		BaseURL:      "https://api.x.ai/v1",
		APIKeyEnv:    "XAI_API_KEY",
		DefaultModel: "grok-beta",
	},
}

// LookupVendor returns the preset for name
func LookupVendor(name string) (Vendor, bool) {
	v, ok := vendors[name]
	return v, ok
}

// VendorNames returns the names of all presets, sorted
func VendorNames() []string {
	names := make([]string, 0, len(vendors))
	for name := range vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompletionCreator creates a chat completion. *openai.ChatCompletionService satisfies it.
type CompletionCreator interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// NewCompletionCreator builds an SDK client for vendor
func NewCompletionCreator(vendor Vendor, apiKey string, httpClient *http.Client, maxRetries int) CompletionCreator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}
	if vendor.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(vendor.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &client.Chat.Completions
}

// Client is a structured-messages backend
type Client struct {
	vendor      Vendor
	completions CompletionCreator
	model       string
	log         zerolog.Logger
}

// New creates a backend. An empty model selects the vendor's default.
func New(vendor Vendor, completions CompletionCreator, model string, logger zerolog.Logger) *Client {
	if model == "" {
		model = vendor.DefaultModel
	}
	return &Client{
		vendor:      vendor,
		completions: completions,
		model:       model,
		log:         logger.With().Str("backend", vendor.Name).Str("model", model).Logger(),
	}
}

// Name returns the vendor name
func (c *Client) Name() string {
	return c.vendor.Name
}

// Model returns the model the client talks to
func (c *Client) Model() string {
	return c.model
}

// CompleteMessages sends the transcript as a non-streaming chat completion and returns the first choice
func (c *Client) CompleteMessages(ctx context.Context, turns []chat.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case chat.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			return "", fmt.Errorf("unsupported role %q", turn.Role)
		}
	}

	completion, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion %s", completion.ID)
	}

	c.log.Debug().
		Int64("prompt_tokens", completion.Usage.PromptTokens).
		Int64("completion_tokens", completion.Usage.CompletionTokens).
		Str("finish_reason", string(completion.Choices[0].FinishReason)).
		Msg("Chat completion created")

	return completion.Choices[0].Message.Content, nil
}
