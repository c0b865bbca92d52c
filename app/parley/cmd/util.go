package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/cchalm/parley/internal/backend/claude"
	"github.com/cchalm/parley/internal/backend/ollama"
	"github.com/cchalm/parley/internal/backend/ollamacli"
	"github.com/cchalm/parley/internal/backend/openaicompat"
	"github.com/cchalm/parley/internal/chat"
	"github.com/cchalm/parley/internal/config"
	"github.com/cchalm/parley/internal/telemetry"
	"github.com/cchalm/parley/internal/transport"
)

const (
	maxRetries         = 2
	healthCheckTimeout = 5 * time.Second
)

func setupContext(logger zerolog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		logger.Info().Msg("Interrupt signal detected, shutting down gracefully...")
		cancel()
		<-interrupt
		fmt.Fprintln(os.Stderr, "Forcing shutdown")
		os.Exit(1)
	}()

	return ctx
}

// backendSetup is everything the chat command needs to know about the selected backend
type backendSetup struct {
	backend chat.Backend
	model   string
	speaker string // Label printed in front of replies
}

func createBackend(ctx context.Context, c config.Config, logger zerolog.Logger) (backendSetup, error) {
	switch c.Backend {
	case config.BackendOllamaCLI:
		client, err := ollamacli.New(c.OllamaBin, c.Model, logger)
		if err != nil {
			return backendSetup{}, err
		}
		return backendSetup{backend: chat.Prompt(ollamacli.Name, client), model: client.Model(), speaker: "Ollama"}, nil

	case config.BackendOllama:
		client, err := ollama.New(c.OllamaHost, c.Model, transport.NewClient(logger), logger)
		if err != nil {
			return backendSetup{}, err
		}
		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := client.HealthCheck(healthCtx); err != nil {
			return backendSetup{}, err
		}
		return backendSetup{backend: chat.Messages(ollama.Name, client), model: client.Model(), speaker: "Ollama"}, nil

	case config.BackendAnthropic:
		sender := claude.NewStreamingMessageSender(createAnthropicClient(c.AnthropicAPIKey, logger))
		client := claude.New(sender, c.Model, claude.DefaultMaxOutputTokens, logger)
		return backendSetup{backend: chat.Messages(claude.Name, client), model: client.Model(), speaker: "Claude"}, nil

	default:
		vendor, ok := openaicompat.LookupVendor(c.Backend)
		if !ok {
			return backendSetup{}, &config.ConfigurationError{Key: "backend", Reason: fmt.Sprintf("unknown backend %q", c.Backend)}
		}
		completions := openaicompat.NewCompletionCreator(vendor, c.APIKey(vendor.Name), transport.NewClient(logger), maxRetries)
		client := openaicompat.New(vendor, completions, c.Model, logger)
		return backendSetup{backend: chat.Messages(vendor.Name, client), model: client.Model(), speaker: vendor.DisplayName}, nil
	}
}

func createAnthropicClient(apiKey string, logger zerolog.Logger) anthropic.Client {
	rateLimitedHTTPClient := &http.Client{
		Transport: transport.WithRateLimiting(nil, logger),
	}
	return anthropic.NewClient(
		option.WithHTTPClient(rateLimitedHTTPClient),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	)
}

func createTelemetryProvider(ctx context.Context, c config.Config, logger zerolog.Logger) (*telemetry.Provider, error) {
	telemetryConfig := telemetry.TelemetryConfig{
		Enabled:        c.TelemetryEnabled,
		Endpoint:       c.OTLPEndpoint,
		Insecure:       true,
		ServiceVersion: versionInfo.version,
	}
	return telemetry.NewProvider(ctx, telemetryConfig, logger)
}
