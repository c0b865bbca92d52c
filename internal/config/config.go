// Package config provides configuration management for parley.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cchalm/parley/internal/backend/ollama"
	"github.com/cchalm/parley/internal/backend/openaicompat"
	"github.com/cchalm/parley/internal/chat"
)

// Backend names accepted by --backend / PARLEY_BACKEND, besides the OpenAI-compatible vendors
const (
	BackendOllamaCLI = "ollama-cli"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
)

// Config holds the configuration for a chat session
type Config struct {
	Backend      string
	Model        string
	SystemPrompt string
	MaxHistory   int
	Timeout      time.Duration
	LogLevel     string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
	XAIAPIKey       string

	OllamaHost string
	OllamaBin  string

	TelemetryEnabled bool
	OTLPEndpoint     string
}

// ConfigurationError reports missing or invalid startup configuration. It is fatal.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Default returns the configuration of the interactive Ollama chat
func Default() Config {
	return Config{
		Backend:    BackendOllamaCLI,
		MaxHistory: chat.DefaultMaxHistory,
		Timeout:    chat.DefaultTimeout,
		LogLevel:   "warn",
		OllamaHost: ollama.DefaultHost,
		OllamaBin:  "ollama",
	}
}

// Load reads configuration from environment variables on top of Default. getenv is usually os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	config := Default()

	loadOptional(getenv, &config.Backend, "PARLEY_BACKEND")
	loadOptional(getenv, &config.Model, "PARLEY_MODEL")
	loadOptional(getenv, &config.SystemPrompt, "PARLEY_SYSTEM_PROMPT")
	loadOptional(getenv, &config.LogLevel, "PARLEY_LOG_LEVEL")
	loadOptional(getenv, &config.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	loadOptional(getenv, &config.OpenAIAPIKey, "OPENAI_API_KEY")
	loadOptional(getenv, &config.DeepSeekAPIKey, "DEEPSEEK_API_KEY")
	loadOptional(getenv, &config.XAIAPIKey, "XAI_API_KEY")
	loadOptional(getenv, &config.OllamaHost, "OLLAMA_HOST")
	loadOptional(getenv, &config.OllamaBin, "OLLAMA_BIN")
	loadOptional(getenv, &config.OTLPEndpoint, "PARLEY_OTLP_ENDPOINT")

	if err := parseOptional(getenv, &config.MaxHistory, "PARLEY_MAX_HISTORY", strconv.Atoi); err != nil {
		return Config{}, err
	}
	if err := parseOptional(getenv, &config.Timeout, "PARLEY_TIMEOUT", time.ParseDuration); err != nil {
		return Config{}, err
	}
	if err := parseOptional(getenv, &config.TelemetryEnabled, "PARLEY_TELEMETRY", strconv.ParseBool); err != nil {
		return Config{}, err
	}

	// Ollama accepts OLLAMA_HOST without a scheme
	if !strings.Contains(config.OllamaHost, "://") {
		config.OllamaHost = "http://" + config.OllamaHost
	}

	return config, nil
}

// Validate checks that the selected backend is known and its credential is present
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOllamaCLI:
		if c.OllamaBin == "" {
			return &ConfigurationError{Key: "OLLAMA_BIN", Reason: "must not be empty"}
		}
	case BackendOllama:
		if c.OllamaHost == "" {
			return &ConfigurationError{Key: "OLLAMA_HOST", Reason: "must not be empty"}
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			return missingEnv("ANTHROPIC_API_KEY")
		}
	default:
		vendor, ok := openaicompat.LookupVendor(c.Backend)
		if !ok {
			return &ConfigurationError{
				Key:    "backend",
				Reason: fmt.Sprintf("unknown backend %q, expected one of %s", c.Backend, strings.Join(BackendNames(), ", ")),
			}
		}
		if c.APIKey(vendor.Name) == "" {
			return missingEnv(vendor.APIKeyEnv)
		}
	}

	if c.MaxHistory < 0 || c.MaxHistory%2 != 0 {
		return &ConfigurationError{Key: "max-history", Reason: fmt.Sprintf("must be a non-negative even number, got %d", c.MaxHistory)}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Key: "timeout", Reason: fmt.Sprintf("must not be negative, got %s", c.Timeout)}
	}
	return nil
}

// APIKey returns the credential for an OpenAI-compatible vendor
func (c Config) APIKey(vendor string) string {
	switch vendor {
	case "openai":
		return c.OpenAIAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	case "xai":
		return c.XAIAPIKey
	default:
		return ""
	}
}

// UsesOllama reports whether the backend takes Ollama model identifiers
func (c Config) UsesOllama() bool {
	return c.Backend == BackendOllamaCLI || c.Backend == BackendOllama
}

// BackendNames lists every accepted backend name
func BackendNames() []string {
	return append([]string{BackendOllamaCLI, BackendOllama, BackendAnthropic}, openaicompat.VendorNames()...)
}

func missingEnv(key string) *ConfigurationError {
	return &ConfigurationError{Key: key, Reason: "missing required environment variable"}
}

func loadOptional(getenv func(string) string, dest *string, key string) {
	if v := getenv(key); v != "" {
		*dest = v
	}
}

func parseOptional[T any](getenv func(string) string, dest *T, key string, parseFn func(string) (T, error)) error {
	str := getenv(key)
	if str == "" {
		return nil // Leave default value
	}
	v, err := parseFn(str)
	if err != nil {
		return &ConfigurationError{Key: key, Reason: fmt.Sprintf("failed to parse value '%s' as '%T': %v", str, *dest, err)}
	}
	*dest = v
	return nil
}
