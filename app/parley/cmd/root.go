package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cchalm/parley/internal/config"
)

var (
	cfg    = config.Default()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Chat with local and hosted language models from the terminal",
	Long: `Parley keeps a bounded conversation history and sends it to a language model
backend: a local Ollama process or server, Anthropic, OpenAI, DeepSeek or xAI.
Credentials are read from the environment or a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRootConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadRootConfig reads .env and the environment once, then applies flags the user set explicitly
func loadRootConfig(cmd *cobra.Command, _ []string) error {
	dotenvErr := godotenv.Load()

	loaded, err := config.Load(os.Getenv)
	if err != nil {
		return err
	}
	cfg = loaded
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}

	logger, err = newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if dotenvErr != nil {
		logger.Debug().Msg("No .env file found, using environment variables")
	}
	return nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), &config.ConfigurationError{Key: "log-level", Reason: fmt.Sprintf("unknown level %q", level)}
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
