package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cchalm/parley/internal/chat"
	"github.com/cchalm/parley/internal/repl"
)

const shutdownTimeout = 5 * time.Second

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Starts an interactive chat. Every message is sent together with the recent
conversation history. Type 'exit' to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	addChatFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := setupContext(logger)

	r := repl.New(cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	if cfg.UsesOllama() && cfg.Model == "" {
		model, err := r.PromptModel()
		if err != nil {
			return err
		}
		cfg.Model = model
	}

	setup, err := createBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up %s backend: %w", cfg.Backend, err)
	}

	provider, err := createTelemetryProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to shut down telemetry")
		}
	}()

	session := chat.Start(setup.backend, chat.Options{
		SystemPrompt: cfg.SystemPrompt,
		MaxHistory:   cfg.MaxHistory,
		Timeout:      cfg.Timeout,
		Tracer:       provider.Tracer(),
	})
	logger.Debug().
		Str("session_id", session.ID()).
		Str("backend", session.Backend()).
		Int("max_history", cfg.MaxHistory).
		Dur("timeout", cfg.Timeout).
		Msg("Session started")

	r.Greet(setup.speaker, setup.model)
	if err := r.Run(ctx, session, setup.speaker); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Goodbye!")
	return nil
}
