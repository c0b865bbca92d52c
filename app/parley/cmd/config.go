package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cchalm/parley/internal/config"
)

// applyFlags overrides environment configuration with every flag the user set explicitly
func applyFlags(cmd *cobra.Command, dest *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"log-level": &dest.LogLevel,
		"backend":   &dest.Backend,
		"model":     &dest.Model,
		"system":    &dest.SystemPrompt,
	}
	for name, field := range stringFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*field = v
	}

	if flags.Lookup("max-history") != nil && flags.Changed("max-history") {
		v, err := flags.GetInt("max-history")
		if err != nil {
			return err
		}
		dest.MaxHistory = v
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		dest.Timeout = v
	}
	if flags.Lookup("telemetry") != nil && flags.Changed("telemetry") {
		v, err := flags.GetBool("telemetry")
		if err != nil {
			return err
		}
		dest.TelemetryEnabled = v
	}
	return nil
}

func addChatFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().String("backend", defaults.Backend, "Backend to chat with (ollama-cli, ollama, anthropic, openai, deepseek, xai)")
	cmd.Flags().String("model", "", "Model name; Ollama backends prompt for one when unset")
	cmd.Flags().String("system", "", "System prompt to seed the conversation with")
	cmd.Flags().Int("max-history", defaults.MaxHistory, "Messages kept before the history is halved; 0 keeps everything")
	cmd.Flags().Duration("timeout", defaults.Timeout, "Per-reply timeout; 0 waits indefinitely")
	cmd.Flags().Bool("telemetry", false, "Export traces over OTLP/HTTP")
}
