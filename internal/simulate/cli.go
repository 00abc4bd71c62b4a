package simulate

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/scorebot/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends logs to stdout and, when logFile is set, to that file.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWith(w, "text"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`ScoreBot Simulator
==================

Clears a set of chats on a running scorebot, sends synthetic messages to
them through its webhook, redelivers a sample and checks every chat's
totals via /scores. Each run uses fresh update ids, so it can be repeated
against the same bot.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -token string
        Bot token used in the webhook path (default $SCOREBOT_BOT_TOKEN)
  -chats int
        Number of chats to spread messages over (default 20)
  -messages int
        Number of messages to generate (default 2000)
  -duplicates float
        Share of updates redelivered after the first pass (default 0.1)
  -workers int
        Number of concurrent senders (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed uint
        Generator seed, 0 picks one from the clock
  -output string
        Write generated updates to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Simulate against a local bot
  go run ./cmd/simulate -token 123:ABC

  # Replay a run exactly
  go run ./cmd/simulate -token 123:ABC -seed 42 -messages 50000 -chats 200
`)
}
