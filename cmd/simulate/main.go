package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scorebot/internal/config"
	"github.com/okian/scorebot/internal/domain/roster"
	"github.com/okian/scorebot/internal/simulate"
)

// Default configuration constants.
const (
	defaultChats         = 20
	defaultMessages      = 2000
	defaultDuplicateRate = 0.1
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 10 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	// The bot's own settings supply the token and roster when present.
	_ = config.LoadDotEnv()
	var (
		token = os.Getenv(config.EnvPrefix + "BOT_TOKEN")
		r     = roster.Default()
	)
	if cfg, err := config.Load(context.Background()); err == nil {
		token = cfg.BotToken
		if cr, err := cfg.Roster(); err == nil {
			r = cr
		}
	}

	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		botToken   = flag.String("token", token, "Bot token used in the webhook path")
		chats      = flag.Int("chats", defaultChats, "Number of chats to spread messages over")
		messages   = flag.Int("messages", defaultMessages, "Number of messages to generate")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of updates redelivered after the first pass")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent senders")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", 0, "Generator seed, 0 picks one from the clock")
		outputFile = flag.String("output", "", "Write generated updates to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *botToken == "" {
		_, _ = os.Stderr.WriteString("A bot token is required, pass -token or set " + config.EnvPrefix + "BOT_TOKEN\n")
		os.Exit(2)
	}
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:       *baseURL,
		Token:         *botToken,
		Chats:         *chats,
		Messages:      *messages,
		DuplicateRate: *duplicates,
		Workers:       *workers,
		Timeout:       *timeout,
		Seed:          *seed,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	if _, err := simulate.Run(ctx, cfg, r); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
