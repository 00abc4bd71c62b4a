package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorebot/internal/adapters/telegram"
	"github.com/okian/scorebot/internal/domain/roster"
	"github.com/okian/scorebot/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete simulation against config.BaseURL for the
// players of r and returns the collected statistics.
func Run(ctx context.Context, config *Config, r *roster.Roster) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	runID := uuid.NewString()[:8]
	ctx = logger.WithCorrelation(ctx, runID)

	logger.Get().Info(ctx, "starting scorebot simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("chats", config.Chats),
		logger.Int("messages", config.Messages),
		logger.Int("workers", config.Workers),
		logger.Any("duplicateRate", config.DuplicateRate),
		logger.Any("seed", config.Seed),
		logger.String("timeout", config.Timeout.String()))

	client := newHTTPClient(config.Timeout, runID)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate updates
	idBase := newIDBase()
	updates, expected, err := generateUpdates(ctx, config, r, idBase, stats)
	if err != nil {
		return stats, fmt.Errorf("update generation failed: %w", err)
	}

	// Step 3: Clear every chat so totals left by earlier runs do not count
	clears := clearUpdates(expected, idBase+int64(len(updates)))
	reset := submitUpdates(ctx, config, client, clears)
	stats.Resets = int(reset.command.Load())
	stats.UpdatesSubmitted = int(reset.total())
	if stats.Resets != len(clears) {
		return stats, fmt.Errorf("%d of %d resets were rejected", len(clears)-stats.Resets, len(clears))
	}

	// Step 4: Submit updates concurrently
	first := submitUpdates(ctx, config, client, updates)
	stats.Scored = int(first.scored.Load())
	stats.Ignored = int(first.ignored.Load())
	stats.Commands = int(first.command.Load())
	stats.Failed = int(first.failed.Load())
	stats.UpdatesSubmitted += int(first.total())
	logger.Get().Info(ctx, "update submission completed",
		logger.Int("scored", stats.Scored),
		logger.Int("ignored", stats.Ignored),
		logger.Int("commands", stats.Commands),
		logger.Int("failed", stats.Failed))
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d updates were rejected", stats.Failed)
	}

	// Step 5: Redeliver a sample the way Telegram does after a lost ack
	dups := pickDuplicates(updates, config.DuplicateRate, config.Seed)
	second := submitUpdates(ctx, config, client, dups)
	stats.Duplicates = int(second.duplicate.Load())
	stats.UpdatesSubmitted += int(second.total())
	if err := verifyDuplicates(len(dups), stats); err != nil {
		return stats, err
	}

	// Step 6: Verify totals
	if err := verifyScores(ctx, config, client, expected, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save updates to file
	if config.OutputFile != "" {
		if err := saveUpdatesToFile(ctx, config.OutputFile, updates); err != nil {
			logger.Get().Warn(ctx, "failed to save updates to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveUpdatesToFile writes the generated updates as a JSON array so a run
// can be replayed with curl.
func saveUpdatesToFile(ctx context.Context, filename string, updates []telegram.Update) error {
	if len(updates) == 0 {
		return fmt.Errorf("no updates to save")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(updates, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal updates: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "updates saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var updatesPerSecond, duplicateShare float64
	if stats.Duration > 0 {
		updatesPerSecond = float64(stats.UpdatesSubmitted) / stats.Duration.Seconds()
	}
	if stats.UpdatesSubmitted > 0 {
		duplicateShare = float64(stats.Duplicates) / float64(stats.UpdatesSubmitted) * PercentageMultiplier
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("updatesGenerated", stats.UpdatesGenerated),
		logger.Int("updatesSubmitted", stats.UpdatesSubmitted),
		logger.Int("resets", stats.Resets),
		logger.Int("scored", stats.Scored),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("chatsVerified", stats.ChatsVerified),
		logger.String("duration", stats.Duration.String()),
		logger.Any("duplicatePercent", duplicateShare),
		logger.Any("updatesPerSecond", updatesPerSecond))
}
