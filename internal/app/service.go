// Package service turns chat updates into score changes and queued replies.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/okian/scorebot/internal/adapters/mq/queue"
	"github.com/okian/scorebot/internal/adapters/mq/worker"
	"github.com/okian/scorebot/internal/adapters/repository"
	"github.com/okian/scorebot/internal/adapters/telegram"
	"github.com/okian/scorebot/internal/domain/dedupe"
	"github.com/okian/scorebot/internal/domain/model"
	"github.com/okian/scorebot/internal/domain/parser"
	"github.com/okian/scorebot/internal/domain/roster"
	"github.com/okian/scorebot/pkg/logger"
	"github.com/okian/scorebot/pkg/metrics"
)

// Outcome describes what HandleUpdate did with an update.
type Outcome string

// Update outcomes.
const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCommand   Outcome = "command"
	OutcomeScored    Outcome = "scored"
)

// Chat commands.
const (
	cmdStart = "start"
	cmdScore = "score"
	cmdClear = "clear"
)

const resetPrefix = "The score is reset. Let's start over!\n\n"

// Service owns the score store and the reply pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	roster  *roster.Roster
	parser  *parser.Parser
	sender  worker.Sender
	store   repository.Store
	deduper dedupe.Deduper
	replies queue.Queue
	pool    *worker.Pool

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	shardCount   int
	sendAttempts int
	sendBackoff  time.Duration

	help    string
	started bool

	logger logger.Logger
}

// New constructs a Service for the players of r that delivers replies
// through sender.
func New(r *roster.Roster, sender worker.Sender, opts ...Option) *Service {
	s := &Service{
		roster:       r,
		parser:       parser.New(r),
		sender:       sender,
		workerCount:  4,
		queueSize:    1024,
		dedupeSize:   10_000,
		shardCount:   16,
		sendAttempts: 3,
		sendBackoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(r, repository.WithShardCount(s.shardCount))
	}
	s.help = helpText(r)
	return s
}

// Start creates the deduper and reply queue and starts the delivery workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.replies = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.replies, s.sender,
		worker.WithAttempts(s.sendAttempts),
		worker.WithBackoff(s.sendBackoff),
		worker.WithLogger(logger.Named("reply-worker")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Any("players", s.roster.Players()),
	)
	return nil
}

// Stop rejects new updates and waits for queued replies to be delivered
// until ctx expires. Scores are kept.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info(ctx, "stopping score service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop reply workers: %w", err)
	}
	s.logger.Info(ctx, "score service stopped")
	return nil
}

// HandleUpdate applies one Telegram update. Delivery of any reply happens
// asynchronously and never affects the returned outcome.
func (s *Service) HandleUpdate(ctx context.Context, u telegram.Update) (Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}
	metrics.RecordUpdateReceived()

	msg := u.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		metrics.RecordUpdateIgnored()
		return OutcomeIgnored, nil
	}

	if s.deduper.SeenAndRecord(ctx, u.UpdateID) {
		metrics.RecordUpdateDuplicate()
		s.logger.Debug(ctx, "duplicate update skipped", logger.Int64("update_id", u.UpdateID))
		return OutcomeDuplicate, nil
	}
	if err := ctx.Err(); err != nil {
		// Nothing was applied, so a redelivery must be processed.
		s.deduper.Unrecord(ctx, u.UpdateID)
		return "", fmt.Errorf("update %d: %w", u.UpdateID, err)
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if cmd, ok := command(text); ok {
		switch cmd {
		case cmdStart:
			s.reply(ctx, chatID, s.help, msg.MessageID)
		case cmdScore:
			s.reply(ctx, chatID, s.store.Format(ctx, chatID), msg.MessageID)
		case cmdClear:
			rec := s.store.Reset(ctx, chatID)
			s.reply(ctx, chatID, resetPrefix+s.store.Render(rec), 0)
		}
		metrics.RecordCommand(cmd)
		return OutcomeCommand, nil
	}

	deltas := s.parser.Parse(text)
	if len(deltas) == 0 {
		metrics.RecordUpdateIgnored()
		return OutcomeIgnored, nil
	}

	rec := s.store.Apply(ctx, chatID, deltas)
	s.logger.Debug(ctx, "score updated",
		logger.Int64("chat_id", chatID),
		logger.Int("deltas", len(deltas)),
	)
	s.reply(ctx, chatID, s.store.Render(rec), 0)
	return OutcomeScored, nil
}

// reply queues text for delivery. A full or closed queue drops the reply.
func (s *Service) reply(ctx context.Context, chatID int64, text string, replyTo int64) {
	err := s.replies.Enqueue(ctx, model.Reply{
		ChatID:        chatID,
		Text:          text,
		ReplyTo:       replyTo,
		CorrelationID: logger.Correlation(ctx),
	})
	if err == nil {
		return
	}

	reason := "enqueue_error"
	switch {
	case errors.Is(err, queue.ErrFull):
		reason = "queue_full"
	case errors.Is(err, queue.ErrClosed):
		reason = "queue_closed"
	}
	metrics.RecordReplyDropped(reason)
	s.logger.Warn(ctx, "reply dropped",
		logger.Int64("chat_id", chatID),
		logger.String("reason", reason),
		logger.Error(err),
	)
}

// Scores returns the current totals of a chat.
func (s *Service) Scores(ctx context.Context, chatID int64) repository.Record {
	return s.store.GetOrInit(ctx, chatID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"players":     s.roster.Players(),
		"chats":       s.store.Count(ctx),
	}

	if s.started {
		stats["queueLength"] = s.replies.Len()
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}

// command extracts the command name from text such as "/score@my_bot now".
// Only the leading token counts and only known commands are reported.
func command(text string) (string, bool) {
	token, _, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(token, "\n\t"); i >= 0 {
		token = token[:i]
	}
	if !strings.HasPrefix(token, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(token[1:], "@")
	switch name {
	case cmdStart, cmdScore, cmdClear:
		return name, true
	}
	return "", false
}

// helpText describes the bot for the players of r.
func helpText(r *roster.Roster) string {
	title := cases.Title(language.Und)
	players := r.Players()

	names := make([]string, 0, len(players))
	for _, p := range players {
		forms := []string{p}
		for _, a := range r.Aliases(p) {
			forms = append(forms, title.String(a))
		}
		names = append(names, strings.Join(forms, "/"))
	}

	first, last := players[0], players[len(players)-1]
	var b strings.Builder
	fmt.Fprintf(&b, "Hi! I keep score for %s in this chat.\n\n", strings.Join(names, ", "))
	b.WriteString("Example messages:\n")
	fmt.Fprintf(&b, "  • %s +2\n", first)
	fmt.Fprintf(&b, "  • %s -1\n", last)
	fmt.Fprintf(&b, "  • %s +4\\n%s +2 (several lines in one message)\n\n", last, first)
	b.WriteString("Commands:\n")
	b.WriteString("  • /score — show the current score\n")
	b.WriteString("  • /clear — reset the score\n\n")
	b.WriteString("Note: disable Privacy Mode in BotFather so I can see regular group messages.")
	return b.String()
}
