// Package worker delivers queued replies to the chat transport.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/scorebot/internal/adapters/mq/queue"
	"github.com/okian/scorebot/internal/domain/model"
	"github.com/okian/scorebot/pkg/logger"
	"github.com/okian/scorebot/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultAttempts         = 3
	defaultBackoff          = 500 * time.Millisecond
	poolShutdownTimeout     = 30 * time.Second
)

// Drop reasons reported to metrics.
const (
	dropSendFailed = "send_failed"
	dropCancelled  = "cancelled"
)

// Reply is what workers read off the queue.
type Reply = model.Reply

// Sender delivers one message. A positive replyTo threads it under that
// message.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error
}

// Queue defines how workers receive replies.
type Queue interface {
	Dequeue() <-chan Reply
}

// Worker sends replies using the provided Sender.
type Worker interface {
	// Run starts the worker loop until the queue is drained or ctx is canceled.
	Run(ctx context.Context)

	// Done is closed once Run has returned.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker for delivering replies.
type InMemoryWorker struct {
	queue    Queue
	sender   Sender
	name     string
	attempts int
	backoff  time.Duration

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sender Sender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sender:   sender,
		name:     "worker",
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run reads replies until the queue channel closes or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	replies := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-replies:
			if !ok {
				return
			}
			rctx := logger.WithCorrelation(ctx, r.CorrelationID)
			if err := w.deliver(rctx, r); err != nil {
				w.logger.Error(rctx, "reply dropped",
					logger.Int64("chat_id", r.ChatID),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// deliver tries to send r up to the configured number of attempts, waiting
// attempt*backoff between tries.
func (w *InMemoryWorker) deliver(ctx context.Context, r Reply) error { //nolint:gocritic // hugeParam: Reply is passed by value for channel semantics
	start := time.Now()
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if attempt > 1 {
			metrics.RecordReplyRetry()
			if werr := wait(ctx, time.Duration(attempt-1)*w.backoff); werr != nil {
				metrics.RecordReplyDropped(dropCancelled)
				return fmt.Errorf("delivery cancelled after %d attempts: %w", attempt-1, errors.Join(err, werr))
			}
		}

		err = w.sender.SendMessage(ctx, r.ChatID, r.Text, r.ReplyTo)
		if err == nil {
			metrics.RecordReplySent(float64(time.Since(start).Milliseconds()))
			return nil
		}
		metrics.RecordReplyFailed()
		w.logger.Warn(ctx, "send attempt failed",
			logger.Int64("chat_id", r.ChatID),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
	}

	metrics.RecordReplyDropped(dropSendFailed)
	metrics.RecordErrorByComponent("worker", "send_failed")
	return fmt.Errorf("giving up after %d attempts: %w", w.attempts, err)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pool manages multiple workers reading the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   queue.Queue

	cancel   context.CancelFunc
	started  bool
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one picks a
// default based on the CPU count. opts are applied to every worker.
func NewPool(workerCount int, q queue.Queue, sender Sender, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, sender, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool. Workers outlive ctx only until
// Shutdown cancels them.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain it. Workers still
// busy when ctx expires are canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if cerr := p.queue.Close(); cerr != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
		}

		if !p.started {
			metrics.UpdateWorkerCount(0)
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
			}
			if err != nil {
				break
			}
		}
		p.cancel()
		metrics.UpdateWorkerCount(0)
	})
	return err
}
