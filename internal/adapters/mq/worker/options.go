package worker

import (
	"time"

	"github.com/okian/scorebot/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithAttempts sets how many times a reply is tried before it is dropped.
func WithAttempts(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.attempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts. Attempt k waits k*d.
func WithBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.backoff = d
		}
	}
}
