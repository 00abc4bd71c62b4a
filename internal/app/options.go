package service

import (
	"time"

	"github.com/okian/scorebot/internal/adapters/repository"
	"github.com/okian/scorebot/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of reply delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the reply queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many update ids are remembered. Zero or less keeps
// every id.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithShardCount sets the shard count of the default score store.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithSendAttempts sets how many times a reply is tried.
func WithSendAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sendAttempts = n
		}
	}
}

// WithSendBackoff sets the base delay between reply attempts.
func WithSendBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sendBackoff = d
		}
	}
}

// WithStore replaces the in-memory score store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
