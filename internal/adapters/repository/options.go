package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShardCount sets the number of independently locked shards.
func WithShardCount(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithHeader sets the first line of formatted totals.
func WithHeader(header string) Option {
	return func(s *MemoryStore) {
		if header != "" {
			s.header = header
		}
	}
}
