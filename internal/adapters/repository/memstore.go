package repository

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/scorebot/internal/domain/model"
	"github.com/okian/scorebot/internal/domain/roster"
	"github.com/okian/scorebot/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount = 16
	DefaultHeader     = "🎯 Total Score:"
)

// chatScores is one chat's record guarded by its own lock, so updates to
// different chats never contend and updates to the same chat never interleave.
type chatScores struct {
	mu     sync.Mutex
	scores Record
}

type shard struct {
	mu    sync.RWMutex
	chats map[int64]*chatScores
}

// MemoryStore is an in-memory Store sharded by chat id. State lives for the
// lifetime of the process.
type MemoryStore struct {
	roster     *roster.Roster
	players    []string
	shards     []*shard
	shardCount int
	header     string
	chats      atomic.Int64
}

// NewMemoryStore creates a store whose records cover the players of r.
func NewMemoryStore(r *roster.Roster, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		roster:     r,
		players:    r.Players(),
		shardCount: defaultShardCount,
		header:     DefaultHeader,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{chats: make(map[int64]*chatScores)}
	}
	return s
}

// GetOrInit returns a copy of the chat's record.
func (s *MemoryStore) GetOrInit(_ context.Context, chatID int64) Record {
	c := s.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyRecord(c.scores)
}

// Apply adds deltas to the chat's totals under the chat lock.
func (s *MemoryStore) Apply(_ context.Context, chatID int64, deltas []model.Delta) Record {
	c := s.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range deltas {
		current, ok := c.scores[d.Player]
		if !ok {
			metrics.RecordUnknownPlayer()
			continue
		}
		c.scores[d.Player] = saturatingAdd(current, d.Amount)
		metrics.RecordDeltaApplied(d.Player)
	}
	return copyRecord(c.scores)
}

// Reset swaps in a fresh all-zero record under the chat lock.
func (s *MemoryStore) Reset(_ context.Context, chatID int64) Record {
	c := s.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scores = s.zero()
	metrics.RecordScoreReset()
	return copyRecord(c.scores)
}

// Format renders the header followed by one "Name: score" line per player.
func (s *MemoryStore) Format(ctx context.Context, chatID int64) string {
	return s.Render(s.GetOrInit(ctx, chatID))
}

// Render formats rec with the store's header and roster order.
func (s *MemoryStore) Render(rec Record) string {
	return Render(s.header, s.players, rec)
}

// Count returns the number of chats tracked.
func (s *MemoryStore) Count(_ context.Context) int {
	return int(s.chats.Load())
}

// chat returns the entry for chatID, creating it on first reference.
func (s *MemoryStore) chat(chatID int64) *chatScores {
	sh := s.shardFor(chatID)

	sh.mu.RLock()
	c, ok := sh.chats[chatID]
	sh.mu.RUnlock()
	if ok {
		return c
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if c, ok = sh.chats[chatID]; ok {
		return c
	}
	c = &chatScores{scores: s.zero()}
	sh.chats[chatID] = c
	metrics.UpdateChatsTracked(int(s.chats.Add(1)))
	return c
}

func (s *MemoryStore) shardFor(chatID int64) *shard {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(chatID))
	return s.shards[xxhash.Sum64(key[:])%uint64(len(s.shards))]
}

func (s *MemoryStore) zero() Record {
	rec := make(Record, len(s.players))
	for _, p := range s.players {
		rec[p] = 0
	}
	return rec
}

// Render formats a record as header plus one line per player, in order.
func Render(header string, players []string, rec Record) string {
	var b strings.Builder
	b.WriteString(header)
	for _, p := range players {
		b.WriteByte('\n')
		b.WriteString(p)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(rec[p]))
	}
	return b.String()
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func saturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
