// Package repository defines the per-chat score store.
package repository

import (
	"context"

	"github.com/okian/scorebot/internal/domain/model"
)

// Record maps canonical player names to scores for one chat. Values handed
// out by a Store are copies; mutating them does not affect stored state.
type Record map[string]int

// Store keeps running totals per chat. Implementations must hold an entry for
// every roster player in every record and serialize mutations of one chat.
type Store interface {
	// GetOrInit returns the chat's record, creating an all-zero one if absent.
	GetOrInit(ctx context.Context, chatID int64) Record

	// Apply adds each delta to the chat's totals and returns the result.
	// Deltas naming players outside the roster are ignored.
	Apply(ctx context.Context, chatID int64, deltas []model.Delta) Record

	// Reset replaces the chat's record with an all-zero one.
	Reset(ctx context.Context, chatID int64) Record

	// Format renders the chat's totals in roster order.
	Format(ctx context.Context, chatID int64) string

	// Render formats rec the way Format does, so a caller can show the exact
	// record an Apply or Reset returned.
	Render(rec Record) string

	// Count returns the number of chats with a record.
	Count(ctx context.Context) int
}
