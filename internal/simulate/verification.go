package simulate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/okian/scorebot/pkg/logger"
)

// ErrMismatch reports that the service totals differ from the expected ones.
var ErrMismatch = errors.New("score mismatch")

// verifyScores compares every chat's totals with expected.
func verifyScores(ctx context.Context, config *Config, client *HTTPClient, expected Expected, stats *Stats) error {
	logger.Get().Info(ctx, "verifying scores", logger.Int("chats", len(expected)))

	chats := lo.Keys(expected)
	slices.Sort(chats)

	var problems []string
	for _, chat := range chats {
		got, err := fetchScores(ctx, config, client, chat)
		if err != nil {
			return err
		}
		stats.ChatsVerified++
		if diff := diffScores(expected[chat], got); len(diff) > 0 {
			problems = append(problems, fmt.Sprintf("chat %d: %s", chat, strings.Join(diff, ", ")))
		}
	}

	stats.Mismatches = len(problems)
	if len(problems) > 0 {
		for _, p := range lo.Subset(problems, 0, 10) {
			logger.Get().Error(ctx, "score mismatch", logger.String("detail", p))
		}
		return fmt.Errorf("%w: %d of %d chats", ErrMismatch, len(problems), len(chats))
	}

	logger.Get().Info(ctx, "all chat totals match", logger.Int("chats", len(chats)))
	return nil
}

// verifyDuplicates checks that every resent update was recognised.
func verifyDuplicates(sent int, stats *Stats) error {
	if stats.Duplicates != sent {
		return fmt.Errorf("%w: %d of %d resent updates reported as duplicate", ErrMismatch, stats.Duplicates, sent)
	}
	return nil
}

// diffScores lists players whose totals differ, in name order.
func diffScores(want, got map[string]int) []string {
	players := lo.Union(lo.Keys(want), lo.Keys(got))
	slices.Sort(players)
	return lo.FilterMap(players, func(p string, _ int) (string, bool) {
		w, g := want[p], got[p]
		return fmt.Sprintf("%s want %d got %d", p, w, g), w != g
	})
}
