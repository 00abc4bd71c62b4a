package simulate

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/okian/scorebot/internal/adapters/telegram"
	"github.com/okian/scorebot/internal/domain/roster"
	"github.com/okian/scorebot/pkg/logger"
)

// Expected holds the totals each chat must reach, keyed by chat id.
type Expected map[int64]map[string]int

var noise = []string{"👍", "🔥🔥", "…", "?!", "🎉 🎉"}

// lineFormats render one score line from an alias and a signed amount.
var lineFormats = []func(alias string, n int) string{
	func(a string, n int) string { return fmt.Sprintf("%s %+d", a, n) },
	func(a string, n int) string { return fmt.Sprintf("%s: %+d", a, n) },
	func(a string, n int) string {
		if n < 0 {
			return fmt.Sprintf("%s −%d", a, -n)
		}
		return fmt.Sprintf("%s %d", a, n)
	},
}

// generator produces updates for a fixed roster from a seeded source so a
// run can be replayed.
type generator struct {
	rnd     *rand.Rand
	players []string
	forms   map[string][]string
}

func newGenerator(r *roster.Roster, seed uint64) *generator {
	g := &generator{
		rnd:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		players: r.Players(),
		forms:   make(map[string][]string),
	}
	for _, p := range g.players {
		g.forms[p] = append([]string{p}, r.Aliases(p)...)
	}
	return g
}

// generateUpdates creates config.Messages updates spread over config.Chats
// chats, numbered from idBase, and returns them with the totals the bot
// should report once every chat has been cleared and the updates applied.
func generateUpdates(ctx context.Context, config *Config, r *roster.Roster, idBase int64, stats *Stats) ([]telegram.Update, Expected, error) {
	if config.Chats <= 0 || config.Messages <= 0 {
		return nil, nil, fmt.Errorf("chats and messages must be positive")
	}
	logger.Get().Info(ctx, "generating updates",
		logger.Int("messages", config.Messages),
		logger.Int("chats", config.Chats))

	g := newGenerator(r, config.Seed)
	expected := make(Expected, config.Chats)
	for c := 0; c < config.Chats; c++ {
		expected[chatID(c)] = g.zero()
	}

	updates := make([]telegram.Update, config.Messages)
	for i := range updates {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		chat := chatID(g.rnd.IntN(config.Chats))
		updates[i] = telegram.Update{
			UpdateID: idBase + int64(i),
			Message: &telegram.Message{
				MessageID: firstMessageID + int64(i),
				Chat:      telegram.Chat{ID: chat},
				From:      &telegram.User{ID: int64(g.rnd.IntN(1000)) + 1, FirstName: "sim"},
				Text:      g.text(expected[chat]),
			},
		}
	}

	stats.UpdatesGenerated = len(updates)
	logger.Get().Info(ctx, "generated updates", logger.Int("count", len(updates)))
	return updates, expected, nil
}

// text returns a message body and adds its deltas to totals.
func (g *generator) text(totals map[string]int) string {
	switch p := g.rnd.Float64(); {
	case p < commandRate:
		return "/score"
	case p < commandRate+noiseRate:
		return noise[g.rnd.IntN(len(noise))]
	}

	lines := 1
	if len(g.players) > 1 && g.rnd.Float64() < multiLineRate {
		lines = 2
	}
	out := make([]string, 0, lines)
	for range lines {
		player := g.players[g.rnd.IntN(len(g.players))]
		forms := g.forms[player]
		n := g.rnd.IntN(maxDelta) + 1
		if g.rnd.IntN(3) == 0 {
			n = -n
		}
		totals[player] += n
		format := lineFormats[g.rnd.IntN(len(lineFormats))]
		out = append(out, format(forms[g.rnd.IntN(len(forms))], n))
	}
	return strings.Join(out, "\n")
}

func (g *generator) zero() map[string]int {
	m := make(map[string]int, len(g.players))
	for _, p := range g.players {
		m[p] = 0
	}
	return m
}

// clearUpdates returns one /clear per chat, numbered from idBase.
func clearUpdates(expected Expected, idBase int64) []telegram.Update {
	chats := lo.Keys(expected)
	slices.Sort(chats)
	return lo.Map(chats, func(chat int64, i int) telegram.Update {
		return telegram.Update{
			UpdateID: idBase + int64(i),
			Message: &telegram.Message{
				MessageID: idBase + int64(i),
				Chat:      telegram.Chat{ID: chat},
				Text:      "/clear",
			},
		}
	})
}

// newIDBase picks a random first update id so a run never reuses ids a
// long-running bot has already recorded.
func newIDBase() int64 {
	id := uuid.New()
	return int64(binary.BigEndian.Uint64(id[:8]) >> 4)
}

// pickDuplicates returns a seeded sample of updates to resend.
func pickDuplicates(updates []telegram.Update, rate float64, seed uint64) []telegram.Update {
	if rate <= 0 || len(updates) == 0 {
		return nil
	}
	rnd := rand.New(rand.NewPCG(seed, seed+1))
	var dups []telegram.Update
	for _, u := range updates {
		if rnd.Float64() < rate {
			dups = append(dups, u)
		}
	}
	return dups
}

func chatID(i int) int64 { return firstChatID - int64(i) }
