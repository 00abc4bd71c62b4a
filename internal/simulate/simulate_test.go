package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/scorebot/internal/adapters/http/api"
	"github.com/okian/scorebot/internal/adapters/telegram"
	service "github.com/okian/scorebot/internal/app"
	"github.com/okian/scorebot/internal/domain/parser"
	"github.com/okian/scorebot/internal/domain/roster"
	"github.com/okian/scorebot/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const testToken = "77:SIM"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type discardSender struct{}

func (discardSender) SendMessage(context.Context, int64, string, int64) error { return nil }

// startBot runs the real webhook stack behind an httptest server.
func startBot(t *testing.T, opts ...service.Option) string {
	svc := service.New(roster.Default(), discardSender{}, opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(api.Config{AppName: "sim", BotToken: testToken}, svc, nil).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv.URL
}

func testConfig(base string) *Config {
	return &Config{
		BaseURL:       base,
		Token:         testToken,
		Chats:         5,
		Messages:      300,
		DuplicateRate: 0.2,
		Workers:       8,
		Timeout:       5 * time.Second,
		Seed:          7,
	}
}

func TestGenerateUpdates(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		ctx := context.Background()
		cfg := testConfig("")
		r := roster.Default()

		a, wantA, err := generateUpdates(ctx, cfg, r, 500_000, &Stats{})
		So(err, ShouldBeNil)
		b, wantB, _ := generateUpdates(ctx, cfg, r, 500_000, &Stats{})

		Convey("Then the same seed yields the same run", func() {
			So(a, ShouldResemble, b)
			So(wantA, ShouldResemble, wantB)
		})

		Convey("Then update ids are unique and every chat is expected", func() {
			ids := make(map[int64]bool, len(a))
			for _, u := range a {
				So(ids[u.UpdateID], ShouldBeFalse)
				ids[u.UpdateID] = true
				_, ok := wantA[u.Message.Chat.ID]
				So(ok, ShouldBeTrue)
			}
			So(len(wantA), ShouldEqual, cfg.Chats)
		})

		Convey("Then the parser agrees with the expected totals", func() {
			p := parser.New(r)
			got := make(Expected)
			for _, u := range a {
				if got[u.Message.Chat.ID] == nil {
					got[u.Message.Chat.ID] = map[string]int{"Paul": 0, "Roman": 0}
				}
				for _, d := range p.Parse(u.Message.Text) {
					got[u.Message.Chat.ID][d.Player] += d.Amount
				}
			}
			So(got, ShouldResemble, wantA)
		})
	})

	Convey("Given no chats", t, func() {
		cfg := testConfig("")
		cfg.Chats = 0
		_, _, err := generateUpdates(context.Background(), cfg, roster.Default(), 1, &Stats{})
		So(err, ShouldNotBeNil)
	})
}

func TestClearUpdates(t *testing.T) {
	Convey("Given expected totals for two chats", t, func() {
		clears := clearUpdates(Expected{-2: nil, -1: nil}, 40)

		Convey("Then each chat gets one /clear with a fresh id", func() {
			So(len(clears), ShouldEqual, 2)
			So(clears[0].UpdateID, ShouldEqual, int64(40))
			So(clears[0].Message.Chat.ID, ShouldEqual, int64(-2))
			So(clears[1].UpdateID, ShouldEqual, int64(41))
			So(clears[1].Message.Text, ShouldEqual, "/clear")
		})
	})

	Convey("Given two id bases", t, func() {
		Convey("Then they differ and stay positive", func() {
			a, b := newIDBase(), newIDBase()
			So(a, ShouldNotEqual, b)
			So(a, ShouldBeGreaterThan, int64(0))
		})
	})
}

func TestDiffScores(t *testing.T) {
	Convey("Given differing totals", t, func() {
		diff := diffScores(map[string]int{"Paul": 2, "Roman": 1}, map[string]int{"Paul": 2, "Roman": 3, "Eve": 1})

		Convey("Then only the differing players are listed in name order", func() {
			So(diff, ShouldResemble, []string{"Eve want 0 got 1", "Roman want 1 got 3"})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running bot", t, func() {
		base := startBot(t, service.WithWorkerCount(2))
		cfg := testConfig(base)
		cfg.OutputFile = filepath.Join(t.TempDir(), "out", "updates.json")

		Convey("When a simulation runs", func() {
			stats, err := Run(context.Background(), cfg, roster.Default())

			Convey("Then every total matches and redeliveries are recognised", func() {
				So(err, ShouldBeNil)
				So(stats.UpdatesGenerated, ShouldEqual, cfg.Messages)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Scored+stats.Ignored+stats.Commands, ShouldEqual, cfg.Messages)
				So(stats.Duplicates, ShouldBeGreaterThan, 0)
				So(stats.ChatsVerified, ShouldEqual, cfg.Chats)
				So(stats.Mismatches, ShouldEqual, 0)
				So(stats.Resets, ShouldEqual, cfg.Chats)
			})

			Convey("Then the updates are written to the output file", func() {
				raw, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var saved []telegram.Update
				So(json.Unmarshal(raw, &saved), ShouldBeNil)
				So(len(saved), ShouldEqual, cfg.Messages)
			})
		})

		Convey("When simulations run one after another", func() {
			var runs []*Stats
			for _, seed := range []uint64{7, 8, 7} {
				cfg.Seed = seed
				stats, err := Run(context.Background(), cfg, roster.Default())
				So(err, ShouldBeNil)
				runs = append(runs, stats)
			}

			Convey("Then each run scores its own updates from zero", func() {
				for _, stats := range runs {
					So(stats.Scored, ShouldBeGreaterThan, 0)
					So(stats.Resets, ShouldEqual, cfg.Chats)
					So(stats.Mismatches, ShouldEqual, 0)
				}
				So(runs[2].Scored, ShouldEqual, runs[0].Scored)
			})
		})

		Convey("When the token is wrong", func() {
			cfg.Token = "wrong"
			_, err := Run(context.Background(), cfg, roster.Default())

			Convey("Then the rejected updates fail the run", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "rejected")
			})
		})
	})

	Convey("Given a bot that forgets update ids", t, func() {
		base := startBot(t, service.WithDedupeSize(1))
		cfg := testConfig(base)

		Convey("Then redeliveries are applied twice and the run fails", func() {
			_, err := Run(context.Background(), cfg, roster.Default())
			So(errors.Is(err, ErrMismatch), ShouldBeTrue)
		})
	})

	Convey("Given nothing listening", t, func() {
		cfg := testConfig("http://127.0.0.1:1")

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), cfg, roster.Default())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
