package repository_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/okian/scorebot/internal/adapters/repository"
	"github.com/okian/scorebot/internal/domain/model"
	"github.com/okian/scorebot/internal/domain/parser"
	"github.com/okian/scorebot/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func newStore(opts ...repository.Option) *repository.MemoryStore {
	return repository.NewMemoryStore(roster.Default(), opts...)
}

func TestMemoryStore_GetOrInit(t *testing.T) {
	Convey("Given a fresh store", t, func() {
		ctx := context.Background()
		s := newStore()

		Convey("When a chat is read twice", func() {
			first := s.GetOrInit(ctx, 1)
			second := s.GetOrInit(ctx, 1)

			Convey("Then both reads are identical all-zero records", func() {
				So(first, ShouldResemble, repository.Record{"Paul": 0, "Roman": 0})
				So(second, ShouldResemble, first)
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the returned record is mutated", func() {
			rec := s.GetOrInit(ctx, 1)
			rec["Paul"] = 100
			delete(rec, "Roman")

			Convey("Then stored state is untouched", func() {
				So(s.GetOrInit(ctx, 1), ShouldResemble, repository.Record{"Paul": 0, "Roman": 0})
			})
		})
	})
}

func TestMemoryStore_Apply(t *testing.T) {
	Convey("Given a fresh chat", t, func() {
		ctx := context.Background()
		s := newStore()

		Convey("When deltas are applied in sequence", func() {
			rec := s.Apply(ctx, 7, []model.Delta{
				{Player: "Paul", Amount: 2},
				{Player: "Roman", Amount: -1},
				{Player: "Paul", Amount: 3},
			})

			Convey("Then totals accumulate", func() {
				So(rec, ShouldResemble, repository.Record{"Paul": 5, "Roman": -1})
				So(s.GetOrInit(ctx, 7), ShouldResemble, rec)
			})
		})

		Convey("When a delta names an unknown player", func() {
			rec := s.Apply(ctx, 7, []model.Delta{{Player: "Mallory", Amount: 9}, {Player: "Roman", Amount: 1}})

			Convey("Then it is ignored and the record stays complete", func() {
				So(rec, ShouldResemble, repository.Record{"Paul": 0, "Roman": 1})
			})
		})

		Convey("When no deltas are given", func() {
			rec := s.Apply(ctx, 7, nil)

			Convey("Then the chat is still initialized", func() {
				So(rec, ShouldResemble, repository.Record{"Paul": 0, "Roman": 0})
			})
		})

		Convey("When totals would overflow", func() {
			s.Apply(ctx, 7, []model.Delta{{Player: "Paul", Amount: math.MaxInt}})
			rec := s.Apply(ctx, 7, []model.Delta{{Player: "Paul", Amount: 5}, {Player: "Roman", Amount: math.MinInt}, {Player: "Roman", Amount: -1}})

			Convey("Then they saturate", func() {
				So(rec["Paul"], ShouldEqual, math.MaxInt)
				So(rec["Roman"], ShouldEqual, math.MinInt)
			})
		})

		Convey("When different chats are updated", func() {
			s.Apply(ctx, 1, []model.Delta{{Player: "Paul", Amount: 1}})
			s.Apply(ctx, -100500, []model.Delta{{Player: "Paul", Amount: 4}})

			Convey("Then their records are independent", func() {
				So(s.GetOrInit(ctx, 1)["Paul"], ShouldEqual, 1)
				So(s.GetOrInit(ctx, -100500)["Paul"], ShouldEqual, 4)
				So(s.Count(ctx), ShouldEqual, 2)
			})
		})
	})
}

func TestMemoryStore_ResetAndFormat(t *testing.T) {
	Convey("Given a chat with scores", t, func() {
		ctx := context.Background()
		s := newStore()
		p := parser.New(roster.Default())
		s.Apply(ctx, 3, p.Parse("Pavlo: +2\nRoma -1"))

		Convey("Then format renders totals in roster order", func() {
			So(s.Format(ctx, 3), ShouldEqual, "🎯 Total Score:\nPaul: 2\nRoman: -1")
		})

		Convey("When the chat is reset", func() {
			rec := s.Reset(ctx, 3)

			Convey("Then format renders all zeros", func() {
				So(rec, ShouldResemble, repository.Record{"Paul": 0, "Roman": 0})
				So(s.Format(ctx, 3), ShouldEqual, "🎯 Total Score:\nPaul: 0\nRoman: 0")
			})
		})

		Convey("When a chat that was never seen is reset", func() {
			s.Reset(ctx, 99)

			Convey("Then it renders all zeros too", func() {
				So(s.Format(ctx, 99), ShouldEqual, "🎯 Total Score:\nPaul: 0\nRoman: 0")
			})
		})
	})

	Convey("Given a custom header and single shard", t, func() {
		s := newStore(repository.WithHeader("Score"), repository.WithShardCount(1))

		Convey("Then format uses the header", func() {
			So(s.Format(context.Background(), 1), ShouldEqual, "Score\nPaul: 0\nRoman: 0")
		})

		Convey("Then render uses it for a given record", func() {
			So(s.Render(repository.Record{"Paul": 3, "Roman": -2}), ShouldEqual, "Score\nPaul: 3\nRoman: -2")
		})
	})
}

// Concurrent updates to one chat are serialized by the per-chat lock, so no
// increment is lost.
func TestMemoryStore_ConcurrentApply(t *testing.T) {
	Convey("Given many goroutines updating the same chat", t, func() {
		ctx := context.Background()
		s := newStore(repository.WithShardCount(2))
		const goroutines, perGoroutine = 32, 200

		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					s.Apply(ctx, 42, []model.Delta{{Player: "Paul", Amount: 1}, {Player: "Roman", Amount: -1}})
					s.Apply(ctx, int64(g), []model.Delta{{Player: "Paul", Amount: 1}})
				}
			}(g)
		}
		wg.Wait()

		Convey("Then every delta is counted", func() {
			rec := s.GetOrInit(ctx, 42)
			So(rec["Paul"], ShouldEqual, goroutines*perGoroutine)
			So(rec["Roman"], ShouldEqual, -goroutines*perGoroutine)
			So(s.Count(ctx), ShouldEqual, goroutines+1)
		})
	})
}

func TestRender(t *testing.T) {
	Convey("Given a record missing a player", t, func() {
		out := repository.Render("H", []string{"A", "B"}, repository.Record{"A": 3})

		Convey("Then the missing player renders as zero", func() {
			So(out, ShouldEqual, "H\nA: 3\nB: 0")
		})
	})
}
