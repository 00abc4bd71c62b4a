package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/scorebot/internal/adapters/mq/queue"
	worker "github.com/okian/scorebot/internal/adapters/mq/worker"
	model "github.com/okian/scorebot/internal/domain/model"
	logging "github.com/okian/scorebot/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

var errSend = errors.New("send failed")

// mockSender records deliveries and fails the first failures calls per chat.
type mockSender struct {
	mu       sync.Mutex
	sent     []model.Reply
	calls    map[int64]int
	failures map[int64]int
}

func newMockSender() *mockSender {
	return &mockSender{calls: make(map[int64]int), failures: make(map[int64]int)}
}

func (m *mockSender) SendMessage(_ context.Context, chatID int64, text string, replyTo int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[chatID]++
	if m.calls[chatID] <= m.failures[chatID] {
		return errSend
	}
	m.sent = append(m.sent, model.Reply{ChatID: chatID, Text: text, ReplyTo: replyTo})
	return nil
}

func (m *mockSender) failFirst(chatID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[chatID] = n
}

func (m *mockSender) snapshot() ([]model.Reply, map[int64]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make(map[int64]int, len(m.calls))
	for k, v := range m.calls {
		calls[k] = v
	}
	return append([]model.Reply(nil), m.sent...), calls
}

// runOne feeds replies through a single worker and waits for it to finish.
func runOne(sender *mockSender, replies []model.Reply, opts ...worker.Option) {
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(replies) + 1))
	for _, r := range replies {
		_ = q.Enqueue(context.Background(), r)
	}
	_ = q.Close()

	w := worker.NewInMemoryWorker(q, sender, opts...)
	w.Run(context.Background())
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker and a healthy sender", t, func() {
		_ = logging.Init()
		sender := newMockSender()

		convey.Convey("When replies are queued", func() {
			runOne(sender, []model.Reply{
				{ChatID: 1, Text: "🎯 Total Score:\nPaul: 2\nRoman: -1"},
				{ChatID: 2, Text: "help", ReplyTo: 10},
			})

			convey.Convey("Then each is delivered once with its reply target", func() {
				sent, calls := sender.snapshot()
				convey.So(sent, convey.ShouldHaveLength, 2)
				convey.So(sent[0].Text, convey.ShouldEqual, "🎯 Total Score:\nPaul: 2\nRoman: -1")
				convey.So(sent[1].ReplyTo, convey.ShouldEqual, int64(10))
				convey.So(calls[1], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the sender fails transiently", func() {
			sender.failFirst(1, 2)
			runOne(sender, []model.Reply{{ChatID: 1, Text: "x"}}, worker.WithAttempts(3), worker.WithBackoff(time.Millisecond))

			convey.Convey("Then the reply is retried until it goes through", func() {
				sent, calls := sender.snapshot()
				convey.So(sent, convey.ShouldHaveLength, 1)
				convey.So(calls[1], convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the sender keeps failing", func() {
			sender.failFirst(1, 100)
			runOne(sender, []model.Reply{{ChatID: 1, Text: "lost"}, {ChatID: 2, Text: "kept"}},
				worker.WithAttempts(2), worker.WithBackoff(time.Millisecond))

			convey.Convey("Then the reply is dropped after the last attempt and the worker moves on", func() {
				sent, calls := sender.snapshot()
				convey.So(calls[1], convey.ShouldEqual, 2)
				convey.So(sent, convey.ShouldHaveLength, 1)
				convey.So(sent[0].Text, convey.ShouldEqual, "kept")
			})
		})
	})

	convey.Convey("Given a worker whose context is canceled during backoff", t, func() {
		sender := newMockSender()
		sender.failFirst(1, 100)
		q := queue.NewInMemoryQueue()
		_ = q.Enqueue(context.Background(), model.Reply{ChatID: 1})

		w := worker.NewInMemoryWorker(q, sender, worker.WithAttempts(5), worker.WithBackoff(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)

		convey.Convey("Then it stops without finishing the attempts", func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
			select {
			case <-w.Done():
			case <-time.After(time.Second):
				t.Fatal("worker did not stop")
			}
			_, calls := sender.snapshot()
			convey.So(calls[1], convey.ShouldEqual, 1)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a started pool", t, func() {
		_ = logging.Init()
		sender := newMockSender()
		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		pool := worker.NewPool(4, q, sender, worker.WithBackoff(time.Millisecond))
		pool.Start(context.Background())

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When replies are enqueued and the pool shuts down", func() {
			for i := 0; i < 100; i++ {
				convey.So(q.Enqueue(context.Background(), model.Reply{ChatID: int64(i)}), convey.ShouldBeNil)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued reply is delivered before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				sent, _ := sender.snapshot()
				convey.So(sent, convey.ShouldHaveLength, 100)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})

			convey.Convey("Then a second shutdown is a no-op", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a pool with a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockSender())

		convey.Convey("Then a CPU-based default is used and shutdown without start succeeds", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}
