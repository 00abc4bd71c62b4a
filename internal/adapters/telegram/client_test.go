package telegram_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/scorebot/internal/adapters/telegram"
	"github.com/okian/scorebot/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeAPI records the form fields of each request and answers with a canned
// response.
type fakeAPI struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]string
	status int
	reply  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body := map[string]string{}
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			body[k] = v[0]
		}
	}
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, body)
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.reply))
}

func newClient(t *testing.T, api *fakeAPI) *telegram.Client {
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := telegram.NewClient("123:ABC", telegram.WithBaseURL(srv.URL+"/"), telegram.WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	Convey("Given an empty token", t, func() {
		_, err := telegram.NewClient("  ")

		Convey("Then construction fails", func() {
			So(errors.Is(err, telegram.ErrNoToken), ShouldBeTrue)
		})
	})
}

func TestClient_SendMessage(t *testing.T) {
	Convey("Given a healthy Bot API", t, func() {
		api := &fakeAPI{status: http.StatusOK, reply: `{"ok":true,"result":{"message_id":5}}`}
		c := newClient(t, api)

		Convey("When sending a threaded reply", func() {
			err := c.SendMessage(context.Background(), -100, "🎯 Total Score:\nPaul: 2", 17)

			Convey("Then the request carries the reply fields", func() {
				So(err, ShouldBeNil)
				So(api.paths, ShouldResemble, []string{"/bot123:ABC/sendMessage"})
				body := api.bodies[0]
				So(body["chat_id"], ShouldEqual, "-100")
				So(body["text"], ShouldEqual, "🎯 Total Score:\nPaul: 2")
				So(body["link_preview_options"], ShouldContainSubstring, `"is_disabled":true`)

				var reply struct {
					MessageID                int  `json:"message_id"`
					AllowSendingWithoutReply bool `json:"allow_sending_without_reply"`
				}
				So(json.Unmarshal([]byte(body["reply_parameters"]), &reply), ShouldBeNil)
				So(reply.MessageID, ShouldEqual, 17)
				So(reply.AllowSendingWithoutReply, ShouldBeTrue)
			})
		})

		Convey("When sending a plain message", func() {
			err := c.SendMessage(context.Background(), 9, "hi", 0)

			Convey("Then no reply fields are sent", func() {
				So(err, ShouldBeNil)
				_, threaded := api.bodies[0]["reply_parameters"]
				So(threaded, ShouldBeFalse)
			})
		})
	})

	Convey("Given a Bot API that rejects the call", t, func() {
		api := &fakeAPI{status: http.StatusBadRequest, reply: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`}
		c := newClient(t, api)

		Convey("Then the error wraps ErrAPI with the description", func() {
			err := c.SendMessage(context.Background(), 1, "x", 0)
			So(errors.Is(err, telegram.ErrAPI), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "chat not found")
		})
	})

	Convey("Given a Bot API answering 200 with ok=false", t, func() {
		api := &fakeAPI{status: http.StatusOK, reply: `{"ok":false,"description":"Forbidden"}`}
		c := newClient(t, api)

		Convey("Then the call still fails", func() {
			err := c.SendMessage(context.Background(), 1, "x", 0)
			So(errors.Is(err, telegram.ErrAPI), ShouldBeTrue)
		})
	})

	Convey("Given a Bot API answering garbage", t, func() {
		api := &fakeAPI{status: http.StatusBadGateway, reply: `<html>`}
		c := newClient(t, api)

		Convey("Then the call fails with ErrAPI", func() {
			err := c.SendMessage(context.Background(), 1, "x", 0)
			So(errors.Is(err, telegram.ErrAPI), ShouldBeTrue)
		})
	})

	Convey("Given a rate-limited Bot API", t, func() {
		api := &fakeAPI{status: http.StatusTooManyRequests, reply: `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`}
		c := newClient(t, api)

		Convey("Then the call fails with ErrAPI", func() {
			err := c.SendMessage(context.Background(), 1, "x", 0)
			So(errors.Is(err, telegram.ErrAPI), ShouldBeTrue)
		})
	})

	Convey("Given a canceled context", t, func() {
		api := &fakeAPI{status: http.StatusOK, reply: `{"ok":true,"result":{}}`}
		c := newClient(t, api)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then the call fails as a transport error without the token", func() {
			err := c.SendMessage(ctx, 1, "x", 0)
			So(errors.Is(err, telegram.ErrTransport), ShouldBeTrue)
			So(strings.Contains(err.Error(), "123:ABC"), ShouldBeFalse)
		})
	})

	Convey("Given an unreachable API", t, func() {
		c, err := telegram.NewClient("123:SECRET", telegram.WithBaseURL("http://127.0.0.1:1"))
		So(err, ShouldBeNil)

		Convey("Then the transport error hides the token", func() {
			err := c.SendMessage(context.Background(), 1, "x", 0)
			So(errors.Is(err, telegram.ErrTransport), ShouldBeTrue)
			So(strings.Contains(err.Error(), "SECRET"), ShouldBeFalse)
		})
	})
}

func TestClient_Webhook(t *testing.T) {
	Convey("Given a healthy Bot API", t, func() {
		api := &fakeAPI{status: http.StatusOK, reply: `{"ok":true,"result":true,"description":"Webhook was set"}`}
		c := newClient(t, api)

		Convey("When registering the webhook", func() {
			raw, err := c.SetWebhook(context.Background(), "https://bot.example/webhook/123:ABC")

			Convey("Then only message updates are requested", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"ok":true,"result":true}`)
				So(api.paths[0], ShouldEqual, "/bot123:ABC/setWebhook")
				So(api.bodies[0]["url"], ShouldEqual, "https://bot.example/webhook/123:ABC")
				So(api.bodies[0]["allowed_updates"], ShouldEqual, `["message"]`)
				So(api.bodies[0]["drop_pending_updates"], ShouldNotEqual, "true")
			})
		})

		Convey("When deleting the webhook", func() {
			_, err := c.DeleteWebhook(context.Background())

			Convey("Then pending updates are kept", func() {
				So(err, ShouldBeNil)
				So(api.paths[0], ShouldEqual, "/bot123:ABC/deleteWebhook")
				So(api.bodies[0]["drop_pending_updates"], ShouldNotEqual, "true")
			})
		})
	})
}

// countingTransport counts round trips before delegating.
type countingTransport struct {
	mu    sync.Mutex
	trips int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.trips++
	c.mu.Unlock()
	return http.DefaultTransport.RoundTrip(r)
}

func TestClient_WithHTTPClient(t *testing.T) {
	Convey("Given a client with its own HTTP client", t, func() {
		api := &fakeAPI{status: http.StatusOK, reply: `{"ok":true,"result":{}}`}
		srv := httptest.NewServer(api)
		defer srv.Close()

		rt := &countingTransport{}
		c, err := telegram.NewClient("123:ABC",
			telegram.WithBaseURL(srv.URL),
			telegram.WithHTTPClient(&http.Client{Transport: rt, Timeout: time.Second}),
			telegram.WithLogger(logger.Named("telegram-test")),
		)
		So(err, ShouldBeNil)

		Convey("Then requests go through it", func() {
			So(c.SendMessage(context.Background(), 1, "x", 0), ShouldBeNil)
			So(rt.trips, ShouldEqual, 1)
		})
	})
}
