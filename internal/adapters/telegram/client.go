// Package telegram wraps the Bot API calls the scorebot makes: sending
// messages and managing its webhook.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/scorebot/pkg/logger"
	"github.com/okian/scorebot/pkg/metrics"
	"github.com/okian/scorebot/pkg/tracing"
)

// Default client configuration constants.
const (
	DefaultBaseURL    = "https://api.telegram.org"
	defaultTimeout    = 15 * time.Second
	methodSendMessage = "sendMessage"
	methodSetWebhook  = "setWebhook"
	methodDelWebhook  = "deleteWebhook"
)

// Client calls Bot API methods for one bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	api        *bot.Bot
	logger     logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for token. It makes no network calls.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("telegram")
	}

	api, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(c.baseURL),
		bot.WithHTTPClient(c.httpClient.Timeout, c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", redact(err, token))
	}
	c.api = api
	return c, nil
}

// SendMessage posts text to chatID. A positive replyTo threads the message
// under that message id and still sends if the original is gone.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error {
	noPreview := true
	params := &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &noPreview},
	}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{
			MessageID:                int(replyTo),
			AllowSendingWithoutReply: true,
		}
	}
	return c.call(ctx, methodSendMessage, func(ctx context.Context) error {
		_, err := c.api.SendMessage(ctx, params)
		return err
	})
}

// SetWebhook registers url as the webhook for message updates and returns
// the API response.
func (c *Client) SetWebhook(ctx context.Context, url string) (json.RawMessage, error) {
	var ok bool
	err := c.call(ctx, methodSetWebhook, func(ctx context.Context) (err error) {
		ok, err = c.api.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:                url,
			AllowedUpdates:     []string{"message"},
			DropPendingUpdates: false,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return envelope(ok)
}

// DeleteWebhook removes the webhook and returns the API response. Pending
// updates are kept.
func (c *Client) DeleteWebhook(ctx context.Context) (json.RawMessage, error) {
	var ok bool
	err := c.call(ctx, methodDelWebhook, func(ctx context.Context) (err error) {
		ok, err = c.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: false})
		return err
	})
	if err != nil {
		return nil, err
	}
	return envelope(ok)
}

// call runs one Bot API method inside a span and records its outcome. Errors
// are classified as ErrTransport or ErrAPI and never carry the token.
func (c *Client) call(ctx context.Context, method string, fn func(context.Context) error) (err error) {
	ctx, span := tracing.StartSpan(ctx, "telegram."+method, attribute.String("telegram.method", method))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordTelegramCall(method, outcome)
		tracing.End(span, err)
	}()

	if err := fn(ctx); err != nil {
		kind := ErrAPI
		var uerr *url.Error
		if errors.As(err, &uerr) {
			kind = ErrTransport
		}
		c.logger.Debug(ctx, "bot api call failed", logger.String("method", method), logger.Error(redact(err, c.token)))
		return fmt.Errorf("telegram.%s: %w: %w", method, kind, redact(err, c.token))
	}
	return nil
}

// envelope renders a boolean method result the way the Bot API reports it.
func envelope(result bool) (json.RawMessage, error) {
	raw, err := json.Marshal(apiResponse{OK: true, Result: result})
	if err != nil {
		return nil, fmt.Errorf("telegram: encode response: %w", err)
	}
	return raw, nil
}

// redact strips the bot token from errors, which may embed the request URL.
func redact(err error, token string) error {
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<token>"))
}
