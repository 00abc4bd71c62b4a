package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorebot/internal/adapters/telegram"
	"github.com/okian/scorebot/pkg/logger"
)

const (
	correlationHeader = "X-Correlation-ID"
	maxBodyBytes      = 1 << 20
)

// HTTPClient wraps http.Client and tags every request with the run id.
type HTTPClient struct {
	client *http.Client
	runID  string
}

func newHTTPClient(timeout time.Duration, runID string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		runID:  runID,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.tag(req)
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.tag(req)
	return c.client.Do(req)
}

func (c *HTTPClient) tag(req *http.Request) {
	req.Header.Set(correlationHeader, c.runID+"-"+uuid.NewString()[:8])
}

// webhookURL returns the webhook endpoint for config.Token.
func webhookURL(config *Config) string {
	return config.BaseURL + "/webhook/" + url.PathEscape(config.Token)
}

// outcomeCounts tallies webhook outcomes across senders.
type outcomeCounts struct {
	scored, ignored, command, duplicate, failed atomic.Int64
}

func (o *outcomeCounts) add(outcome string) {
	switch outcome {
	case outcomeScored:
		o.scored.Add(1)
	case outcomeIgnored:
		o.ignored.Add(1)
	case outcomeCommand:
		o.command.Add(1)
	case outcomeDuplicate:
		o.duplicate.Add(1)
	default:
		o.failed.Add(1)
	}
}

func (o *outcomeCounts) total() int64 {
	return o.scored.Load() + o.ignored.Load() + o.command.Load() + o.duplicate.Load() + o.failed.Load()
}

// submitUpdates posts updates to the webhook with config.Workers concurrent
// senders and returns the outcome tally.
func submitUpdates(ctx context.Context, config *Config, client *HTTPClient, updates []telegram.Update) *outcomeCounts {
	counts := &outcomeCounts{}
	if len(updates) == 0 {
		return counts
	}
	endpoint := webhookURL(config)
	workers := max(1, min(config.Workers, len(updates)))
	ch := make(chan telegram.Update, workers*workerBufferMul)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range ch {
				outcome := submitUpdate(ctx, client, endpoint, u)
				counts.add(outcome)
				if config.Verbose && outcome == outcomeFailed {
					logger.Get().Warn(ctx, "update rejected", logger.Int64("update_id", u.UpdateID))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, u := range updates {
			select {
			case <-ctx.Done():
				return
			case ch <- u:
			}
		}
	}()

	wg.Wait()
	return counts
}

// submitUpdate posts one update and returns the outcome the bot reported.
func submitUpdate(ctx context.Context, client *HTTPClient, endpoint string, u telegram.Update) string {
	resp, err := client.Post(ctx, endpoint, u)
	if err != nil {
		return outcomeFailed
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return outcomeFailed
	}
	var ack Ack
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&ack); err != nil {
		return outcomeFailed
	}
	return ack.Status
}

// fetchScores reads the totals of chat from the service.
func fetchScores(ctx context.Context, config *Config, client *HTTPClient, chat int64) (map[string]int, error) {
	resp, err := client.Get(ctx, config.BaseURL+"/scores/"+strconv.FormatInt(chat, 10))
	if err != nil {
		return nil, fmt.Errorf("fetch scores for chat %d: %w", chat, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch scores for chat %d: status %d", chat, resp.StatusCode)
	}
	var body ChatScores
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode scores for chat %d: %w", chat, err)
	}
	return body.Scores, nil
}
