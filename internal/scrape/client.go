package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/vhrabko/autoria-scraper/internal/telemetry"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// errBodyHead bounds how much of an error response body gets logged.
const errBodyHead = 200

// ClientConfig controls outbound request behavior.
type ClientConfig struct {
	MaxConcurrent int
	Delay         time.Duration
	Timeout       time.Duration
	UserAgent     string
}

// Client performs all outbound HTTP for the pipeline. Every call passes
// through a shared concurrency gate, and the pacing delay is served
// while the slot is held, so the gate throttles both total concurrency
// and issue rate.
type Client struct {
	http    *http.Client
	gate    *semaphore.Weighted
	pace    *rate.Limiter
	headers http.Header
	logger  *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	pace := rate.NewLimiter(rate.Inf, 1)
	if cfg.Delay > 0 {
		pace = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	headers := http.Header{}
	headers.Set("User-Agent", ua)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	headers.Set("Accept-Language", "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7")

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		gate:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		pace:    pace,
		headers: headers,
		logger:  logger,
	}
}

// Get fetches a page and returns its body as HTML.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches a URL and decodes its JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json from %s: %w", url, err)
	}
	return nil
}

// PostJSON sends payload as a JSON body and returns the raw response
// body. Extra headers override the client defaults for this request.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, extra http.Header) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, body, extra)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, extra http.Header) ([]byte, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire request slot: %w", err)
	}
	defer c.gate.Release(1)

	// Pacing happens under the held slot.
	if err := c.pace.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}
	for key, values := range extra {
		req.Header[key] = values
	}

	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.CountFetch(method, "error")
		c.logger.Error("request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.CountFetch(method, "error")
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	telemetry.CountFetch(method, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		head := respBody
		if len(head) > errBodyHead {
			head = head[:errBodyHead]
		}
		c.logger.Warn("unexpected status",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body_head", head),
		)
		return nil, fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}

	return respBody, nil
}
