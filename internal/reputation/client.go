// Package reputation queries a VirusTotal-style URL analysis service: submit
// the URL, poll the analysis until it completes, and turn engine votes into a
// score.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/trishield/internal/model"
)

const (
	// DefaultBaseURL is the public VirusTotal v3 API
	DefaultBaseURL = "https://www.virustotal.com/api/v3"

	DefaultPollInterval = 700 * time.Millisecond
	DefaultTimeout      = 12 * time.Second

	// pollReserve is kept back from the budget so the last poll can finish
	pollReserve = time.Second

	maxResponseBytes = 1 << 20
	epsilon          = 1e-9
)

// Querier looks up the reputation of a URL
type Querier interface {
	Query(ctx context.Context, rawURL, apiKey string, timeout time.Duration) (*model.ReputationResult, error)
}

// Limiter gates outbound requests
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Client talks to the reputation API. Safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	limiter      Limiter
	logger       *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPollInterval sets the fixed delay between status polls
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLimiter throttles every request through l
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   http.DefaultClient,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
		sleep:        sleepCtx,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type analysisResponse struct {
	Data struct {
		Attributes struct {
			Status string        `json:"status"`
			Stats  *model.Counts `json:"stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// Query submits rawURL and polls the analysis until it completes or the
// polling budget (timeout minus a one second reserve) runs out. The whole
// exchange is bound to timeout.
//
// A deadline hit before the submission succeeds is a KindTimeout error. Once
// an analysis exists, running out of time is not an error: the last polled
// counts are scored, or zero counts when nothing was observed, and the result
// is marked incomplete.
func (c *Client) Query(ctx context.Context, rawURL, apiKey string, timeout time.Duration) (*model.ReputationResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.now()

	id, err := c.submit(ctx, rawURL, apiKey)
	if err != nil {
		return nil, err
	}

	var counts model.Counts
	status := ""
	polls := 0
	for c.now().Sub(start) < timeout-pollReserve {
		analysis, err := c.poll(ctx, id, apiKey)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
				break
			}
			return nil, err
		}
		polls++

		attrs := analysis.Data.Attributes
		status = attrs.Status
		if attrs.Stats != nil {
			counts = *attrs.Stats
		}
		if status == "completed" {
			break
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, &Error{Kind: KindCanceled, Reason: "poll", Err: err}
			}
			break
		}
	}

	res := ResultFromCounts(counts)
	res.Complete = status == "completed"
	if !res.Complete {
		c.logger.Debug("reputation analysis incomplete", "url", rawURL, "id", id, "status", status, "polls", polls)
	}
	return res, nil
}

func (c *Client) submit(ctx context.Context, rawURL, apiKey string) (string, error) {
	form := url.Values{"url": {rawURL}}
	endpoint := c.baseURL + "/urls"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: KindTransport, Reason: "create submit request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out submitResponse
	if err := c.do(ctx, req, apiKey, "submit", &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &Error{Kind: KindProtocol, Reason: "submit response has no analysis id"}
	}
	return out.Data.ID, nil
}

func (c *Client) poll(ctx context.Context, id, apiKey string) (*analysisResponse, error) {
	endpoint := c.baseURL + "/analyses/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Reason: "create poll request", Err: err}
	}

	var out analysisResponse
	if err := c.do(ctx, req, apiKey, "poll", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends req and decodes a JSON body into out, mapping failures to *Error
func (c *Client) do(ctx context.Context, req *http.Request, apiKey, step string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL.String()); err != nil {
			return ctxError(ctx, step+": rate limit wait", err)
		}
	}

	req.Header.Set("x-apikey", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctxError(ctx, step, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuth, Reason: fmt.Sprintf("%s rejected: status %d", step, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{Kind: KindTransport, Reason: fmt.Sprintf("%s failed: status %d", step, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ctxError(ctx, step+": read body", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindProtocol, Reason: step + ": decode response", Err: err}
	}
	return nil
}

// ctxError attributes err to the context when it is done
func ctxError(ctx context.Context, reason string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Reason: reason, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindCanceled, Reason: reason, Err: err}
	default:
		return &Error{Kind: KindTransport, Reason: reason, Err: err}
	}
}

// ScoreFromCounts weighs malicious votes fully and suspicious votes at 0.6,
// normalized by the number of reporting engines
func ScoreFromCounts(c model.Counts) float64 {
	total := float64(c.Total()) + epsilon
	return model.Clamp01((float64(c.Malicious)*1.0 + float64(c.Suspicious)*0.6) / total)
}

// ResultFromCounts scores counts and explains every nonzero bucket except
// undetected
func ResultFromCounts(c model.Counts) *model.ReputationResult {
	score := ScoreFromCounts(c)

	reasons := []string{}
	if c.Malicious > 0 {
		reasons = append(reasons, fmt.Sprintf("%d engines flagged malicious", c.Malicious))
	}
	if c.Suspicious > 0 {
		reasons = append(reasons, fmt.Sprintf("%d engines flagged suspicious", c.Suspicious))
	}
	if c.Harmless > 0 {
		reasons = append(reasons, fmt.Sprintf("%d engines harmless", c.Harmless))
	}

	counts := c
	return &model.ReputationResult{
		Score:   &score,
		Counts:  &counts,
		Reasons: reasons,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
