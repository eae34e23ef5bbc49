package reputation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/trishield/internal/cache"
	"github.com/ppiankov/trishield/internal/model"
	"github.com/ppiankov/trishield/internal/worker"
)

// CachedClient is a read-through cache in front of a Querier, keyed by
// hostname. Only completed analyses are stored. Concurrent misses for the
// same host may both reach the service.
type CachedClient struct {
	next   Querier
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient wraps next. A nil cache returns next unchanged.
func NewCachedClient(next Querier, c cache.Cache, ttl time.Duration, logger *slog.Logger) Querier {
	if c == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{next: next, cache: c, ttl: ttl, logger: logger}
}

// Query serves a fresh cached result for the URL's host or delegates
func (c *CachedClient) Query(ctx context.Context, rawURL, apiKey string, timeout time.Duration) (*model.ReputationResult, error) {
	key := cache.HostKey(cacheHost(rawURL))

	if raw, ok := c.cache.Get(key); ok {
		var res model.ReputationResult
		if err := json.Unmarshal(raw, &res); err == nil && cacheable(&res) {
			c.logger.Debug("reputation cache hit", "url", rawURL)
			return &res, nil
		}
		_ = c.cache.Delete(key)
	}

	res, err := c.next.Query(ctx, rawURL, apiKey, timeout)
	if err != nil || !cacheable(res) {
		return res, err
	}

	if raw, err := json.Marshal(res); err == nil {
		if err := c.cache.Set(key, raw, c.ttl); err != nil {
			c.logger.Warn("reputation cache write failed", "error", err)
		}
	}
	return res, nil
}

// cacheable rejects failed lookups and analyses cut short by the deadline
func cacheable(res *model.ReputationResult) bool {
	return res.HasScore() && res.Complete
}

func cacheHost(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return rawURL
}

// NewFromConfig assembles the client, rate limiter and cache described by cfg
func NewFromConfig(cfg *model.Config, logger *slog.Logger) Querier {
	opts := []Option{
		WithHTTPClient(NewHTTPClient(cfg.Reputation)),
		WithPollInterval(cfg.Reputation.PollInterval),
		WithLogger(logger),
	}
	if l := worker.NewPerMinuteLimiter(cfg.Reputation.RequestsPerMinute); l != nil {
		opts = append(opts, WithLimiter(l))
	}

	client := NewClient(cfg.Reputation.BaseURL, opts...)
	return NewCachedClient(client, cache.New(cfg.Cache), cfg.Cache.TTL, logger)
}
