package reputation

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/trishield/internal/cache"
	"github.com/ppiankov/trishield/internal/model"
)

type stubQuerier struct {
	calls int32
	res   *model.ReputationResult
	err   error
}

func (s *stubQuerier) Query(ctx context.Context, rawURL, apiKey string, timeout time.Duration) (*model.ReputationResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.res, s.err
}

func completed(c model.Counts) *model.ReputationResult {
	res := ResultFromCounts(c)
	res.Complete = true
	return res
}

func TestCachedClient_HitByHostname(t *testing.T) {
	next := &stubQuerier{res: completed(model.Counts{Malicious: 2, Harmless: 2})}
	q := NewCachedClient(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	first, err := q.Query(context.Background(), "https://bad.example/a", "k", time.Second)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := q.Query(context.Background(), "https://BAD.example/other?path=1", "k", time.Second)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}

	if next.calls != 1 {
		t.Errorf("expected one upstream call for the same host, got %d", next.calls)
	}
	if *second.Score != *first.Score || *second.Counts != *first.Counts {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}

	if _, err := q.Query(context.Background(), "https://other.example/", "k", time.Second); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("expected a miss for a different host, got %d calls", next.calls)
	}
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	next := &stubQuerier{err: &Error{Kind: KindTransport, Reason: "down"}}
	q := NewCachedClient(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := q.Query(context.Background(), "https://x.example", "k", time.Second); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("expected failures to bypass the cache, got %d calls", next.calls)
	}
}

func TestCachedClient_IncompleteNotCached(t *testing.T) {
	next := &stubQuerier{res: ResultFromCounts(model.Counts{})}
	q := NewCachedClient(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	for i := 0; i < 2; i++ {
		res, err := q.Query(context.Background(), "https://x.example", "k", time.Second)
		if err != nil || !res.HasScore() {
			t.Fatalf("expected a scored result, got %+v, %v", res, err)
		}
	}
	if next.calls != 2 {
		t.Errorf("expected incomplete analyses to bypass the cache, got %d calls", next.calls)
	}
}

func TestCachedClient_QueuedAnalysisRefetched(t *testing.T) {
	vt := &fakeVT{}
	client, _ := newTestClient(t, vt)
	q := NewCachedClient(client, cache.NewMemoryCache(time.Minute, time.Minute), 15*time.Minute, nil)

	first, err := q.Query(context.Background(), "https://new-phish.example/", "k", 3*time.Second)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	if first.Complete || *first.Score != 0 {
		t.Fatalf("expected an incomplete zero result while queued, got %+v", first)
	}

	vt.completeAt = 1
	vt.stats = `{"malicious":40,"harmless":0}`

	second, err := q.Query(context.Background(), "https://new-phish.example/other", "k", 3*time.Second)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if !second.Complete || *second.Score < 0.99 || second.Counts.Malicious != 40 {
		t.Errorf("expected the completed analysis from upstream, got %+v", second)
	}
	if len(vt.submitted) != 2 {
		t.Errorf("expected the second query to reach the service, got %d submissions", len(vt.submitted))
	}

	third, err := q.Query(context.Background(), "https://new-phish.example/", "k", 3*time.Second)
	if err != nil || !third.Complete || len(vt.submitted) != 2 {
		t.Errorf("expected the completed analysis to be served from cache, got %+v, %v (%d submissions)", third, err, len(vt.submitted))
	}
}

func TestCachedClient_Expiry(t *testing.T) {
	next := &stubQuerier{res: completed(model.Counts{Harmless: 1})}
	q := NewCachedClient(next, cache.NewMemoryCache(time.Minute, time.Minute), 20*time.Millisecond, nil)

	_, _ = q.Query(context.Background(), "https://x.example", "k", time.Second)
	time.Sleep(40 * time.Millisecond)
	_, _ = q.Query(context.Background(), "https://x.example", "k", time.Second)

	if next.calls != 2 {
		t.Errorf("expected expired entry to be refetched, got %d calls", next.calls)
	}
}

func TestNewCachedClient_NilCache(t *testing.T) {
	next := &stubQuerier{}
	if q := NewCachedClient(next, nil, time.Minute, nil); q != Querier(next) {
		t.Error("expected nil cache to return the wrapped querier")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	if _, ok := NewFromConfig(cfg, nil).(*CachedClient); !ok {
		t.Error("expected cached client with default config")
	}

	cfg.Cache.Enabled = false
	cfg.Reputation.RequestsPerMinute = 4
	q := NewFromConfig(cfg, nil)
	c, ok := q.(*Client)
	if !ok {
		t.Fatalf("expected bare client without cache, got %T", q)
	}
	if c.limiter == nil {
		t.Error("expected limiter when a quota is configured")
	}
	if c.pollInterval != 700*time.Millisecond {
		t.Errorf("unexpected poll interval %v", c.pollInterval)
	}
}

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy:8080", "")
	req := httptest.NewRequest("POST", "https://www.virustotal.com/api/v3/urls", nil)
	u, err := fn(req)
	if err != nil || u == nil || u.Host != "proxy:8080" {
		t.Errorf("expected http proxy fallback for https, got %v, %v", u, err)
	}

	fn = NewProxyFunc("", "http://secure-proxy:3128")
	u, err = fn(req)
	if err != nil || u == nil || u.Host != "secure-proxy:3128" {
		t.Errorf("expected https proxy, got %v, %v", u, err)
	}
}
