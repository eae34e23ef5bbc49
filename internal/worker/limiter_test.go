package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	if l := NewLimiter(10, 5); l.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", l.defaultBurst)
	}
	if l := NewLimiter(10, -1); l.defaultBurst != 1 {
		t.Errorf("expected burst 1 for negative input, got %d", l.defaultBurst)
	}
}

func TestNewPerMinuteLimiter(t *testing.T) {
	if NewPerMinuteLimiter(0) != nil {
		t.Error("expected nil limiter for zero quota")
	}

	// public VT quota
	l := NewPerMinuteLimiter(4)
	if l == nil {
		t.Fatal("expected limiter")
	}
	for i := 0; i < 4; i++ {
		if !l.Allow("https://www.virustotal.com/api/v3/urls") {
			t.Fatalf("request %d should fit in the burst", i+1)
		}
	}
	if l.Allow("https://www.virustotal.com/api/v3/analyses/x") {
		t.Error("fifth request within the minute should be throttled")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://google.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitRespectsDeadline(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "https://api.example.com/x"
	if !limiter.Allow(url) {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected Wait to give up before the deadline")
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("http://example.com") {
		t.Error("first request should pass")
	}
	if limiter.Allow("http://EXAMPLE.com/other") {
		t.Error("expected tokens to be shared case-insensitively per host")
	}
	if !limiter.Allow("http://other.com") {
		t.Error("expected allow for other host")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetHostRate("slow.com", 0.1, 1)

	if !limiter.Allow("http://slow.com") {
		t.Error("first request should pass")
	}
	if limiter.Allow("http://slow.com") {
		t.Error("second request should fail")
	}
	if !limiter.Allow("http://fast.com") {
		t.Error("other host should pass")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://Example.com/foo")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com" {
		t.Errorf("expected example.com, got %s", host)
	}

	if _, err := hostOf("::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
