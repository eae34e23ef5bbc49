package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/trishield/internal/model"
)

func TestHostKey(t *testing.T) {
	if HostKey("Example.COM") != HostKey("example.com") {
		t.Error("expected case-insensitive keys")
	}
	if HostKey("a.example") == HostKey("b.example") {
		t.Error("expected distinct keys for distinct hosts")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	_ = c.Set("k", []byte("v"), 0)
	if v, ok := c.Get("k"); !ok || string(v) != "v" {
		t.Errorf("expected hit, got %q %v", v, ok)
	}

	_ = c.Set("short", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected expired entry to miss")
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rep")
	c := NewDiskCache(dir, time.Minute)

	key := HostKey("bad.example")
	if err := c.Set(key, []byte(`{"score":0.5}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok := c.Get(key); !ok || string(v) != `{"score":0.5}` {
		t.Errorf("expected hit, got %q %v", v, ok)
	}

	// a fresh instance sees the same entry
	if _, ok := NewDiskCache(dir, time.Minute).Get(key); !ok {
		t.Error("expected entry to persist on disk")
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expected expired file to be removed")
	}

	if err := c.Delete("missing"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestDiskCache_CorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)
	if err := os.WriteFile(c.path("k"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected corrupt entry to miss")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Minute)
	_ = disk.Set("k", []byte("v"), 0)

	l := NewLayeredCache(time.Minute, dir, time.Minute)
	if v, ok := l.Get("k"); !ok || string(v) != "v" {
		t.Fatalf("expected disk hit, got %q %v", v, ok)
	}
	if _, ok := l.memory.Get("k"); !ok {
		t.Error("expected disk hit to be promoted into memory")
	}

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := l.Get("k"); ok {
		t.Error("expected miss after clear")
	}
}

func TestNew(t *testing.T) {
	if New(model.CacheConfig{Enabled: false}) != nil {
		t.Error("expected nil cache when disabled")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, TTL: time.Minute}).(*MemoryCache); !ok {
		t.Error("expected memory cache without a dir")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}).(*LayeredCache); !ok {
		t.Error("expected layered cache with a dir")
	}
}
