// Package cache provides TTL caches for reputation lookups.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/trishield/internal/model"
)

// Cache stores opaque values with a per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// HostKey builds the cache key for a hostname's reputation
func HostKey(hostname string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(hostname)))
	return "trishield:rep:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg. Returns nil when caching is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if cfg.Dir != "" {
		return NewLayeredCache(ttl, cfg.Dir, ttl)
	}
	return NewMemoryCache(ttl, ttl)
}
