package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Settings are the user-facing knobs consumed by the fusion engine
type Settings struct {
	Enabled       bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BlockRisky    bool     `json:"blockRisky" yaml:"block_risky" mapstructure:"block_risky"`
	VTAPIKey      string   `json:"-" yaml:"vt_api_key" mapstructure:"vt_api_key"`
	VTTimeoutMs   int      `json:"vtTimeoutMs" yaml:"vt_timeout_ms" mapstructure:"vt_timeout_ms"`
	VTWeight      float64  `json:"vtWeight" yaml:"vt_weight" mapstructure:"vt_weight"`
	HeurWeight    float64  `json:"heurWeight" yaml:"heur_weight" mapstructure:"heur_weight"`
	RiskThreshold float64  `json:"riskThreshold" yaml:"risk_threshold" mapstructure:"risk_threshold"`
	ToastOnSafe   bool     `json:"toastOnSafe" yaml:"toast_on_safe" mapstructure:"toast_on_safe"`
	Allowlist     []string `json:"allowlist" yaml:"allowlist" mapstructure:"allowlist"`
}

// DefaultSettings returns the out-of-the-box settings
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		BlockRisky:    true,
		VTTimeoutMs:   12000,
		VTWeight:      0.7,
		HeurWeight:    0.3,
		RiskThreshold: 0.6,
		ToastOnSafe:   true,
		Allowlist:     []string{},
	}
}

// VTTimeout returns the reputation deadline budget
func (s Settings) VTTimeout() time.Duration {
	return time.Duration(s.VTTimeoutMs) * time.Millisecond
}

// HasAPIKey reports whether the reputation step is configured
func (s Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.VTAPIKey) != ""
}

// Validate checks ranges that would break the verdict invariant
func (s Settings) Validate() error {
	if s.RiskThreshold < 0 || s.RiskThreshold > 1 {
		return fmt.Errorf("risk_threshold must be within [0,1], got %v", s.RiskThreshold)
	}
	if s.VTWeight < 0 || s.HeurWeight < 0 {
		return fmt.Errorf("weights must be non-negative (vt_weight=%v, heur_weight=%v)", s.VTWeight, s.HeurWeight)
	}
	if s.VTTimeoutMs <= 0 {
		return fmt.Errorf("vt_timeout_ms must be positive, got %d", s.VTTimeoutMs)
	}
	return nil
}

// Normalize returns a copy with a clean allowlist: trimmed, lowercased,
// punycoded, empties and duplicates removed, first occurrence order kept.
func (s Settings) Normalize() Settings {
	out := s
	seen := make(map[string]bool, len(s.Allowlist))
	out.Allowlist = make([]string, 0, len(s.Allowlist))
	for _, d := range s.Allowlist {
		d = NormalizeDomain(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out.Allowlist = append(out.Allowlist, d)
	}
	return out
}

// NormalizeDomain trims and lowercases d and converts it to the ASCII form
// hostnames are compared in. Entries idna rejects are kept lowercased.
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(d); err == nil && ascii != "" {
		return ascii
	}
	return d
}

// ShouldBlock reports whether navigation to the verdict's URL should be blocked
func ShouldBlock(v Verdict, s Settings) bool {
	return v.IsRisk() && s.BlockRisky
}

// ShouldAnnounce reports whether a presentation layer should surface the verdict
func ShouldAnnounce(v Verdict, s Settings) bool {
	return v.IsRisk() || s.ToastOnSafe
}

// Config is the complete application configuration
type Config struct {
	Settings    Settings          `yaml:"settings" mapstructure:"settings"`
	Reputation  ReputationConfig  `yaml:"reputation" mapstructure:"reputation"`
	Lists       ListsConfig       `yaml:"lists" mapstructure:"lists"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	History     HistoryConfig     `yaml:"history" mapstructure:"history"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
}

// ReputationConfig configures the reputation service client
type ReputationConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	RequestsPerMinute float64       `yaml:"requests_per_minute" mapstructure:"requests_per_minute"` // 0 disables limiting
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// ListsConfig overrides the built-in blacklist and brand list
type ListsConfig struct {
	Blacklist []string `yaml:"blacklist,omitempty" mapstructure:"blacklist"`
	Brands    []string `yaml:"brands,omitempty" mapstructure:"brands"`
}

// CacheConfig configures the reputation cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir     string        `yaml:"dir,omitempty" mapstructure:"dir"` // empty keeps the cache in memory only
}

// HistoryConfig configures the verdict history log
type HistoryConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// ConcurrencyConfig configures bulk scanning
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LLMConfig configures the optional verdict explainer
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "openai", "ollama" or "" (disabled)
	Model    string `yaml:"model" mapstructure:"model"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Settings: DefaultSettings(),
		Reputation: ReputationConfig{
			BaseURL:      "https://www.virustotal.com/api/v3",
			PollInterval: 700 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
		History: HistoryConfig{
			Path:       "history.json",
			MaxEntries: 250,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 8,
		},
		LLM: LLMConfig{
			Timeout: 30,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8787",
		},
	}
}
