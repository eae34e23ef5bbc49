package model

import "time"

// Label is the binary safe/risk decision for a URL
type Label string

const (
	LabelSafe Label = "safe"
	LabelRisk Label = "risk"
)

// Source records which signals produced a verdict
type Source string

const (
	SourceAllowlist    Source = "allowlist"
	SourceBlacklist    Source = "blacklist"
	SourceHeuristics   Source = "heuristics"
	SourceVTHeuristics Source = "vt+heuristics"
)

// Tier is a coarse severity bucket derived from the final score
type Tier string

const (
	TierSafe       Tier = "safe"
	TierSuspicious Tier = "suspicious"
	TierDanger     Tier = "danger"
)

// Tier cut-offs on the [0,1] score scale
const (
	SuspiciousFloor = 0.4
	DangerFloor     = 0.8
)

// TierForScore buckets a score into a tier
func TierForScore(score float64) Tier {
	switch {
	case score >= DangerFloor:
		return TierDanger
	case score >= SuspiciousFloor:
		return TierSuspicious
	default:
		return TierSafe
	}
}

// Counts holds engine votes reported by the reputation service
type Counts struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

// Total returns the number of engines that reported
func (c Counts) Total() int {
	return c.Malicious + c.Suspicious + c.Harmless + c.Undetected
}

// HeuristicResult is the output of the local heuristic analyzer
type HeuristicResult struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ReputationResult is the output of the reputation client.
// A nil Score means the query failed or was skipped. Complete is false when the
// polling budget ran out before the analysis finished, so the counts may be
// partial.
type ReputationResult struct {
	Score    *float64 `json:"score"`
	Counts   *Counts  `json:"counts"`
	Reasons  []string `json:"reasons"`
	Complete bool     `json:"complete"`
}

// HasScore reports whether the reputation service produced a score
func (r *ReputationResult) HasScore() bool {
	return r != nil && r.Score != nil
}

// Verdict is the final decision for one URL.
// It is built once by the fusion engine and never mutated afterwards.
type Verdict struct {
	URL     string    `json:"url"`
	Score   float64   `json:"score"`
	Verdict Label     `json:"verdict"`
	Tier    Tier      `json:"tier"`
	Reasons []string  `json:"reasons"`
	Source  Source    `json:"source"`
	Counts  *Counts   `json:"counts"`
	At      time.Time `json:"at"`
}

// IsRisk reports whether the verdict label is risk
func (v Verdict) IsRisk() bool {
	return v.Verdict == LabelRisk
}

// Clamp01 bounds x to [0,1]
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
