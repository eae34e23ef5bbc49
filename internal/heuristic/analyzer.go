// Package heuristic scores URLs with local, deterministic rules.
// Nothing in this package touches the network.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/ppiankov/trishield/internal/model"
)

// Rule is a single additive feature check
type Rule struct {
	Name   string
	Weight float64
	Reason string
	Match  func(f Features) bool
}

var (
	suspiciousTLDs = []string{".zip", ".xyz", ".top", ".buzz", ".quest", ".click", ".country", ".gq", ".tk", ".ml"}

	phishingKeywords = []string{
		"login", "signin", "verify", "update", "billing", "wallet", "gift",
		"giveaway", "airdrop", "bonus", "free", "password", "security",
	}

	knownBadPaths = []string{"wp-login.php", "account/verify", "steamcommunity", "id.apple.com", "service=mail", "oauth"}

	ipv4Host = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

// DefaultRules returns the rule set in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "suspicious_tld",
			Weight: 0.15,
			Reason: "Suspicious TLD",
			Match: func(f Features) bool {
				return hasAnySuffix(f.Host, suspiciousTLDs)
			},
		},
		{
			Name:   "ip_host",
			Weight: 0.15,
			Reason: "IP address host",
			Match: func(f Features) bool {
				return ipv4Host.MatchString(f.Host) || strings.Contains(f.Host, ":")
			},
		},
		{
			Name:   "many_subdomains",
			Weight: 0.10,
			Reason: "Too many subdomains",
			Match: func(f Features) bool {
				return f.Host != "" && len(strings.Split(f.Host, ".")) >= 5
			},
		},
		{
			Name:   "hyphenated_host",
			Weight: 0.08,
			Reason: "Hyphenated host",
			Match: func(f Features) bool {
				return strings.Count(f.Host, "-") >= 2
			},
		},
		{
			Name:   "punycode_host",
			Weight: 0.12,
			Reason: "Punycode host (possible homograph)",
			Match: func(f Features) bool {
				return strings.HasPrefix(f.Host, "xn--")
			},
		},
		{
			Name:   "sensitive_keyword",
			Weight: 0.12,
			Reason: "Sensitive keyword in path/query",
			Match: func(f Features) bool {
				return containsAny(strings.ToLower(f.Path), phishingKeywords)
			},
		},
		{
			Name:   "long_url",
			Weight: 0.06,
			Reason: "Very long URL",
			Match: func(f Features) bool {
				return len(f.Full) > 110
			},
		},
		{
			Name:   "many_params",
			Weight: 0.06,
			Reason: "Many query params",
			Match: func(f Features) bool {
				return strings.Count(f.Full, "=")+strings.Count(f.Full, "&")+strings.Count(f.Full, "?") > 8
			},
		},
		{
			Name:   "data_js_scheme",
			Weight: 0.30,
			Reason: "Data/JS URL",
			Match: func(f Features) bool {
				lower := strings.ToLower(f.Full)
				return strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:")
			},
		},
		{
			Name:   "known_bad_path",
			Weight: 0.08,
			Reason: "Known-bad style path",
			Match: func(f Features) bool {
				return containsAny(strings.ToLower(f.Full), knownBadPaths)
			},
		},
	}
}

// Analyzer applies rules to URLs
type Analyzer struct {
	rules []Rule
}

// NewAnalyzer creates an analyzer with the default rule set
func NewAnalyzer() *Analyzer {
	return &Analyzer{rules: DefaultRules()}
}

// Analyze scores a URL. Score is the clamped sum of matched rule weights;
// reasons follow rule order.
func (a *Analyzer) Analyze(rawURL string) model.HeuristicResult {
	f := Extract(rawURL)

	score := 0.0
	reasons := []string{}
	for _, r := range a.rules {
		if r.Match(f) {
			score += r.Weight
			reasons = append(reasons, r.Reason)
		}
	}

	return model.HeuristicResult{
		Score:   model.Clamp01(score),
		Reasons: reasons,
	}
}

// Analyze scores a URL with the default rules
func Analyze(rawURL string) model.HeuristicResult {
	return defaultAnalyzer.Analyze(rawURL)
}

var defaultAnalyzer = NewAnalyzer()

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
