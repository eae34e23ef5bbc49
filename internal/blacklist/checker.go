// Package blacklist matches hostnames against a local blacklist and a list
// of high-value brand domains that are common typosquatting targets.
package blacklist

import (
	"strings"
)

// DefaultBrands are popular domains checked for typosquatting. Order matters:
// the first brand within range wins.
var DefaultBrands = []string{
	"google.com", "facebook.com", "youtube.com", "twitter.com", "instagram.com",
	"linkedin.com", "wikipedia.org", "amazon.com", "apple.com", "microsoft.com",
	"netflix.com", "paypal.com", "ebay.com", "reddit.com", "office.com",
	"live.com", "dropbox.com", "stackoverflow.com", "github.com", "yahoo.com",
}

// DefaultBlacklist holds known-bad hostnames
var DefaultBlacklist = []string{
	"malicious-example.com",
	"phishing-site.net",
	"get-free-stuff.org",
}

// MaxTyposquatDistance is the largest edit distance still treated as squatting
const MaxTyposquatDistance = 2

// Typosquat describes a near-miss against a brand domain
type Typosquat struct {
	MatchedBrand string `json:"matched_brand"`
	Distance     int    `json:"distance"`
}

// Result is the outcome of a local list check
type Result struct {
	Blacklisted bool       `json:"blacklisted"`
	Typosquat   *Typosquat `json:"typosquat,omitempty"`
}

// Checker holds the lists to match against
type Checker struct {
	blacklist map[string]bool
	brands    []string
}

// NewChecker creates a checker. Nil lists fall back to the defaults.
func NewChecker(blacklist, brands []string) *Checker {
	if blacklist == nil {
		blacklist = DefaultBlacklist
	}
	if brands == nil {
		brands = DefaultBrands
	}

	c := &Checker{
		blacklist: make(map[string]bool, len(blacklist)),
		brands:    make([]string, 0, len(brands)),
	}
	for _, h := range blacklist {
		if h = normalize(h); h != "" {
			c.blacklist[h] = true
		}
	}
	for _, b := range brands {
		if b = normalize(b); b != "" {
			c.brands = append(c.brands, b)
		}
	}
	return c
}

// Check matches a hostname against the blacklist and brand list
func (c *Checker) Check(hostname string) Result {
	host := normalize(hostname)
	if host == "" {
		return Result{}
	}

	res := Result{Blacklisted: c.blacklist[host]}

	domain := EffectiveDomain(host)
	for _, brand := range c.brands {
		d := Distance(domain, brand)
		if d > 0 && d <= MaxTyposquatDistance {
			res.Typosquat = &Typosquat{MatchedBrand: brand, Distance: d}
			break
		}
	}

	return res
}

// EffectiveDomain approximates the registrable domain as the last two labels
// after stripping a leading "www.". Multi-part public suffixes such as co.uk
// are not handled.
func EffectiveDomain(host string) string {
	host = strings.TrimPrefix(normalize(host), "www.")
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

func normalize(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
