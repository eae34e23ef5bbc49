// Package extract pulls candidate links out of a page for bulk scanning.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// LinkExtractor collects http(s) anchor targets from HTML
type LinkExtractor struct {
	// ExternalOnly drops links pointing back to the page's own host
	ExternalOnly bool
}

// NewLinkExtractor creates a link extractor
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// Extract returns absolute http(s) links of every <a href> in document order,
// deduplicated. Relative links resolve against pageURL, or against a <base>
// element when the page declares one.
func (e *LinkExtractor) Extract(r io.Reader, pageURL string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	pageHost := strings.ToLower(base.Hostname())

	var links []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if href := attr(n, "href"); href != "" {
					if parsed, err := url.Parse(href); err == nil {
						base = base.ResolveReference(parsed)
					}
				}
			case "a":
				if link := resolve(base, attr(n, "href")); link != "" && !seen[link] {
					if !e.ExternalOnly || !sameHost(link, pageHost) {
						seen[link] = true
						links = append(links, link)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// ExtractString is Extract over an in-memory document
func (e *LinkExtractor) ExtractString(htmlContent, pageURL string) ([]string, error) {
	return e.Extract(strings.NewReader(htmlContent), pageURL)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolve makes href absolute and keeps it only when it is http(s)
func resolve(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""

	return resolved.String()
}

func sameHost(link, host string) bool {
	u, err := url.Parse(link)
	return err == nil && strings.ToLower(u.Hostname()) == host
}
