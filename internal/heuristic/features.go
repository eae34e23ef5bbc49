package heuristic

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Features are the parsed pieces of a URL the rules look at
type Features struct {
	Host   string // lowercase ASCII hostname, empty when the URL did not parse
	Path   string // path plus "?query"
	Full   string // normalized URL string, or the raw input on parse failure
	Scheme string
}

// Extract parses rawURL into features. It never fails: a URL that cannot be
// parsed as absolute yields an empty host and path and keeps the raw string.
func Extract(rawURL string) Features {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return Features{Full: rawURL}
	}

	scheme := strings.ToLower(u.Scheme)
	host := normalizeHost(u.Hostname())

	path := u.EscapedPath()
	if u.Opaque != "" {
		path = u.Opaque
	}
	if host != "" && path == "" {
		path = "/"
	}

	search := ""
	if u.RawQuery != "" || u.ForceQuery {
		search = "?" + u.RawQuery
	}

	return Features{
		Host:   host,
		Path:   path + search,
		Full:   rebuild(u, scheme, host, path, search),
		Scheme: scheme,
	}
}

// normalizeHost converts a hostname to its lowercase ASCII form, the way a
// browser URL parser exposes it (IDN labels become xn-- punycode).
func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		return ascii
	}
	return strings.ToLower(host)
}

func rebuild(u *url.URL, scheme, host, path, search string) string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString(":")

	if u.Opaque != "" {
		b.WriteString(u.Opaque)
		b.WriteString(search)
		return b.String()
	}

	b.WriteString("//")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteString("@")
	}
	if strings.Contains(host, ":") {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(host)
	}
	if port := u.Port(); port != "" {
		b.WriteString(":" + port)
	}
	b.WriteString(path)
	b.WriteString(search)
	if u.Fragment != "" {
		b.WriteString("#" + u.EscapedFragment())
	}
	return b.String()
}
