package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestLinkExtractor_Extract(t *testing.T) {
	page := `
	<html>
	<body>
		<p>Read <a href="https://example.com/page1">this</a>.</p>
		<a href="/login">relative</a>
		<a href="http://paypa1.com/verify#top">squat</a>
		<a href="https://example.com/page1">duplicate</a>
		<a href="#section">anchor</a>
		<a href="javascript:alert(1)">js</a>
		<a href="mailto:a@b.example">mail</a>
		<a href="ftp://files.example/x">ftp</a>
		<a>no href</a>
	</body>
	</html>`

	links, err := NewLinkExtractor().ExtractString(page, "https://mysite.example/articles/1")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := []string{
		"https://example.com/page1",
		"https://mysite.example/login",
		"http://paypa1.com/verify",
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("got %v\nwant %v", links, want)
	}
}

func TestLinkExtractor_BaseElement(t *testing.T) {
	page := `<html><head><base href="https://cdn.example/assets/"></head>
	<body><a href="page.html">x</a></body></html>`

	links, err := NewLinkExtractor().ExtractString(page, "https://mysite.example/")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(links) != 1 || links[0] != "https://cdn.example/assets/page.html" {
		t.Errorf("expected link resolved against <base>, got %v", links)
	}
}

func TestLinkExtractor_ExternalOnly(t *testing.T) {
	page := `<a href="/internal">in</a><a href="https://MYSITE.example/other">in</a><a href="https://elsewhere.example/">out</a>`

	e := &LinkExtractor{ExternalOnly: true}
	links, err := e.Extract(strings.NewReader(page), "https://mysite.example/")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(links, []string{"https://elsewhere.example/"}) {
		t.Errorf("expected only external links, got %v", links)
	}
}

func TestLinkExtractor_BadPageURL(t *testing.T) {
	if _, err := NewLinkExtractor().ExtractString("<a href='/x'>x</a>", "http://[::1"); err == nil {
		t.Error("expected error for unparseable page URL")
	}
}

func TestLinkExtractor_Empty(t *testing.T) {
	links, err := NewLinkExtractor().ExtractString("", "https://mysite.example/")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}
