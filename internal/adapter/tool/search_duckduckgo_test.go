package tool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const liteHTML = `<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href='https://go.dev/'>The Go Programming Language</a></td></tr>
<tr><td class='result-snippet'>Go is an open source programming language supported by Google.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href='https://en.wikipedia.org/wiki/Go'>Go &amp; friends &#39;overview&#39;</a></td></tr>
<tr><td class='result-snippet'>Article about <b>Go</b>.</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results := parseLiteResults(liteHTML, 5)
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Title != "The Go Programming Language" || results[0].URL != "https://go.dev/" {
		t.Errorf("first result: %+v", results[0])
	}
	if results[0].Snippet != "Go is an open source programming language supported by Google." {
		t.Errorf("snippet: %q", results[0].Snippet)
	}
	// Entities decoded, inner tags stripped.
	if results[1].Title != "Go & friends 'overview'" {
		t.Errorf("entity decoding: %q", results[1].Title)
	}
	if results[1].Snippet != "Article about Go." {
		t.Errorf("tag stripping: %q", results[1].Snippet)
	}
}

func TestParseLiteResultsCount(t *testing.T) {
	results := parseLiteResults(liteHTML, 1)
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestParseLiteFallback(t *testing.T) {
	html := `<html><body>
<a href="https://duckduckgo.com/settings">Settings</a>
<a href="/local">Local</a>
<a href="https://example.com/page">An External Result Title</a>
<a href="https://example.com/page">An External Result Title</a>
</body></html>`

	results := parseLiteResults(html, 5)
	if len(results) != 1 {
		t.Fatalf("got %d results: %+v", len(results), results)
	}
	if results[0].URL != "https://example.com/page" {
		t.Errorf("url = %q", results[0].URL)
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("q"); got != "golang" {
			t.Errorf("q = %q", got)
		}
		fmt.Fprint(w, liteHTML)
	}))
	defer server.Close()

	b := NewDuckDuckGoBackend("sleuth-test/1.0", testLogger())
	b.endpoint = server.URL

	results, err := b.Search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results", len(results))
	}
}
