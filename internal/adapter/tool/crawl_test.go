package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sleuth/internal/domain"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
	<title>Test Page</title>
	<style>body { color: red; }</style>
	<script>console.log("ignore me");</script>
</head>
<body>
	<nav><a href="/">Home</a> <a href="/about">About</a></nav>
	<header>Site Header</header>
	<main>
		<h1>Main Heading</h1>
		<p>This is the    actual content
		of the page.</p>
	</main>
	<footer>Copyright notice</footer>
</body>
</html>`

func newCrawlTool(timeout time.Duration, maxChars int) *CrawlTool {
	return NewCrawlTool(timeout, maxChars, "sleuth-test/1.0", testLogger())
}

func TestCrawlExtractsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "sleuth-test/1.0" {
			t.Errorf("user agent = %q", ua)
		}
		fmt.Fprint(w, testPage)
	}))
	defer server.Close()

	ct := newCrawlTool(0, 0)
	result, err := ct.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, server.URL)))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}

	var resp crawlResponse
	if err := json.Unmarshal([]byte(result.Content), &resp); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %s", resp.Error)
	}
	if resp.Title != "Test Page" {
		t.Errorf("title = %q", resp.Title)
	}
	if !strings.Contains(resp.Content, "Main Heading") || !strings.Contains(resp.Content, "actual content") {
		t.Errorf("content missing body text: %q", resp.Content)
	}
	for _, boilerplate := range []string{"ignore me", "color: red", "Site Header", "Copyright notice", "About"} {
		if strings.Contains(resp.Content, boilerplate) {
			t.Errorf("boilerplate %q not stripped: %q", boilerplate, resp.Content)
		}
	}
	// Whitespace collapsed to single spaces.
	if strings.Contains(resp.Content, "  ") || strings.Contains(resp.Content, "\n") {
		t.Errorf("whitespace not collapsed: %q", resp.Content)
	}
}

func TestCrawlTruncates(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", long)
	}))
	defer server.Close()

	ct := newCrawlTool(0, 500)
	result, err := ct.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, server.URL)))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var resp crawlResponse
	if err := json.Unmarshal([]byte(result.Content), &resp); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !strings.HasSuffix(resp.Content, domain.TruncationMarker) {
		t.Errorf("truncation marker missing: %q", resp.Content[len(resp.Content)-40:])
	}
	if len(resp.Content) != 500+len(domain.TruncationMarker) {
		t.Errorf("len = %d, want %d", len(resp.Content), 500+len(domain.TruncationMarker))
	}
}

func TestCrawlHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	ct := newCrawlTool(0, 0)
	result, err := ct.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, server.URL)))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var resp crawlResponse
	if uerr := json.Unmarshal([]byte(result.Content), &resp); uerr != nil {
		t.Fatalf("unmarshal result: %v", uerr)
	}
	if resp.Success {
		t.Error("expected success=false for HTTP 404")
	}
	if !strings.Contains(resp.Error, server.URL) {
		t.Errorf("error must name the URL: %q", resp.Error)
	}
}

func TestCrawlTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ct := newCrawlTool(50*time.Millisecond, 0)
	result, err := ct.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"url":%q}`, server.URL)))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError || !result.IsRetryable {
		t.Errorf("timeout must be a retryable error result, got %+v", result)
	}
	if !strings.Contains(result.Content, "timed out") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestCrawlRejectsBadURL(t *testing.T) {
	ct := newCrawlTool(0, 0)
	for _, bad := range []string{`{"url":""}`, `{"url":"ftp://example.com"}`, `{"url":"not a url"}`} {
		result, err := ct.Execute(context.Background(), json.RawMessage(bad))
		if err != nil {
			t.Fatalf("Execute(%s): %v", bad, err)
		}
		if !result.IsError {
			t.Errorf("params %s must be rejected", bad)
		}
	}
}
