package tool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearXNGSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "golang" || q.Get("format") != "json" {
			t.Errorf("query params: %v", q)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Go","url":"https://go.dev","content":"The Go language","engine":"google"},
			{"title":"Go wiki","url":"https://en.wikipedia.org/wiki/Go","content":"Article","engine":"bing"},
			{"title":"Extra","url":"https://extra.test","content":"Extra","engine":"bing"}
		],"number_of_results":3}`)
	}))
	defer server.Close()

	b := NewSearXNGBackend(server.URL, testLogger())

	results, err := b.Search(context.Background(), "golang", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (count respected)", len(results))
	}
	if results[0].Title != "Go" || results[0].Snippet != "The Go language" {
		t.Errorf("first result: %+v", results[0])
	}
}

func TestSearXNGSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	b := NewSearXNGBackend(server.URL, testLogger())
	if _, err := b.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}
