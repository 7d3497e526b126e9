package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCrawlFetchesSeededURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("%PDF-1.4 fake record content"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.run("seed", "doj-foia", srv.URL+"/record.pdf")

	out := env.run("crawl", "--source", "doj-foia")
	env.contains(out, "crawled doj-foia: 1 claim(s), 1 new document(s), 0 failure(s)")

	out = env.run("stats")
	env.contains(out, "documents:      1")
}

func TestCrawlReenqueuesFetchedURLsOnConfigChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.run("seed", "doj-foia", srv.URL+"/a")
	env.run("crawl", "--source", "doj-foia")

	out := env.run("crawl", "--source", "doj-foia")
	env.contains(out, "0 claim(s)")

	env.run("config", "rate_limit.floor_ms", "500", "--local")

	out = env.run("crawl", "--source", "doj-foia")
	env.contains(out, "1 claim(s)")
}

func TestCrawlRequiresSource(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runErr("crawl")
	if err == nil {
		t.Error("crawl without --source = nil error, want error")
	}
}

func TestCrawlRespectsMaxClaims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.run("seed", "doj-foia", srv.URL+"/a", srv.URL+"/b", srv.URL+"/c")

	out := env.run("crawl", "--source", "doj-foia", "--max", "2")
	env.contains(out, "2 claim(s)")

	out = env.run("stats", "-o", "json")
	env.contains(out, `"pending_urls":1`)
}
