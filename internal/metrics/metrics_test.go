package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"local file", "file:///tmp/site/index.html", "file"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if crawlerPagesTotal == nil || crawlerRunsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil || crawlerActiveTasks == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestRecorderObserveFetch(t *testing.T) {
	r := NewRecorder()
	ok := crawlerPagesTotal.WithLabelValues("init.test", StatusOK)
	failed := crawlerPagesTotal.WithLabelValues("init.test", StatusError)
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	r.ObserveFetch("https://INIT.test/a", 10*time.Millisecond, nil)
	r.ObserveFetch("https://init.test/b", 10*time.Millisecond, nil)
	r.ObserveFetch("https://init.test/c", time.Millisecond, &crawler.FetchError{URL: "https://init.test/c", Err: errors.New("boom")})

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Errorf("expected 2 ok pages, got %f", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("expected 1 failed page, got %f", got)
	}
}

func TestRecorderActiveTasks(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(crawlerActiveTasks)
	r.TaskStarted()
	r.TaskStarted()
	if got := testutil.ToFloat64(crawlerActiveTasks) - before; got != 2 {
		t.Errorf("expected gauge +2, got %f", got)
	}
	r.TaskFinished()
	r.TaskFinished()
	if got := testutil.ToFloat64(crawlerActiveTasks); got != before {
		t.Errorf("expected gauge back to %f, got %f", before, got)
	}
}

func TestRecorderObserveRun(t *testing.T) {
	r := NewRecorder()
	cases := []struct {
		err    error
		status string
	}{
		{nil, StatusOK},
		{fmt.Errorf("crawl interrupted: %w", context.Canceled), StatusCanceled},
		{errors.New("unexpected"), StatusError},
	}
	for _, tc := range cases {
		counter := crawlerRunsTotal.WithLabelValues(tc.status)
		before := testutil.ToFloat64(counter)
		r.ObserveRun(crawler.Result{URLsVisited: 4}, time.Second, tc.err)
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("status %s: expected +1, got %f", tc.status, got)
		}
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com", "file:///etc"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
