package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var fastBackoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func testFeed(url string) *Feed {
	return NewFeed(FeedConfig{Name: "test", URL: url, Client: http.DefaultClient, Backoff: fastBackoff})
}

// TestFeedDecodesEnvelope verifies the {"items": [...]} response shape.
func TestFeedDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"beachName":"Cherry Beach","lat":43.63,"lng":-79.34,"Result":"21.0"},{"lat":43.6,"lon":-79.3,"temp":18}]}`))
	}))
	defer srv.Close()

	list, err := testFeed(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Items))
	}
	if list.Items[0]["beachName"] != "Cherry Beach" {
		t.Errorf("unexpected first item: %v", list.Items[0])
	}
}

func TestFeedDecodesBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(` [{"lat":43.6,"lon":-79.3,"temp":18}]`))
	}))
	defer srv.Close()

	list, err := testFeed(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(list.Items))
	}
}

// TestFeedRetriesServerErrors checks that transient 5xx responses are retried.
func TestFeedRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	list, err := testFeed(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Items) != 0 {
		t.Errorf("expected empty list, got %d", len(list.Items))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestFeedGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testFeed(srv.URL).Fetch(context.Background())
	if !errors.Is(err, errServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 1 attempt plus 2 retries, got %d", got)
	}
}

func TestFeedRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	feed := NewFeed(FeedConfig{Name: "test", URL: srv.URL, Backoff: BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}})
	if _, err := feed.Fetch(context.Background()); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestFeedInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	if _, err := testFeed(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFeedCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testFeed(srv.URL).Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFeedWithoutURL(t *testing.T) {
	if _, err := NewStationFeed("", nil).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing url")
	}
	if NewUserPointFeed("http://example.invalid", nil).Name() != UserPointFeedName {
		t.Error("unexpected feed name")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := BackoffConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: 300 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for attempt, w := range want {
		if got := backoffDelay(cfg, attempt); got != w {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, w)
		}
	}
}
