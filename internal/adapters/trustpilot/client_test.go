package trustpilot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"review_harvester/internal/adapters/trustpilot"
	"review_harvester/internal/domain"
)

func testClient(robots bool) *trustpilot.Client {
	return trustpilot.New(trustpilot.Options{
		Timeout:       2 * time.Second,
		MaxAttempts:   4,
		Backoff:       time.Millisecond,
		RPS:           1000, // high RPS for tests
		RespectRobots: robots,
	})
}

func TestClient_FetchPage_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(503)
		default:
			if r.URL.Query().Get("page") != "3" {
				t.Errorf("page param = %q", r.URL.Query().Get("page"))
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html>ok</html>"))
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := testClient(false).FetchPage(ctx, ts.URL+"/review/nike.com", 3)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(p.Content) != "<html>ok</html>" || p.Status != 200 || p.Number != 3 {
		t.Fatalf("unexpected page: %+v", p)
	}
	if p.URL != ts.URL+"/review/nike.com?page=3" {
		t.Fatalf("unexpected url: %s", p.URL)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls due to retries, got %d", hits)
	}
}

func TestClient_FetchPage_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := testClient(false).FetchPage(context.Background(), ts.URL+"/review/x", 1)
	var ff *domain.FetchFailure
	if !errors.As(err, &ff) || ff.Status != 404 || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected 404 fetch failure, got %v", err)
	}
}

func TestClient_FetchPage_RetriesExhausted(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(502)
	}))
	defer ts.Close()

	_, err := testClient(false).FetchPage(context.Background(), ts.URL, 1)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 4 {
		t.Fatalf("expected 4 attempts, got %d", got)
	}
}

func TestClient_FetchPage_NoRetryOn400(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := testClient(false).FetchPage(context.Background(), ts.URL, 1)
	if err == nil || errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected definitive failure, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("400 must not be retried")
	}
}

func TestClient_FetchPage_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(false).FetchPage(ctx, ts.URL, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_FetchPage_RobotsDisallow(t *testing.T) {
	var pageHits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /review/\n"))
			return
		}
		atomic.AddInt32(&pageHits, 1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := testClient(true)
	_, err := c.FetchPage(context.Background(), ts.URL+"/review/nike.com", 1)
	if !errors.Is(err, domain.ErrRobotsDisallowed) {
		t.Fatalf("expected robots rejection, got %v", err)
	}
	if _, err := c.FetchPage(context.Background(), ts.URL+"/other", 1); err != nil {
		t.Fatalf("allowed path rejected: %v", err)
	}
	if atomic.LoadInt32(&pageHits) != 1 {
		t.Fatalf("disallowed page must not be requested")
	}
}

func TestClient_FetchPage_MissingRobotsAllows(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	if _, err := testClient(true).FetchPage(context.Background(), ts.URL+"/review/a", 1); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestPageURL_KeepsExistingQuery(t *testing.T) {
	got, err := trustpilot.PageURL("https://www.trustpilot.com/review/nike.com?languages=all", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://www.trustpilot.com/review/nike.com?languages=all&page=2" {
		t.Fatalf("got %s", got)
	}
}
