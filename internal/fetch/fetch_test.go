package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hubresolver/internal/budget"
)

func TestGetReturnsBodyAndFinalURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a browser user agent header")
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	b := budget.New(10 * time.Second)

	res, err := c.Get(context.Background(), srv.URL, b)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if res.Body != "<html><body>ok</body></html>" {
		t.Fatalf("unexpected body %q", res.Body)
	}
}

func TestGetExhaustedBudget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued on an exhausted budget")
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	b := budget.NewAt(time.Now().Add(-time.Minute), 10*time.Second)

	if _, err := c.Get(context.Background(), srv.URL, b); err != ErrBudgetExhausted {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
}

func TestGetBoundedBySlowServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(10 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	// Budget nearly gone: allowance is the 2s floor, not the 5s stage max.
	b := budget.NewAt(time.Now().Add(-9500*time.Millisecond), 10*time.Second)

	start := time.Now()
	_, err := c.Get(context.Background(), srv.URL, b)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error from slow server")
	}
	if elapsed > 4*time.Second {
		t.Fatalf("call was not bounded by the allowance, took %v", elapsed)
	}
}

func TestChallengeRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte("<html>Just a moment...</html>"))
			return
		}
		w.Write([]byte("<html>real page</html>"))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	b := budget.New(20 * time.Second)

	res, err := c.Get(context.Background(), srv.URL, b)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one challenge retry, got %d calls", calls)
	}
	if res.Body != "<html>real page</html>" {
		t.Fatalf("expected retried body, got %q", res.Body)
	}
}
