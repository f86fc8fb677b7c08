package indico

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	perr "qmtrends/internal/platform/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL + "/", MaxRetries: 2, RetryBase: 10 * time.Millisecond, Token: "tok"})
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestGet_OK(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export/event/792436.json" || r.URL.Query().Get("detail") != "contributions" {
			t.Errorf("unexpected url %s", r.URL)
		}
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("User-Agent") != defaultUA {
			t.Errorf("headers = %v", r.Header)
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	body, err := c.Get(context.Background(), ExportPath("792436"))
	if err != nil || string(body) != `{"results":[]}` {
		t.Fatalf("Get = %q, %v", body, err)
	}
}

func TestGet_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	body, err := c.Get(context.Background(), "/x")
	if err != nil || string(body) != "ok" {
		t.Fatalf("Get = %q, %v", body, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
	// exponential from RetryBase
	if len(*slept) != 2 || (*slept)[0] != 10*time.Millisecond || (*slept)[1] != 20*time.Millisecond {
		t.Fatalf("slept = %v", *slept)
	}
}

func TestGet_HonoursRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	if _, err := c.Get(context.Background(), "/x"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Fatalf("slept = %v", *slept)
	}
}

func TestGet_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   perr.ErrorCode
	}{
		{"not found", http.StatusNotFound, perr.ErrorCodeNotFound},
		{"forbidden", http.StatusForbidden, perr.ErrorCodeUpstream},
		{"rate limit exhausted", http.StatusTooManyRequests, perr.ErrorCodeTooManyRequests},
		{"server error exhausted", http.StatusBadGateway, perr.ErrorCodeUpstream},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			})
			_, err := c.Get(context.Background(), "/x")
			if !perr.IsCode(err, tc.want) {
				t.Fatalf("code = %v, want %v (%v)", perr.CodeOf(err), tc.want, err)
			}
		})
	}
}

func TestGet_ContextCanceled(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, "/x"); err != context.Canceled {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tc := range tests {
		if got := retryAfter(tc.in, now); got != tc.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBackoffCaps(t *testing.T) {
	t.Parallel()

	c := NewClient(Options{RetryBase: time.Second})
	if got := c.backoff(10); got != maxBackoff {
		t.Fatalf("backoff(10) = %v", got)
	}
	if got := c.backoff(1); got != 2*time.Second {
		t.Fatalf("backoff(1) = %v", got)
	}
}

func TestForBase(t *testing.T) {
	t.Parallel()

	var def, mirror atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		def.Add(1)
		_, _ = w.Write([]byte(`{}`))
	})
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mirror.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(other.Close)

	if c.ForBase("") != Getter(c) || c.ForBase(c.BaseURL()+"/") != Getter(c) {
		t.Fatalf("same base should return the receiver")
	}
	m := c.ForBase(other.URL + "/")
	if _, err := m.Get(context.Background(), ExportPath("1")); err != nil {
		t.Fatalf("mirror Get: %v", err)
	}
	if mirror.Load() != 1 || def.Load() != 0 {
		t.Fatalf("mirror=%d default=%d", mirror.Load(), def.Load())
	}
	if _, err := c.Get(context.Background(), ExportPath("1")); err != nil {
		t.Fatalf("default Get: %v", err)
	}
	if def.Load() != 1 {
		t.Fatalf("default = %d", def.Load())
	}
	if m.(*Client).opts.MaxRetries != c.opts.MaxRetries {
		t.Fatalf("retry config not shared")
	}
}
