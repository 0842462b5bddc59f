package httpserver_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	server "seulanga/internal/adapters/http_server"
)

func TestRateLimit_PerClientIP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := server.RateLimit(1, 2)(ok)

	hit := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/units", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := hit("203.0.113.7:40000", ""); code != http.StatusOK {
			t.Fatalf("request %d: %d", i, code)
		}
	}
	if code := hit("203.0.113.7:40001", ""); code != http.StatusTooManyRequests {
		t.Fatalf("burst exceeded: want 429, got %d", code)
	}
	if code := hit("198.51.100.2:40000", ""); code != http.StatusOK {
		t.Fatalf("other client throttled: %d", code)
	}

	// rotating a forwarding header does not buy a fresh bucket
	for i := 0; i < 20; i++ {
		if code := hit("203.0.113.7:40002", fmt.Sprintf("10.1.0.%d", i)); code != http.StatusTooManyRequests {
			t.Fatalf("spoofed X-Forwarded-For %d: want 429, got %d", i, code)
		}
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := server.RateLimit(0, 0)(ok)
	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
}

func TestTimeout_CancelsSlowHandlers(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})
	rr := httptest.NewRecorder()
	server.Timeout(20*time.Millisecond)(slow).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 after deadline, got %d", rr.Code)
	}
}
