package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubWindow struct {
	res  WindowResult
	err  error
	keys []string
}

func (s *stubWindow) Allow(_ context.Context, key string) (WindowResult, error) {
	s.keys = append(s.keys, key)
	return s.res, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_Allows(t *testing.T) {
	reset := time.UnixMilli(1_700_000_010_000)
	limiter := &stubWindow{res: WindowResult{Success: true, Limit: 10, Remaining: 7, Reset: reset}}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = "5.6.7.8:1000"
	rec := httptest.NewRecorder()
	Gate(limiter)(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if limiter.keys[0] != "ratelimit_5.6.7.8" {
		t.Fatalf("unexpected key %q", limiter.keys[0])
	}
	if rec.Header().Get("X-RateLimit-Limit") != "10" || rec.Header().Get("X-RateLimit-Remaining") != "7" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
	if rec.Header().Get("X-RateLimit-Reset") != "1700000010000" {
		t.Fatalf("unexpected reset header %q", rec.Header().Get("X-RateLimit-Reset"))
	}
}

func TestGate_Rejects(t *testing.T) {
	limiter := &stubWindow{res: WindowResult{Success: false, Limit: 10, Remaining: 0, Reset: time.Now()}}

	rec := httptest.NewRecorder()
	Gate(limiter)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected plain text body")
	}
	if rec.Body.String() != "Too many requests. Please wait a minute before trying again." {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining header on rejection")
	}
}

func TestGate_FailsOpen(t *testing.T) {
	limiter := &stubWindow{err: errors.New("connection refused")}

	rec := httptest.NewRecorder()
	Gate(limiter)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass when the store fails, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatalf("no rate limit headers expected on store failure")
	}
}

func TestGate_NilLimiterPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Gate(nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS("*")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Fatalf("unexpected allow-methods %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Headers") != "Content-Type, Authorization" {
		t.Fatalf("expected headers on normal request")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected generated id echoed, got %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("expected incoming id reused, got %q", seen)
	}
}
