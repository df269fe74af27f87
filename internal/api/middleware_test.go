package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthMiddleware(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{AuthTokenKey: "secret-token-abc"}}
	h := AuthMiddleware(settings, discardLogger())(okHandler())

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"bearer header", http.MethodGet, "/videos", "Bearer secret-token-abc", http.StatusOK},
		{"wrong token", http.MethodGet, "/videos", "Bearer nope", http.StatusUnauthorized},
		{"no bearer prefix", http.MethodGet, "/videos", "secret-token-abc", http.StatusUnauthorized},
		{"empty bearer", http.MethodGet, "/videos", "Bearer ", http.StatusUnauthorized},
		{"missing", http.MethodGet, "/videos", "", http.StatusUnauthorized},
		{"query on GET", http.MethodGet, "/videos/1/stream?access_token=secret-token-abc", "", http.StatusOK},
		{"query on POST", http.MethodPost, "/videos?access_token=secret-token-abc", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_ConfigFailure(t *testing.T) {
	for _, settings := range []*fakeSettings{
		{values: map[string]string{}},
		{err: errors.New("db closed")},
	} {
		h := AuthMiddleware(settings, discardLogger())(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/videos", nil)
		req.Header.Set("Authorization", "Bearer anything")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc-123" || rr.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("request id = %q (header %q), want abc-123", seen, rr.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 65))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if len(seen) != 8 {
		t.Errorf("generated request id = %q, want 8 characters", seen)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req = req.WithContext(context.WithValue(req.Context(), RequestIDKey, "rid-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "status=418") || !strings.Contains(out, "request_id=rid-1") {
		t.Errorf("log line %q missing status or request id", out)
	}
}
