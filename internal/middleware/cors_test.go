package middleware

import (
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

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://studio.example.com/"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/rodin", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://studio.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("missing DELETE in allowed methods: %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rodin", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected CORS header for unknown origin")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestCORSWildcardAndPlainOptions(t *testing.T) {
	h := CORS([]string{"*"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/x/bundle", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Fatalf("wildcard should echo origin, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
		t.Fatal("Content-Disposition must be exposed for downloads")
	}

	// OPTIONS without a preflight method header reaches the handler.
	req = httptest.NewRequest(http.MethodOptions, "/api/estimate", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rec.Header().Get("X-Request-ID"))
	}

	for _, bad := range []string{"", "has space", "line\nbreak", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if bad != "" {
			req.Header["X-Request-Id"] = []string{bad}
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) != 36 || seen == bad {
			t.Fatalf("id %q should be replaced by a uuid, got %q", bad, seen)
		}
	}
}
