package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "KM")
			},
			country: "US",
			want:    "km",
		},
		{
			name: "query parameter beats headers",
			setup: func(r *http.Request) {
				r.URL.RawQuery = "locale=km"
				r.Header.Set("X-Locale", "en")
			},
			want: "km",
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			country: "KH",
			want:    "en",
		},
		{
			name: "accept-language khmer preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "km-KH,en;q=0.8")
			},
			want: "km",
		},
		{
			name:    "cambodia selects khmer",
			country: "KH",
			want:    "km",
		},
		{
			name:     "other country ignores fallback",
			country:  "US",
			fallback: "km",
			want:     "en",
		},
		{
			name:     "configured fallback",
			fallback: "km",
			want:     "km",
		},
		{
			name: "default to en",
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback, tc.country)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	lookup := func(ip string) (string, error) {
		if ip == "203.0.113.9" {
			return "kh", nil
		}
		return "", errors.New("unknown")
	}

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		lookup CountryLookup
		want   string
	}{
		{
			name:  "edge header",
			setup: func(r *http.Request) { r.Header.Set("CF-IPCountry", "kh") },
			want:  "KH",
		},
		{
			name: "geoip lookup via forwarded ip",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
			},
			lookup: lookup,
			want:   "KH",
		},
		{
			name:   "lookup failure",
			lookup: lookup,
			want:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := ResolveCountry(req, tc.lookup); got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NStoresLocaleInContext(t *testing.T) {
	var seen string
	h := I18N("en", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Locale", "km")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "km" {
		t.Fatalf("expected km locale in context, got %q", seen)
	}
	if rec.Header().Get("Content-Language") != "km" {
		t.Fatalf("expected Content-Language header, got %q", rec.Header().Get("Content-Language"))
	}
}
