package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"rodinstudio/internal/storage"
)

func TestProxyArtifactRejectsUnlistedHosts(t *testing.T) {
	router := testRouter(newTestApp(t, newUpstream(t, nil)))
	cases := map[string]int{
		"":                                    http.StatusBadRequest,
		"ftp://127.0.0.1/model.glb":           http.StatusBadRequest,
		"not a url":                           http.StatusBadRequest,
		"https://evil.example.com/model.glb":  http.StatusForbidden,
		"https://127.0.0.1.evil.io/model.glb": http.StatusForbidden,
	}
	for raw, want := range cases {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/proxy-download?url="+url.QueryEscape(raw), nil))
		if rec.Code != want {
			t.Fatalf("url %q: status %d, want %d", raw, rec.Code, want)
		}
	}
}

func TestAllowedHostMatchesSubdomains(t *testing.T) {
	app := newTestApp(t, newUpstream(t, nil))
	app.allowlist = map[string]struct{}{"deemos.com": {}}
	for host, want := range map[string]bool{
		"deemos.com":             true,
		"hyperhuman.deemos.com":  true,
		"HYPERHUMAN.DEEMOS.COM.": true,
		"notdeemos.com":          false,
		"deemos.com.attacker.io": false,
	} {
		if got := app.allowedHost(host); got != want {
			t.Fatalf("allowedHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestProxyArtifactUsesCache(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/files/base.glb": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("model-bytes"))
		},
	})
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	app := newTestApp(t, up)
	app.Artifacts = store
	router := testRouter(app)

	target := "/api/proxy-download?url=" + url.QueryEscape(up.URL+"/files/base.glb")
	for i := 0; i < 3; i++ {
		rec := serve(router, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "model-bytes" {
			t.Fatalf("request %d: status %d body %q", i, rec.Code, rec.Body.String())
		}
	}
	if n := up.count("/files/base.glb"); n != 1 {
		t.Fatalf("expected one upstream fetch, got %d", n)
	}
	data, _, err := store.Get(context.Background(), storage.KeyForURL(up.URL+"/files/base.glb"))
	if err != nil || string(data) != "model-bytes" {
		t.Fatalf("cache entry = %q, %v", data, err)
	}
}

func TestProxyArtifactUpstreamFailure(t *testing.T) {
	up := newUpstream(t, nil)
	router := testRouter(newTestApp(t, up))
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/proxy-download?url="+url.QueryEscape(up.URL+"/missing.glb"), nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}

func TestProxyArtifactChecksRedirectHosts(t *testing.T) {
	other := newUpstream(t, map[string]http.HandlerFunc{
		"/stolen.glb": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("secret")) },
	})
	otherURL, err := url.Parse(other.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/moved.glb": func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/files/base.glb", http.StatusFound)
		},
		"/files/base.glb": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("model-bytes")) },
		"/escape.glb": func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "http://localhost:"+otherURL.Port()+"/stolen.glb", http.StatusFound)
		},
	})
	router := testRouter(newTestApp(t, up))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/proxy-download?url="+url.QueryEscape(up.URL+"/moved.glb"), nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "model-bytes" {
		t.Fatalf("same-host redirect: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/proxy-download?url="+url.QueryEscape(up.URL+"/escape.glb"), nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("cross-host redirect: status %d, want 502", rec.Code)
	}
	if n := other.count("/stolen.glb"); n != 0 {
		t.Fatalf("unlisted redirect target was fetched %d times", n)
	}
}

func TestEstimate(t *testing.T) {
	router := testRouter(newTestApp(t, newUpstream(t, nil)))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/estimate?quality=high&tier=Sketch&images=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out struct {
		Estimated int     `json:"estimated_time_seconds"`
		Base      float64 `json:"base_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Base != 120 {
		t.Fatalf("base = %v, want 120", out.Base)
	}
	if out.Estimated < 96 || out.Estimated > 144 {
		t.Fatalf("estimate %d outside [96, 144]", out.Estimated)
	}

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/estimate?images=6", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("images=6 status %d, want 400", rec.Code)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealth(t *testing.T) {
	app := newTestApp(t, newUpstream(t, nil))
	router := testRouter(app)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	app.DB = stubPinger{err: errors.New("connection refused")}
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "degraded" {
		t.Fatalf("unexpected body %v", out)
	}
}
