package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"rodinstudio/internal/infra"
	"rodinstudio/internal/orchestrator"
	"rodinstudio/internal/providers/rodin"
	"rodinstudio/internal/transport"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

// upstream is a fake generation service that also hosts artifact files.
type upstream struct {
	*httptest.Server
	mu     sync.Mutex
	calls  map[string]int
	routes map[string]http.HandlerFunc
}

func newUpstream(t *testing.T, routes map[string]http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{calls: map[string]int{}, routes: routes}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.calls[r.URL.Path]++
		h, ok := u.routes[r.URL.Path]
		u.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[path]
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestApp(t *testing.T, up *upstream) *App {
	t.Helper()
	client := rodin.NewClient(rodin.Options{APIKey: "test-key", BaseURL: up.URL})
	sessions, err := orchestrator.NewManager(orchestrator.Deps{
		Transport: transport.NewAdapter(client, transport.Options{}),
		Config: orchestrator.Config{
			PollInterval:        5 * time.Millisecond,
			PlaceholderModelURL: "/models/model.glb",
		},
	}, 8)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(sessions.Close)
	cfg := &infra.Config{ProxyAllowlist: []string{"127.0.0.1"}}
	return NewApp(cfg, infra.NopLogger(), client, sessions)
}

func testRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Post("/api/rodin", app.ProxyGenerate)
	r.Post("/api/status", app.ProxyStatus)
	r.Post("/api/download", app.ProxyDownload)
	r.Get("/api/proxy-download", app.ProxyArtifact)
	r.Get("/api/estimate", app.Estimate)
	r.Post("/api/sessions", app.CreateSession)
	r.Get("/api/sessions/{id}", app.GetSession)
	r.Delete("/api/sessions/{id}", app.DeleteSession)
	r.Post("/api/sessions/{id}/submit", app.SubmitSession)
	r.Post("/api/sessions/{id}/reset", app.ResetSession)
	r.Get("/api/sessions/{id}/events", app.SessionEvents)
	r.Get("/api/sessions/{id}/bundle", app.SessionBundle)
	return r
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartForm(t *testing.T, fields [][2]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(f.data)
	}
	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
