package httpapi

import (
	"net/http"
	"time"

	"rodinstudio/internal/http/handlers"
	appmw "rodinstudio/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App, lookup appmw.CountryLookup) http.Handler {
	r := chi.NewRouter()

	defaultLocale, rateLimit := "", 0
	var origins []string
	if app.Config != nil {
		defaultLocale = app.Config.DefaultLocale
		rateLimit = app.Config.RateLimitPerMin
		origins = app.Config.CORSOrigins
	}

	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		appmw.RequestID,
		appmw.Logger(*app.Logger),
		appmw.Metrics(app.Metrics),
		appmw.CORS(origins),
		appmw.I18N(defaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/metrics", app.MetricsHandler)

	limited := appmw.RateLimit(rateLimit, time.Minute)

	r.Route("/api", func(r chi.Router) {
		r.With(limited).Post("/rodin", app.ProxyGenerate)
		r.Post("/status", app.ProxyStatus)
		r.Post("/download", app.ProxyDownload)
		r.Get("/proxy-download", app.ProxyArtifact)
		r.Get("/estimate", app.Estimate)

		r.Post("/sessions", app.CreateSession)
		r.Get("/sessions/{id}", app.GetSession)
		r.Delete("/sessions/{id}", app.DeleteSession)
		r.With(limited).Post("/sessions/{id}/submit", app.SubmitSession)
		r.Post("/sessions/{id}/reset", app.ResetSession)
		r.Get("/sessions/{id}/events", app.SessionEvents)
		r.Get("/sessions/{id}/bundle", app.SessionBundle)
	})

	return r
}
