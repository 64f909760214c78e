package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if a.Sessions != nil {
		resp["sessions"] = a.Sessions.Len()
	}
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("health: database ping failed")
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			a.json(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	a.json(w, http.StatusOK, resp)
}

// MetricsHandler exposes the Prometheus registry.
func (a *App) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	a.Metrics.Handler().ServeHTTP(w, r)
}
