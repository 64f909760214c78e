package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/estimate"
	"rodinstudio/internal/i18n"
	"rodinstudio/internal/infra"
	"rodinstudio/internal/metrics"
	"rodinstudio/internal/middleware"
	"rodinstudio/internal/orchestrator"
	"rodinstudio/internal/providers/rodin"
	"rodinstudio/internal/storage"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Rodin     *rodin.Client
	Sessions  *orchestrator.Manager
	Artifacts storage.ArtifactStore
	Metrics   *metrics.Collector
	Estimator *estimate.Estimator
	DB        Pinger

	allowlist map[string]struct{}
	origins   map[string]struct{}
}

func NewApp(cfg *infra.Config, logger *infra.Logger, client *rodin.Client, sessions *orchestrator.Manager) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Rodin:     client,
		Sessions:  sessions,
		Estimator: estimate.New(),
		allowlist: map[string]struct{}{},
		origins:   map[string]struct{}{},
	}
	if cfg != nil {
		for _, h := range cfg.ProxyAllowlist {
			a.allowlist[strings.ToLower(h)] = struct{}{}
		}
		for _, o := range cfg.CORSOrigins {
			a.origins[o] = struct{}{}
		}
	}
	return a
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": message, "code": code})
}

// userError writes err in its localized form. The raw detail stays in the log.
func (a *App) userError(w http.ResponseWriter, r *http.Request, status int, err error) {
	ue := i18n.UserError(middleware.LocaleFromContext(r.Context()), err)
	if detail := domain.DetailOf(err); detail != "" {
		a.Logger.Debug().
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("kind", string(ue.Kind)).
			Str("detail", detail).
			Msg("request rejected")
	}
	a.json(w, status, map[string]string{"error": ue.Message, "code": string(ue.Kind)})
}

// session loads the session named by the {id} URL parameter or writes 404.
func (a *App) session(w http.ResponseWriter, r *http.Request, id string) (*orchestrator.Session, bool) {
	s, ok := a.Sessions.Get(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return s, true
}
