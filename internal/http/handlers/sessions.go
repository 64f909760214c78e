package handlers

import (
	"context"
	"errors"
	"net/http"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/middleware"
	"rodinstudio/internal/orchestrator"

	"github.com/go-chi/chi/v5"
)

type submitResponse struct {
	Epoch    uint64                `json:"epoch"`
	Snapshot orchestrator.Snapshot `json:"snapshot"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.Sessions.Create()
	a.Logger.Debug().
		Str("session_id", s.ID()).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Msg("session created")
	a.json(w, http.StatusCreated, s.SnapshotFor(middleware.LocaleFromContext(r.Context())))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.SnapshotFor(middleware.LocaleFromContext(r.Context())))
}

// SubmitSession starts a generation. A submit while a generation is running
// supersedes it.
func (a *App) SubmitSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	form, err := parseSubmissionForm(w, r)
	if err != nil {
		a.userError(w, r, http.StatusBadRequest, err)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	epoch, err := s.Submit(form.Submission, locale)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.error(w, http.StatusGone, "gone", "session is closed")
			return
		}
		if domain.KindOf(err) == domain.KindValidation {
			a.userError(w, r, http.StatusBadRequest, err)
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to start generation")
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{Epoch: epoch, Snapshot: s.SnapshotFor(locale)})
}

func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.Reset()
	a.json(w, http.StatusOK, s.SnapshotFor(middleware.LocaleFromContext(r.Context())))
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.Sessions.Remove(chi.URLParam(r, "id")) {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
