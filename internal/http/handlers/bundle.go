package handlers

import (
	"fmt"
	"io"
	"net/http"

	"rodinstudio/internal/orchestrator"
	"rodinstudio/pkg/zip"

	"github.com/go-chi/chi/v5"
)

// SessionBundle streams a zip of every file the ready generation produced.
func (a *App) SessionBundle(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	snap := s.Snapshot()
	if snap.State != orchestrator.StateReady || len(snap.Files) == 0 {
		a.error(w, http.StatusConflict, "not_ready", "generation has no files yet")
		return
	}

	entries := make([]zip.Entry, 0, len(snap.Files))
	for _, file := range snap.Files {
		u, err := a.checkArtifactURL(file.URL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("file", file.Name).Msg("bundle: skipping file")
			continue
		}
		entries = append(entries, zip.Entry{
			Filename: file.Name,
			Open: func() (io.ReadCloser, error) {
				body, _, err := a.openArtifact(r.Context(), u)
				return body, err
			},
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusBadGateway, "upstream", "no downloadable files")
		return
	}

	name := snap.TaskUUID
	if name == "" {
		name = snap.ID
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=rodin-%s.zip", name))
	w.WriteHeader(http.StatusOK)
	if err := zip.WriteArchive(w, entries); err != nil {
		a.Logger.Error().Err(err).Str("session_id", snap.ID).Msg("bundle: archive failed")
	}
}
