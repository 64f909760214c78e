package handlers

import (
	"net/http"
	"strconv"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/estimate"
)

// Estimate returns the expected generation time for the given options.
func (a *App) Estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := domain.Options{Quality: q.Get("quality"), Tier: q.Get("tier")}
	opts.Normalize()
	useHyper, _ := strconv.ParseBool(q.Get("use_hyper"))
	images, err := strconv.Atoi(q.Get("images"))
	if q.Get("images") == "" {
		images, err = 0, nil
	}
	if err != nil || images < 0 || images > domain.MaxImages {
		a.error(w, http.StatusBadRequest, "bad_request", "images must be between 0 and 5")
		return
	}
	p := estimate.Params{Quality: opts.Quality, Tier: opts.Tier, UseHyper: useHyper, ImageCount: images}
	a.json(w, http.StatusOK, map[string]any{
		"estimated_time_seconds": a.Estimator.Seconds(p),
		"base_seconds":           estimate.Base(p),
	})
}
