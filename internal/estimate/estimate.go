// Package estimate predicts how long a generation will take. The value is
// shown to users only; completion is always detected from job statuses.
package estimate

import (
	"math"
	"math/rand/v2"
)

const baseSeconds = 60.0

var qualityMultiplier = map[string]float64{
	"extra-low": 0.5,
	"low":       0.7,
	"medium":    1.0,
	"high":      1.5,
}

// Params are the submission properties that influence generation time.
type Params struct {
	Quality    string
	Tier       string
	UseHyper   bool
	ImageCount int
}

// Base returns the deterministic estimate in seconds, before jitter.
func Base(p Params) float64 {
	seconds := baseSeconds
	if m, ok := qualityMultiplier[p.Quality]; ok {
		seconds *= m
	}
	if p.Tier == "Regular" {
		seconds *= 1.2
	}
	if p.UseHyper {
		seconds *= 1.3
	}
	if p.ImageCount > 0 {
		seconds += float64(p.ImageCount) * 15
	} else {
		seconds += 30
	}
	return seconds
}

// Estimator applies a random factor in [0.8, 1.2] to Base.
type Estimator struct {
	rnd func() float64
}

// New returns an Estimator using the global random source.
func New() *Estimator {
	return &Estimator{rnd: rand.Float64}
}

// NewWithSource lets callers pin the random draw; rnd must return values in [0, 1).
func NewWithSource(rnd func() float64) *Estimator {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Estimator{rnd: rnd}
}

// Seconds returns the jittered estimate rounded to whole seconds.
func (e *Estimator) Seconds(p Params) int {
	factor := 0.8 + e.rnd()*0.4
	return int(math.Round(Base(p) * factor))
}
