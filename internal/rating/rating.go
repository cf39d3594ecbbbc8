// Package rating turns raw 1-5 scores into the numbers and star strips the
// UI shows, and owns the evaluation form that submits a new score.
package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

const (
	MinScore        = 1
	MaxScore        = 5
	DefaultMaxStars = 5
)

// ErrNoScores is the "no score yet" sentinel returned by Average.
var ErrNoScores = errors.New("rating: no scores")

// Average returns the arithmetic mean of scores, or ErrNoScores when the
// slice is empty.
func Average(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, ErrNoScores
	}
	mean, err := stats.Mean(scores)
	if err != nil {
		return 0, fmt.Errorf("rating: averaging %d scores: %w", len(scores), err)
	}
	return mean, nil
}

// Stars is the discrete rendering of a score: Full + Half + Empty always
// equals the strip length.
type Stars struct {
	Full  int `json:"full"`
	Half  int `json:"half"`
	Empty int `json:"empty"`
}

// StarBreakdown renders score on a strip of maxStars stars.
//
// Scores outside [0, maxStars] (malformed backend data) are clamped into
// range, and NaN counts as 0. A non-positive maxStars uses DefaultMaxStars.
func StarBreakdown(score float64, maxStars int) Stars {
	if maxStars <= 0 {
		maxStars = DefaultMaxStars
	}
	switch {
	case math.IsNaN(score) || score < 0:
		score = 0
	case score > float64(maxStars):
		score = float64(maxStars)
	}

	full := int(math.Floor(score))
	half := 0
	if score-math.Floor(score) != 0 {
		half = 1
	}
	return Stars{
		Full:  full,
		Half:  half,
		Empty: maxStars - full - half,
	}
}

// Summary is the display-ready aggregate for one project.
type Summary struct {
	Count   int     `json:"count"`
	Rated   bool    `json:"rated"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Stars   Stars   `json:"stars"`
}

// Summarize aggregates scores. An empty slice yields Rated=false and an
// all-empty star strip.
func Summarize(scores []float64) Summary {
	s := Summary{Count: len(scores)}
	avg, err := Average(scores)
	if err != nil {
		s.Stars = StarBreakdown(0, DefaultMaxStars)
		return s
	}
	// Min and Max can not fail on a non-empty slice.
	s.Min, _ = stats.Min(scores)
	s.Max, _ = stats.Max(scores)
	s.Rated = true
	s.Average = avg
	s.Stars = StarBreakdown(avg, DefaultMaxStars)
	return s
}

// Label is the short text shown next to the stars.
func (s Summary) Label() string {
	if !s.Rated {
		return "Sin calificaciones"
	}
	return fmt.Sprintf("%.1f / %d", s.Average, DefaultMaxStars)
}
