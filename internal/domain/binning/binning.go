// Package binning buckets review scores into the half-open intervals drawn
// as bars on a publication's score histogram.
package binning

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	// MaxScore closes the last bin.
	MaxScore = 100.0
	// DefaultMinStep is the narrowest bin a histogram may use.
	DefaultMinStep = 5.0

	keyPrecision = 1e6
)

// StepSize derives the bin width for a set of scores: the smallest positive
// gap between two distinct scores, never narrower than minStep. When no gap
// exists (fewer than two distinct scores) or the result is not finite, the
// step is minStep.
func StepSize(scores []float64, minStep float64) float64 {
	if minStep <= 0 || math.IsNaN(minStep) || math.IsInf(minStep, 0) {
		minStep = DefaultMinStep
	}
	distinct := make([]float64, 0, len(scores))
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		distinct = append(distinct, s)
	}
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	gap := math.Inf(1)
	for i := 1; i < len(distinct); i++ {
		if d := distinct[i] - distinct[i-1]; d > 0 && d < gap {
			gap = d
		}
	}
	if math.IsInf(gap, 0) || math.IsNaN(gap) {
		return minStep
	}
	return math.Max(gap, minStep)
}

// Key is one score bin. It renders as "{low},{high}".
type Key struct {
	Low  float64
	High float64
}

// String renders the key in its wire form.
func (k Key) String() string {
	return formatBound(k.Low) + "," + formatBound(k.High)
}

// Contains reports whether score falls in [Low, High), or in [Low, 100] for
// the bin that ends at 100.
func (k Key) Contains(score float64) bool {
	if score < k.Low {
		return false
	}
	if k.High == MaxScore {
		return score <= MaxScore
	}
	return score < k.High
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	if high <= low {
		return Key{}, fmt.Errorf("%w: %q: high must exceed low", ErrInvalidKey, s)
	}
	return Key{Low: low, High: high}, nil
}

// Keys lists every bin from 0 to 100 for step. The final bin is clamped so it
// ends exactly at 100.
func Keys(step float64) []Key {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		step = DefaultMinStep
	}
	var out []Key
	for i := 0; ; i++ {
		low := round(float64(i) * step)
		if low >= MaxScore {
			break
		}
		high := math.Min(round(float64(i+1)*step), MaxScore)
		out = append(out, Key{Low: low, High: high})
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*keyPrecision) / keyPrecision
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
