// Package score computes the 0-100 kayakability suitability metric. Two
// scoring strategies exist: a simple range-based formula over discharge and
// gage height, and a weighted multi-factor formula that also penalizes wind
// and air temperature. Both are pure functions of their inputs.
package score

import (
	"fmt"
	"math"

	"kayakcast/internal/models"
)

// Conditions are the measurements being scored. Nil means the measurement is
// unavailable. Missing discharge or gage height always scores 0; missing
// wind or temperature takes full factor credit in the weighted variant
// (unknown weather never penalizes).
type Conditions struct {
	DischargeCFS *float64
	GageHeightFt *float64
	WindSpeedMPH *float64
	TempF        *float64
}

// Scorer maps conditions at a site to an integer score in [0,100].
type Scorer interface {
	Score(c Conditions, site models.Site) int
	Name() string
}

// Range is an inclusive ideal interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Config selects and parameterizes a scoring strategy.
type Config struct {
	Variant string // "simple" or "weighted"
	Wind    Range  // ideal wind speed, mph (weighted variant)
	Temp    Range  // ideal air temperature, F (weighted variant)
}

// DefaultConfig returns the simple variant with the stock weather ranges.
func DefaultConfig() Config {
	return Config{
		Variant: "simple",
		Wind:    Range{Min: 0, Max: 12},
		Temp:    Range{Min: 60, Max: 85},
	}
}

// New builds the configured scorer.
func New(cfg Config) (Scorer, error) {
	switch cfg.Variant {
	case "", "simple":
		return SimpleScorer{}, nil
	case "weighted":
		return WeightedScorer{Wind: cfg.Wind, Temp: cfg.Temp}, nil
	default:
		return nil, fmt.Errorf("unknown scoring variant %q", cfg.Variant)
	}
}

// SimpleScorer awards up to 50 points each for discharge and gage height
// within the site's ideal ranges, with a power-law falloff outside, plus up
// to 10 bonus points when both land in range simultaneously, scaled by
// proximity to the range midpoints.
type SimpleScorer struct{}

func (SimpleScorer) Name() string { return "simple" }

func (SimpleScorer) Score(c Conditions, site models.Site) int {
	if c.DischargeCFS == nil || c.GageHeightFt == nil {
		return 0
	}
	discharge, gage := *c.DischargeCFS, *c.GageHeightFt
	dischargeRange := Range{Min: site.DischargeMin, Max: site.DischargeMax}
	gageRange := Range{Min: site.GageMin, Max: site.GageMax}

	total := rangeScore(discharge, dischargeRange, 50) + rangeScore(gage, gageRange, 50)

	if dischargeRange.contains(discharge) && gageRange.contains(gage) {
		bonus := 10 * (midpointProximity(discharge, dischargeRange) + midpointProximity(gage, gageRange)) / 2
		total += bonus
	}

	return clampScore(total)
}

// rangeScore awards full points inside the inclusive range and degrades with
// the square of the relative distance outside it: full*(v/min)^2 below,
// full*(max/v)^2 above.
func rangeScore(v float64, r Range, full float64) float64 {
	if v <= 0 {
		return 0
	}
	switch {
	case v < r.Min:
		s := full * math.Pow(v/r.Min, 2)
		return math.Min(s, full)
	case v > r.Max:
		s := full * math.Pow(r.Max/v, 2)
		return math.Min(s, full)
	default:
		return full
	}
}

// midpointProximity is 1 at the range midpoint and 0 at either bound.
func midpointProximity(v float64, r Range) float64 {
	half := (r.Max - r.Min) / 2
	if half <= 0 {
		return 1
	}
	mid := r.Min + half
	p := 1 - math.Abs(v-mid)/half
	if p < 0 {
		return 0
	}
	return p
}

// Factor weights for the weighted variant.
const (
	weightDischarge = 0.40
	weightGage      = 0.30
	weightWind      = 0.20
	weightTemp      = 0.10

	// Over-range exponential decay rate. Above-range conditions are
	// penalized more steeply than below-range: too much water is a safety
	// problem, not just a quality problem.
	overRangeDecay = 3.0
)

// WeightedScorer scores four factors independently on 0-100 curves and
// combines them as a weighted sum: discharge 0.40, gage 0.30, wind 0.20,
// temperature 0.10.
type WeightedScorer struct {
	Wind Range
	Temp Range
}

func (WeightedScorer) Name() string { return "weighted" }

func (w WeightedScorer) Score(c Conditions, site models.Site) int {
	if c.DischargeCFS == nil || c.GageHeightFt == nil {
		return 0
	}

	dischargeFactor := factorScore(*c.DischargeCFS, Range{Min: site.DischargeMin, Max: site.DischargeMax})
	gageFactor := factorScore(*c.GageHeightFt, Range{Min: site.GageMin, Max: site.GageMax})

	windFactor := 100.0
	if c.WindSpeedMPH != nil {
		windFactor = factorScore(*c.WindSpeedMPH, w.Wind)
	}
	tempFactor := 100.0
	if c.TempF != nil {
		tempFactor = factorScore(*c.TempF, w.Temp)
	}

	total := weightDischarge*dischargeFactor +
		weightGage*gageFactor +
		weightWind*windFactor +
		weightTemp*tempFactor

	return clampScore(total)
}

// factorScore is 100 inside the inclusive range, follows a power curve
// below it, and decays exponentially above it.
func factorScore(v float64, r Range) float64 {
	switch {
	case v < r.Min:
		if v <= 0 || r.Min <= 0 {
			return 0
		}
		s := 100 * math.Pow(v/r.Min, 2)
		return math.Min(s, 100)
	case v > r.Max:
		if r.Max <= 0 {
			return 0
		}
		return 100 * math.Exp(-overRangeDecay*(v-r.Max)/r.Max)
	default:
		return 100
	}
}

func clampScore(v float64) int {
	s := int(math.Round(v))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
