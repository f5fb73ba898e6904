// Package classify computes the total risk score and level for a slice.
//
// The classifier is a pure function of its three factor inputs: identical
// inputs always yield identical output, which keeps reprocessing after a
// transient failure idempotent.
package classify

import (
	"math"

	"github.com/goshield/goshield/internal/domain/model"
)

// Rounding selects how the weighted total is turned into a score.
type Rounding string

// Supported rounding rules.
const (
	RoundNearest Rounding = "nearest"
	RoundFloor   Rounding = "floor"
)

// Default weights and thresholds. The threat transcript dominates; location
// and driver history refine it.
const (
	defaultThreatWeight   = 0.6
	defaultLocationWeight = 0.3
	defaultDriverWeight   = 0.1
	defaultMediumThreshold = 40.0
	defaultHighThreshold   = 70.0
	maxScore               = 100.0
)

// Result is the classification outcome for one slice.
type Result struct {
	Total          float64
	Level          model.RiskLevel
	ActionRequired bool
}

// Classifier combines factor scores into a total score and risk level.
type Classifier struct {
	threatWeight   float64
	locationWeight float64
	driverWeight   float64
	mediumThreshold float64
	highThreshold   float64
	rounding        Rounding
}

// New creates a Classifier with default weights, thresholds and rounding.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		threatWeight:    defaultThreatWeight,
		locationWeight:  defaultLocationWeight,
		driverWeight:    defaultDriverWeight,
		mediumThreshold: defaultMediumThreshold,
		highThreshold:   defaultHighThreshold,
		rounding:        RoundNearest,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify computes the weighted total and level for the given factor scores.
// Inputs outside [0,100] are clamped before weighting.
func (c *Classifier) Classify(threat, location, driver float64) Result {
	threat = clamp(threat)
	location = clamp(location)
	driver = clamp(driver)

	total := c.threatWeight*threat + c.locationWeight*location + c.driverWeight*driver

	switch c.rounding {
	case RoundFloor:
		total = math.Floor(total)
	default:
		total = math.Round(total)
	}
	total = clamp(total)

	level := c.levelFor(total)

	return Result{
		Total:          total,
		Level:          level,
		ActionRequired: level.Escalates(),
	}
}

// levelFor maps a total score into a band. Bands are half-open and
// boundary-inclusive on the low end: Low [0,medium), Medium [medium,high),
// High [high,100].
func (c *Classifier) levelFor(total float64) model.RiskLevel {
	switch {
	case total >= c.highThreshold:
		return model.RiskHigh
	case total >= c.mediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Notification returns the passenger confirmation prompt for a level, or an
// empty string when no action is required.
func Notification(level model.RiskLevel) string {
	switch level {
	case model.RiskMedium:
		return "We see your risk is at medium level, help me to confirm this by giving yes/no"
	case model.RiskHigh:
		return "We see your risk is at high level, help me to confirm this by giving yes/no"
	default:
		return ""
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}
