package gateways

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrLocationOutage is returned while an injected location-risk outage is active.
var ErrLocationOutage = errors.New("location risk outage")

// Static location risk model parameters. Real crime-data scoring is out of
// scope; this mirrors the route-deviation + area + time-of-day placeholder.
const (
	locationDefaultRisk   = 10.0
	routeDeviationRisk    = 15.0
	areaSafetyRisk        = 5.0
	nightTimeRisk         = 20.0
	dayTimeRisk           = 5.0
	locationRiskCeiling   = 40.0
	nightStartHour        = 22
	nightEndHour          = 5
)

// StaticLocationRisk is a deterministic LocationRisk stub combining a fixed
// route-deviation component, a fixed area component, and a time-of-day
// component keyed to the slice capture hour.
type StaticLocationRisk struct {
	rng        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
	outage     outage
}

// LocationRiskOption configures a StaticLocationRisk.
type LocationRiskOption func(*StaticLocationRisk)

// WithLocationLatency simulates lookup latency in [min,max).
func WithLocationLatency(min, max time.Duration) LocationRiskOption {
	return func(l *StaticLocationRisk) {
		if min >= 0 && max > min {
			l.minLatency = min
			l.maxLatency = max
			l.rng = rand.New(rand.NewSource(4)) //nolint:gosec // simulated latency only
		}
	}
}

// WithLocationOutage makes the next n Score calls fail.
func WithLocationOutage(n int) LocationRiskOption {
	return func(l *StaticLocationRisk) {
		l.outage.set(n)
	}
}

// NewStaticLocationRisk creates the stub location scorer.
func NewStaticLocationRisk(opts ...LocationRiskOption) *StaticLocationRisk {
	l := &StaticLocationRisk{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Score rates the sample on [0,100]. A zero-valued coordinate pair is treated
// as a missing fix and yields the default low risk.
func (l *StaticLocationRisk) Score(ctx context.Context, lat, lon float64, routeRef string, ts time.Time) (float64, error) {
	if err := simulateLatency(ctx, l.rng, l.minLatency, l.maxLatency); err != nil {
		return 0, err
	}
	if l.outage.trip() {
		return 0, ErrLocationOutage
	}

	if lat == 0 && lon == 0 {
		return locationDefaultRisk, nil
	}

	timeRisk := dayTimeRisk
	hour := ts.Hour()
	if hour >= nightStartHour || hour <= nightEndHour {
		timeRisk = nightTimeRisk
	}

	total := routeDeviationRisk + areaSafetyRisk + timeRisk
	if total > locationRiskCeiling {
		total = locationRiskCeiling
	}
	return total, nil
}

// FailNext makes the next n Score calls fail. Test hook.
func (l *StaticLocationRisk) FailNext(n int) {
	l.outage.set(n)
}
