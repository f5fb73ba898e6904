// Package gateways declares the external capability contracts consumed by the
// session pipeline, plus in-memory simulated implementations used for local
// runs and deterministic tests.
package gateways

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"
)

// StorageMeta carries slice metadata alongside the raw payload.
type StorageMeta struct {
	CapturedAt time.Time
	Lat        float64
	Lon        float64
}

// Storage persists raw audio payloads. Put must be safely retryable:
// writing the same (sessionID, seq) key again returns the same reference.
type Storage interface {
	Put(ctx context.Context, sessionID string, seq uint64, payload []byte, meta StorageMeta) (string, error)
}

// Transcript is the outcome of a transcription call.
type Transcript struct {
	Text       string
	Confidence float64
}

// Transcription converts stored audio into text.
type Transcription interface {
	Transcribe(ctx context.Context, audioRef string, languageHint string) (Transcript, error)
}

// ThreatScorer rates a transcript for passenger-safety threats on [0,100].
type ThreatScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// LocationRisk rates a geolocation sample against the expected route on [0,100].
type LocationRisk interface {
	Score(ctx context.Context, lat, lon float64, routeRef string, ts time.Time) (float64, error)
}

// DriverHistory looks up a driver's historical risk score on [0,100].
// An unknown driver yields a default score, not an error.
type DriverHistory interface {
	Lookup(ctx context.Context, driverID string) (float64, error)
}

// simulateLatency sleeps for a value in [min,max), honoring ctx.
// A nil rng or non-positive range is a no-op, which keeps tests fast.
func simulateLatency(ctx context.Context, rng *rand.Rand, min, max time.Duration) error {
	if rng == nil || max <= min || min < 0 {
		return nil
	}
	d := min + time.Duration(rng.Int63n(int64(max-min)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// outage injects a bounded run of failures for retry-path tests.
type outage struct {
	remaining atomic.Int64
}

func (o *outage) set(n int) {
	o.remaining.Store(int64(n))
}

// trip reports whether this call should fail, consuming one failure.
func (o *outage) trip() bool {
	for {
		v := o.remaining.Load()
		if v <= 0 {
			return false
		}
		if o.remaining.CompareAndSwap(v, v-1) {
			return true
		}
	}
}
