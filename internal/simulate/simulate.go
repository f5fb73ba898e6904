// Package simulate generates deterministic ride scenarios and drives them
// through the service boundary, for load runs and end-to-end verification.
package simulate

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/goshield/goshield/internal/domain/model"
)

// Built-in transcript pools. Calm lines carry no threat terms; threatening
// lines score high enough to cross the Medium band with default weights.
var (
	calmLines = []string{
		"traffic is light today",
		"we should be there in ten minutes",
		"the music is a bit loud",
		"nice weather for a drive",
		"take the next exit please",
	}
	threatLines = []string{
		"shut up or I will hurt you",
		"there is a knife, help",
		"stop the car or I will hurt you",
	}
)

// Phase is one stretch of a scenario with a fixed mood.
type Phase struct {
	// Threatening selects the transcript pool.
	Threatening bool

	// Slices is the number of audio slices in the phase.
	Slices int
}

// Scenario is a deterministic ride script.
type Scenario struct {
	Name   string
	Meta   model.SessionMeta
	Phases []Phase

	// Seed drives delivery shuffling and duplicate selection.
	Seed int64

	// Window bounds how many slices are in flight at once. It must stay at
	// or below the session in-flight limit or deliveries are rejected for
	// capacity.
	Window int

	// Duplicates is the number of extra re-deliveries injected per run.
	Duplicates int

	// Start anchors the capture timestamps.
	Start time.Time
}

// DefaultScenario scripts a ride that turns threatening once and calms down:
// expect exactly one incident, a resolved episode, and a Low final level.
func DefaultScenario() Scenario {
	return Scenario{
		Name: "threatening-middle",
		Meta: model.SessionMeta{
			DriverID:    "driver-" + uuid.NewString()[:8],
			RideID:      "ride-" + uuid.NewString()[:8],
			PassengerID: "pass-" + uuid.NewString()[:8],
			RouteRef:    "route-sim",
		},
		Phases: []Phase{
			{Threatening: false, Slices: 3},
			{Threatening: true, Slices: 2},
			{Threatening: false, Slices: 4},
		},
		Seed:       1,
		Window:     8,
		Duplicates: 2,
		Start:      time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC),
	}
}

// ExpectedIncidents counts the escalation episodes the script should open.
func (s Scenario) ExpectedIncidents(resolveAfterLows int) int {
	incidents := 0
	escalated := false
	lows := 0
	for _, ph := range s.Phases {
		for i := 0; i < ph.Slices; i++ {
			if ph.Threatening {
				lows = 0
				if !escalated {
					escalated = true
					incidents++
				}
				continue
			}
			if escalated {
				lows++
				if lows >= resolveAfterLows {
					escalated = false
					lows = 0
				}
			}
		}
	}
	return incidents
}

// Slices expands the scenario into capture-ordered audio slices. The session
// id is filled in by the runner after activation.
func (s Scenario) Slices() []model.AudioSlice {
	rng := rand.New(rand.NewSource(s.Seed)) //nolint:gosec // deterministic scripting
	var out []model.AudioSlice
	seq := uint64(0)
	at := s.Start
	for _, ph := range s.Phases {
		pool := calmLines
		if ph.Threatening {
			pool = threatLines
		}
		for i := 0; i < ph.Slices; i++ {
			out = append(out, model.AudioSlice{
				Seq:        seq,
				Payload:    []byte(pool[rng.Intn(len(pool))]),
				CapturedAt: at,
				Lat:        37.77,
				Lon:        -122.42,
			})
			seq++
			at = at.Add(10 * time.Second)
		}
	}
	return out
}

// DeliveryOrder returns slice indices shuffled within windows, modeling
// out-of-order arrival bounded by the in-flight window.
func (s Scenario) DeliveryOrder(n int) []int {
	rng := rand.New(rand.NewSource(s.Seed + 1)) //nolint:gosec // deterministic scripting
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	window := s.Window
	if window <= 1 {
		return order
	}
	for lo := 0; lo < n; lo += window {
		hi := lo + window
		if hi > n {
			hi = n
		}
		rng.Shuffle(hi-lo, func(i, j int) {
			order[lo+i], order[lo+j] = order[lo+j], order[lo+i]
		})
	}
	return order
}

func (s Scenario) String() string {
	total := 0
	for _, ph := range s.Phases {
		total += ph.Slices
	}
	return fmt.Sprintf("%s: %d phases, %d slices, window %d", s.Name, len(s.Phases), total, s.Window)
}
