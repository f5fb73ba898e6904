package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goshield/goshield/internal/app"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/internal/registry"
	"github.com/goshield/goshield/pkg/logger"
)

// Report is the outcome of one scenario run.
type Report struct {
	SessionID string
	Submitted int
	Committed int
	Stale     int
	Failed    int
	Incidents int
	Summary   model.SessionSummary
}

// Verify checks the run against the scenario's expectations.
func (r Report) Verify(sc Scenario, resolveAfterLows int) error {
	if want := sc.ExpectedIncidents(resolveAfterLows); r.Incidents != want {
		return fmt.Errorf("incidents: got %d, want %d", r.Incidents, want)
	}
	total := 0
	for _, ph := range sc.Phases {
		total += ph.Slices
	}
	if r.Committed != total {
		return fmt.Errorf("committed slices: got %d, want %d", r.Committed, total)
	}
	if r.Stale != sc.Duplicates {
		return fmt.Errorf("stale deliveries: got %d, want %d", r.Stale, sc.Duplicates)
	}
	if r.Failed != 0 {
		return fmt.Errorf("failed slices: got %d, want 0", r.Failed)
	}
	return nil
}

// Runner drives scenarios through the service boundary.
type Runner struct {
	svc    *app.Service
	logger logger.Logger
}

// NewRunner creates a Runner over a started service.
func NewRunner(svc *app.Service, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Get().Named("simulate")
	}
	return &Runner{svc: svc, logger: log}
}

// Run activates a session, delivers the scenario's slices shuffled within
// their windows, closes the session, and reports what happened.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Report, error) {
	id, err := r.svc.Activate(ctx, sc.Meta)
	if err != nil {
		return Report{}, fmt.Errorf("activate scenario session: %w", err)
	}

	slices := sc.Slices()
	for i := range slices {
		slices[i].SessionID = id
	}
	order := sc.DeliveryOrder(len(slices))

	var committed, stale, failed atomic.Int64
	deliver := func(s model.AudioSlice) {
		_, err := r.svc.SubmitSlice(ctx, s)
		switch {
		case err == nil:
			committed.Add(1)
		case errors.Is(err, registry.ErrStaleSlice):
			stale.Add(1)
		default:
			failed.Add(1)
			r.logger.Warn(ctx, "scenario slice failed",
				logger.Uint64("seq", s.Seq),
				logger.Error(err),
			)
		}
	}

	// Slices within a window are delivered concurrently and out of order;
	// windows are delivered back to back.
	window := sc.Window
	if window <= 0 {
		window = 1
	}
	submitted := 0
	for lo := 0; lo < len(order); lo += window {
		hi := lo + window
		if hi > len(order) {
			hi = len(order)
		}
		var wg sync.WaitGroup
		for _, idx := range order[lo:hi] {
			wg.Add(1)
			submitted++
			go func(s model.AudioSlice) {
				defer wg.Done()
				deliver(s)
			}(slices[idx])
		}
		wg.Wait()
	}

	// Re-deliveries of already committed slices must drain as stale.
	for i := 0; i < sc.Duplicates && len(slices) > 0; i++ {
		deliver(slices[i%len(slices)])
		submitted++
	}

	if err := r.svc.CloseSession(ctx, id); err != nil {
		return Report{}, fmt.Errorf("close scenario session: %w", err)
	}
	summary, err := r.svc.SessionSummary(ctx, id)
	if err != nil {
		return Report{}, fmt.Errorf("scenario summary: %w", err)
	}
	incidents, err := r.svc.OpenIncidents(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("scenario incidents: %w", err)
	}
	count := 0
	for _, inc := range incidents {
		if inc.SessionID == id {
			count++
		}
	}

	return Report{
		SessionID: id,
		Submitted: submitted,
		Committed: int(committed.Load()),
		Stale:     int(stale.Load()),
		Failed:    int(failed.Load()),
		Incidents: count,
		Summary:   summary,
	}, nil
}
