// Package escalate decides, exactly once per escalation episode, when a
// session's risk history must materialize a durable incident.
package escalate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/pkg/logger"
)

// State of a session's escalation machine.
type State string

// Escalation states.
const (
	Quiescent State = "Quiescent"
	Escalated State = "Escalated"
)

// Default number of consecutive Low assessments that resolve an episode.
const defaultResolveAfterLows = 3

// Assessments with a total at or above this are graded Critical.
const criticalScoreFloor = 90.0

// Summary transcripts are truncated to keep incident records compact.
const summaryExcerptLen = 140

// Decision is the outcome of observing one assessment.
type Decision struct {
	// Escalate is true on the single Quiescent-to-Escalated transition of an
	// episode; it is the only trigger for incident creation.
	Escalate bool

	// Resolved is true when this observation completed the consecutive-Low
	// run that ends an episode.
	Resolved bool

	State State
}

// Tracker is the per-session escalation state machine. It is mutated only
// under the session's commit lock, which is what makes the exactly-once
// transition structural: two slices of one session can never both observe
// Quiescent.
type Tracker struct {
	state        State
	lowStreak    int
	resolveAfter int
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithResolveAfter sets how many consecutive Low assessments resolve an episode.
func WithResolveAfter(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.resolveAfter = n
		}
	}
}

// NewTracker creates a Tracker in the Quiescent state.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		state:        Quiescent,
		resolveAfter: defaultResolveAfterLows,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe feeds one committed assessment level through the state machine.
func (t *Tracker) Observe(level model.RiskLevel) Decision {
	switch t.state {
	case Quiescent:
		if level.Escalates() {
			t.state = Escalated
			t.lowStreak = 0
			return Decision{Escalate: true, State: t.state}
		}
		return Decision{State: t.state}

	case Escalated:
		if level == model.RiskLow {
			t.lowStreak++
			if t.lowStreak >= t.resolveAfter {
				t.state = Quiescent
				t.lowStreak = 0
				return Decision{Resolved: true, State: t.state}
			}
			return Decision{State: t.state}
		}
		// Any non-Low assessment restarts the resolution run. It does NOT
		// create a new incident: the episode is still open.
		t.lowStreak = 0
		return Decision{State: t.state}
	}

	return Decision{State: t.state}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Escalator materializes incidents from escalation decisions.
type Escalator struct {
	repo   repository.IncidentRepository
	logger logger.Logger
	now    func() time.Time
}

// Option configures an Escalator.
type Option func(*Escalator)

// WithLogger sets a custom logger for the escalator.
func WithLogger(l logger.Logger) Option {
	return func(e *Escalator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(e *Escalator) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Escalator writing through repo.
func New(repo repository.IncidentRepository, opts ...Option) *Escalator {
	e := &Escalator{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("escalate")
	}
	return e
}

// Raise builds and persists the incident for one escalation event. The
// evidence kit bundles the triggering transcript, the factor scores, and the
// audio references committed so far in the session.
func (e *Escalator) Raise(ctx context.Context, sessionID string, meta model.SessionMeta, trigger *model.RiskAssessment, history []*model.RiskAssessment) (*model.Incident, error) {
	now := e.now()
	incidentID := uuid.NewString()
	kitID := uuid.NewString()

	refs := make([]string, 0, len(history)+1)
	for _, a := range history {
		if a.StorageRef != "" {
			refs = append(refs, a.StorageRef)
		}
	}
	if trigger.StorageRef != "" {
		refs = append(refs, trigger.StorageRef)
	}

	inc := &model.Incident{
		ID:            incidentID,
		EvidenceKitID: kitID,
		SessionID:     sessionID,
		RideID:        meta.RideID,
		PassengerID:   meta.PassengerID,
		DriverID:      meta.DriverID,
		AssessmentID:  trigger.ID,
		Severity:      severityFor(trigger),
		Urgency:       urgencyFor(trigger.Level),
		Summary:       summarize(trigger),
		Status:        model.IncidentOpen,
		CreatedAt:     now,
	}
	kit := &model.EvidenceKit{
		ID:            kitID,
		IncidentID:    incidentID,
		Transcript:    trigger.Transcript,
		StorageRefs:   refs,
		ThreatScore:   trigger.ThreatScore,
		LocationScore: trigger.LocationScore,
		DriverScore:   trigger.DriverScore,
		TotalScore:    trigger.TotalScore,
		CreatedAt:     now,
	}

	if _, err := e.repo.Save(ctx, inc, kit); err != nil {
		return nil, fmt.Errorf("save incident %s: %w", incidentID, err)
	}

	e.logger.Info(ctx, "incident created",
		logger.String("incidentID", incidentID),
		logger.String("sessionID", sessionID),
		logger.String("severity", string(inc.Severity)),
		logger.Float64("totalScore", trigger.TotalScore),
	)

	return inc, nil
}

func severityFor(a *model.RiskAssessment) model.Severity {
	switch {
	case a.TotalScore >= criticalScoreFloor:
		return model.SeverityCritical
	case a.Level == model.RiskHigh:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

func urgencyFor(level model.RiskLevel) model.Urgency {
	if level == model.RiskHigh {
		return model.UrgencyImmediate
	}
	return model.UrgencyHigh
}

func summarize(a *model.RiskAssessment) string {
	excerpt := a.Transcript
	if len(excerpt) > summaryExcerptLen {
		excerpt = excerpt[:summaryExcerptLen] + "..."
	}
	if excerpt == "" {
		excerpt = "[no speech detected]"
	}
	return fmt.Sprintf("risk escalated to %s (score %.0f) at slice %d: %q", a.Level, a.TotalScore, a.Seq, excerpt)
}
