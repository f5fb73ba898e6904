// Package pipeline executes admitted audio slices through the staged
// store-transcribe-score-commit flow, preserving per-session commit order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/domain/classify"
	"github.com/goshield/goshield/internal/domain/escalate"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/internal/gateways"
	"github.com/goshield/goshield/internal/registry"
	"github.com/goshield/goshield/internal/retry"
	"github.com/goshield/goshield/pkg/logger"
	"github.com/goshield/goshield/pkg/metrics"
)

// Stage names used in logs and metric labels.
const (
	stageStore      = "store"
	stageTranscribe = "transcribe"
	stageThreat     = "threat"
	stageLocation   = "location"
	stageDriver     = "driver"
)

// Degraded-factor labels recorded on assessments.
const (
	factorTranscription = "transcription"
	factorThreat        = "threat"
	factorLocation      = "location"
	factorDriver        = "driver"
)

// Factor score substituted when a scoring dependency exhausts its retries.
const fallbackFactorScore = 50.0

// Number of recent assessments whose audio references back an evidence kit.
const defaultEvidenceDepth = 8

// StagePolicies carries the per-dependency retry budgets.
type StagePolicies struct {
	Store       retry.Policy
	Transcribe  retry.Policy
	Threat      retry.Policy
	Location    retry.Policy
	Driver      retry.Policy
	Persistence retry.Policy
}

// DefaultStagePolicies mirrors the configuration defaults.
func DefaultStagePolicies() StagePolicies {
	base := 200 * time.Millisecond
	return StagePolicies{
		Store:       retry.Policy{Attempts: 3, BaseDelay: base, Timeout: 5 * time.Second},
		Transcribe:  retry.Policy{Attempts: 3, BaseDelay: base, Timeout: 10 * time.Second},
		Threat:      retry.Policy{Attempts: 2, BaseDelay: base, Timeout: 8 * time.Second},
		Location:    retry.Policy{Attempts: 2, BaseDelay: base, Timeout: 3 * time.Second},
		Driver:      retry.Policy{Attempts: 2, BaseDelay: base, Timeout: 3 * time.Second},
		Persistence: retry.Policy{Attempts: 5, BaseDelay: time.Second},
	}
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Storage     gateways.Storage
	Transcriber gateways.Transcription
	Threat      gateways.ThreatScorer
	Location    gateways.LocationRisk
	Driver      gateways.DriverHistory
	Classifier  *classify.Classifier
	Escalator   *escalate.Escalator
	Assessments repository.AssessmentRepository
}

// Pipeline runs slices through their stages. Stages of different slices run
// concurrently; only commits serialize, through the session's commit gate.
type Pipeline struct {
	deps     Deps
	policies StagePolicies

	// sem caps in-flight external calls across all sessions.
	sem *semaphore.Weighted

	evidenceDepth int
	languageHint  string

	queue     *persistQueue
	queueSize int
	logger    logger.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStagePolicies overrides the per-stage retry budgets.
func WithStagePolicies(p StagePolicies) Option {
	return func(pl *Pipeline) {
		pl.policies = p
	}
}

// WithMaxConcurrentCalls caps in-flight external calls across all sessions.
func WithMaxConcurrentCalls(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithEvidenceDepth sets how many recent assessments back an evidence kit.
func WithEvidenceDepth(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.evidenceDepth = n
		}
	}
}

// WithLanguageHint sets the default transcription language hint, used when a
// session's meta carries none.
func WithLanguageHint(hint string) Option {
	return func(pl *Pipeline) {
		pl.languageHint = hint
	}
}

// WithRetryQueueSize bounds the background persistence retry queue.
func WithRetryQueueSize(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.queueSize = n
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) {
		if now != nil {
			pl.now = now
		}
	}
}

// New creates a Pipeline.
func New(deps Deps, opts ...Option) *Pipeline {
	pl := &Pipeline{
		deps:          deps,
		policies:      DefaultStagePolicies(),
		sem:           semaphore.NewWeighted(64),
		evidenceDepth: defaultEvidenceDepth,
		languageHint:  "en-US",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(pl)
	}
	if pl.logger == nil {
		pl.logger = logger.Get().Named("pipeline")
	}
	pl.queue = newPersistQueue(deps.Assessments, pl.queueSize, pl.policies.Persistence, pl.logger)
	return pl
}

// Start launches the background persistence retry worker.
func (p *Pipeline) Start() {
	p.queue.start()
}

// Stop drains and stops the background worker.
func (p *Pipeline) Stop() {
	p.queue.stop()
}

// Submit runs one slice through the pipeline and blocks until it commits,
// fails, or is drained. On success the committed assessment is returned. A
// non-nil assessment may accompany ErrPersistenceFailed: session state has
// advanced and the append is being retried in the background.
func (p *Pipeline) Submit(ctx context.Context, sess *registry.Session, slice model.AudioSlice) (*model.RiskAssessment, error) {
	if err := sess.Admit(slice.Seq); err != nil {
		switch {
		case errors.Is(err, registry.ErrStaleSlice):
			metrics.RecordSliceStale()
		default:
			metrics.RecordSliceRejected()
		}
		return nil, err
	}
	metrics.RecordSliceAdmitted()
	metrics.UpdateSlicesInFlight(sess.Inflight())

	ref, err := p.store(ctx, sess, slice)
	if err != nil {
		return nil, p.failSlice(ctx, sess, slice.Seq, err)
	}

	tr := p.transcribe(ctx, sess, ref)

	scores := p.scoreFactors(ctx, sess, slice, tr)

	return p.commit(ctx, sess, slice, ref, tr, scores)
}

// store persists the raw payload. Exhaustion fails the slice.
func (p *Pipeline) store(ctx context.Context, sess *registry.Session, slice model.AudioSlice) (string, error) {
	var ref string
	start := p.now()
	err := retry.Do(ctx, p.policies.Store, func(int) {
		metrics.RecordStageRetry(stageStore)
	}, func(ctx context.Context) error {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return retry.Permanent(err)
		}
		defer p.sem.Release(1)
		r, err := p.deps.Storage.Put(ctx, slice.SessionID, slice.Seq, slice.Payload, gateways.StorageMeta{
			CapturedAt: slice.CapturedAt,
			Lat:        slice.Lat,
			Lon:        slice.Lon,
		})
		if err != nil {
			return err
		}
		ref = r
		return nil
	})
	metrics.RecordStageLatency(stageStore, float64(p.now().Sub(start).Milliseconds()))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return ref, nil
}

// transcribe converts stored audio to text. Exhaustion degrades to an empty
// transcript rather than failing the slice.
func (p *Pipeline) transcribe(ctx context.Context, sess *registry.Session, ref string) model.TranscriptionResult {
	hint := sess.Meta().LanguageHint
	if hint == "" {
		hint = p.languageHint
	}

	var out gateways.Transcript
	start := p.now()
	err := retry.Do(ctx, p.policies.Transcribe, func(int) {
		metrics.RecordStageRetry(stageTranscribe)
	}, func(ctx context.Context) error {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return retry.Permanent(err)
		}
		defer p.sem.Release(1)
		t, err := p.deps.Transcriber.Transcribe(ctx, ref, hint)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	latency := p.now().Sub(start)
	metrics.RecordStageLatency(stageTranscribe, float64(latency.Milliseconds()))

	res := model.TranscriptionResult{
		Text:       out.Text,
		Confidence: out.Confidence,
		Latency:    latency,
	}
	if err != nil {
		metrics.RecordStageDegradation(stageTranscribe)
		p.logger.Warn(ctx, "transcription degraded",
			logger.String("sessionID", sess.ID()),
			logger.Error(err),
		)
		res.Text = ""
		res.Confidence = 0
		res.Degraded = true
	}
	return res
}

// scoreFactors runs the three factor scorers concurrently. Each degrades to
// the fallback score on exhaustion; none can fail the slice.
func (p *Pipeline) scoreFactors(ctx context.Context, sess *registry.Session, slice model.AudioSlice, tr model.TranscriptionResult) model.FactorScores {
	var scores model.FactorScores
	var threatDegraded, locationDegraded, driverDegraded bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// No speech, no threat signal. The empty transcript is scored zero
		// without calling the scorer.
		if tr.Text == "" {
			scores.Threat = 0
			return nil
		}
		scores.Threat, threatDegraded = p.scoreOne(gctx, stageThreat, p.policies.Threat, func(ctx context.Context) (float64, error) {
			return p.deps.Threat.Score(ctx, tr.Text)
		})
		return nil
	})
	g.Go(func() error {
		scores.Location, locationDegraded = p.scoreOne(gctx, stageLocation, p.policies.Location, func(ctx context.Context) (float64, error) {
			return p.deps.Location.Score(ctx, slice.Lat, slice.Lon, sess.Meta().RouteRef, slice.CapturedAt)
		})
		return nil
	})
	g.Go(func() error {
		scores.Driver, driverDegraded = p.scoreOne(gctx, stageDriver, p.policies.Driver, func(ctx context.Context) (float64, error) {
			return p.deps.Driver.Lookup(ctx, sess.Meta().DriverID)
		})
		return nil
	})
	_ = g.Wait()

	if tr.Degraded {
		scores.DegradedFactors = append(scores.DegradedFactors, factorTranscription)
	}
	if threatDegraded {
		scores.DegradedFactors = append(scores.DegradedFactors, factorThreat)
	}
	if locationDegraded {
		scores.DegradedFactors = append(scores.DegradedFactors, factorLocation)
	}
	if driverDegraded {
		scores.DegradedFactors = append(scores.DegradedFactors, factorDriver)
	}
	return scores
}

// scoreOne retries a single factor call and reports whether it degraded.
func (p *Pipeline) scoreOne(ctx context.Context, stage string, pol retry.Policy, fn func(ctx context.Context) (float64, error)) (float64, bool) {
	var score float64
	start := p.now()
	err := retry.Do(ctx, pol, func(int) {
		metrics.RecordStageRetry(stage)
	}, func(ctx context.Context) error {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return retry.Permanent(err)
		}
		defer p.sem.Release(1)
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		score = v
		return nil
	})
	metrics.RecordStageLatency(stage, float64(p.now().Sub(start).Milliseconds()))
	if err != nil {
		metrics.RecordStageDegradation(stage)
		return fallbackFactorScore, true
	}
	return score, false
}

// commit serializes through the session gate: classify, observe escalation,
// advance the cursor, persist.
func (p *Pipeline) commit(ctx context.Context, sess *registry.Session, slice model.AudioSlice, ref string, tr model.TranscriptionResult, scores model.FactorScores) (*model.RiskAssessment, error) {
	waitStart := p.now()
	if err := sess.WaitTurn(ctx, slice.Seq); err != nil {
		if errors.Is(err, registry.ErrStaleSlice) {
			metrics.RecordSliceStale()
		}
		return nil, err
	}
	metrics.RecordCommitWait(float64(p.now().Sub(waitStart).Milliseconds()))

	res := p.deps.Classifier.Classify(scores.Threat, scores.Location, scores.Driver)
	a := &model.RiskAssessment{
		ID:              uuid.NewString(),
		SessionID:       sess.ID(),
		Seq:             slice.Seq,
		StorageRef:      ref,
		Transcript:      tr.Text,
		Confidence:      tr.Confidence,
		ThreatScore:     scores.Threat,
		LocationScore:   scores.Location,
		DriverScore:     scores.Driver,
		TotalScore:      res.Total,
		Level:           res.Level,
		ActionRequired:  res.ActionRequired,
		Degraded:        len(scores.DegradedFactors) > 0,
		DegradedFactors: scores.DegradedFactors,
		Notification:    classify.Notification(res.Level),
		CreatedAt:       p.now(),
	}

	decision := sess.Tracker().Observe(res.Level)
	if decision.Escalate {
		metrics.RecordEscalation()
		if inc, err := p.deps.Escalator.Raise(ctx, sess.ID(), sess.Meta(), a, sess.History(p.evidenceDepth)); err != nil {
			metrics.RecordIncidentSaveError()
			p.logger.Error(ctx, "incident creation failed",
				logger.String("sessionID", sess.ID()),
				logger.Uint64("seq", slice.Seq),
				logger.Error(err),
			)
		} else {
			metrics.RecordIncidentCreated()
			p.logger.Warn(ctx, "risk escalated",
				logger.String("sessionID", sess.ID()),
				logger.String("incidentID", inc.ID),
				logger.Float64("totalScore", a.TotalScore),
			)
		}
	}
	if decision.Resolved {
		metrics.RecordEpisodeResolved()
		p.logger.Info(ctx, "escalation episode resolved",
			logger.String("sessionID", sess.ID()),
			logger.Uint64("seq", slice.Seq),
		)
	}

	sess.Commit(slice.Seq, a, decision.Escalate)
	metrics.RecordSliceCommitted()
	metrics.RecordAssessment(string(res.Level))
	if a.Degraded {
		metrics.RecordDegradedAssessment()
	}
	metrics.UpdateSlicesInFlight(sess.Inflight())

	if err := p.deps.Assessments.Append(ctx, a); err != nil {
		metrics.RecordPersistenceFailure()
		p.logger.Error(ctx, "assessment persistence failed, queueing retry",
			logger.String("sessionID", sess.ID()),
			logger.Uint64("seq", slice.Seq),
			logger.Error(err),
		)
		p.queue.enqueue(a)
		return a, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return a, nil
}

// failSlice consumes the sequence number of a slice that produced no
// assessment. The cursor still advances at the slice's turn so later slices
// do not stall behind it.
func (p *Pipeline) failSlice(ctx context.Context, sess *registry.Session, seq uint64, cause error) error {
	metrics.RecordSliceFailed()

	if ctx.Err() != nil {
		sess.Abandon(seq)
		metrics.UpdateSlicesInFlight(sess.Inflight())
		return cause
	}

	if err := sess.WaitTurn(ctx, seq); err != nil {
		metrics.UpdateSlicesInFlight(sess.Inflight())
		return cause
	}
	sess.Fail(seq)
	metrics.UpdateSlicesInFlight(sess.Inflight())

	p.logger.Error(ctx, "slice failed without assessment",
		logger.String("sessionID", sess.ID()),
		logger.Uint64("seq", seq),
		logger.Error(cause),
	)
	return cause
}
