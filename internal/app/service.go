// Package app wires the session registry, pipeline, classifier, escalator,
// gateways, and repositories into one service boundary.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/config"
	"github.com/goshield/goshield/internal/domain/classify"
	"github.com/goshield/goshield/internal/domain/escalate"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/internal/gateways"
	"github.com/goshield/goshield/internal/pipeline"
	"github.com/goshield/goshield/internal/registry"
	"github.com/goshield/goshield/internal/retry"
	"github.com/goshield/goshield/pkg/logger"
)

// Stats is a point-in-time view of service health for operators.
type Stats struct {
	ActiveSessions int       `json:"active_sessions"`
	TotalSessions  int       `json:"total_sessions"`
	OpenIncidents  int       `json:"open_incidents"`
	StartedAt      time.Time `json:"started_at"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
}

// Service is the application boundary consumed by the HTTP adapter and the
// simulator.
type Service struct {
	cfg    *config.Config
	logger logger.Logger

	storage     gateways.Storage
	transcriber gateways.Transcription
	threat      gateways.ThreatScorer
	location    gateways.LocationRisk
	driver      gateways.DriverHistory
	assessments repository.AssessmentRepository
	incidents   repository.IncidentRepository

	reg  *registry.Registry
	pipe *pipeline.Pipeline

	startedAt time.Time
	started   bool
	mu        sync.Mutex
}

// New creates a Service. Collaborators not overridden by options default to
// the in-memory simulated implementations.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	if s.storage == nil {
		s.storage = gateways.NewMemoryStorage()
	}
	if s.transcriber == nil {
		if ms, ok := s.storage.(*gateways.MemoryStorage); ok {
			s.transcriber = gateways.NewMemoryTranscriber(ms)
		} else {
			s.transcriber = gateways.NewMemoryTranscriber(gateways.NewMemoryStorage())
		}
	}
	if s.threat == nil {
		s.threat = gateways.NewKeywordThreatScorer()
	}
	if s.location == nil {
		s.location = gateways.NewStaticLocationRisk()
	}
	if s.driver == nil {
		s.driver = gateways.NewMemoryDriverHistory()
	}
	if s.assessments == nil {
		s.assessments = repository.NewMemoryAssessmentStore()
	}
	if s.incidents == nil {
		s.incidents = repository.NewMemoryIncidentStore()
	}

	s.reg = registry.New(
		registry.WithInflightLimit(s.cfg.Session.InflightLimit),
		registry.WithMaxActive(s.cfg.Session.MaxActive),
		registry.WithIdleTimeout(s.cfg.Session.IdleTimeout),
		registry.WithResolveAfterLows(s.cfg.Escalation.ResolveAfterLows),
	)

	classifier := classify.New(
		classify.WithWeights(s.cfg.Risk.ThreatWeight, s.cfg.Risk.LocationWeight, s.cfg.Risk.DriverWeight),
		classify.WithThresholds(s.cfg.Risk.MediumThreshold, s.cfg.Risk.HighThreshold),
		classify.WithRounding(classify.Rounding(s.cfg.Risk.Rounding)),
	)
	escalator := escalate.New(s.incidents)

	s.pipe = pipeline.New(pipeline.Deps{
		Storage:     s.storage,
		Transcriber: s.transcriber,
		Threat:      s.threat,
		Location:    s.location,
		Driver:      s.driver,
		Classifier:  classifier,
		Escalator:   escalator,
		Assessments: s.assessments,
	},
		pipeline.WithStagePolicies(stagePolicies(s.cfg)),
		pipeline.WithMaxConcurrentCalls(s.cfg.External.MaxConcurrentCalls),
		pipeline.WithLanguageHint(s.cfg.LanguageHint),
	)

	return s
}

func stagePolicies(cfg *config.Config) pipeline.StagePolicies {
	pol := func(sc config.StageConfig) retry.Policy {
		return retry.Policy{
			Attempts:  sc.Attempts,
			BaseDelay: sc.Backoff,
			Timeout:   sc.Timeout,
		}
	}
	return pipeline.StagePolicies{
		Store:      pol(cfg.Stages.Store),
		Transcribe: pol(cfg.Stages.Transcribe),
		Threat:     pol(cfg.Stages.Threat),
		Location:   pol(cfg.Stages.Location),
		Driver:     pol(cfg.Stages.Driver),
		Persistence: retry.Policy{
			Attempts:  cfg.Persistence.RetryAttempts,
			BaseDelay: cfg.Persistence.RetryBackoff,
		},
	}
}

// Start launches the background workers. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.startedAt = time.Now()
	s.pipe.Start()
	s.reg.StartJanitor()
	s.started = true
	s.logger.Info(ctx, "service started")
	return nil
}

// Stop closes all sessions and drains the background workers.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.reg.Shutdown(ctx)
	s.pipe.Stop()
	s.started = false
	s.logger.Info(ctx, "service stopped")
}

// Activate starts monitoring a ride. One active session per ride+passenger.
func (s *Service) Activate(ctx context.Context, meta model.SessionMeta) (string, error) {
	sess, err := s.reg.Activate(ctx, meta)
	if err != nil {
		return "", err
	}
	return sess.ID(), nil
}

// SubmitSlice runs one audio slice through the pipeline, blocking until the
// slice commits, fails, or is drained.
func (s *Service) SubmitSlice(ctx context.Context, slice model.AudioSlice) (*model.RiskAssessment, error) {
	sess, err := s.reg.Get(slice.SessionID)
	if err != nil {
		return nil, err
	}
	return s.pipe.Submit(ctx, sess, slice)
}

// CloseSession ends monitoring for a session. Idempotent for closed sessions.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	return s.reg.Close(ctx, sessionID)
}

// SessionSummary aggregates a session's risk history.
func (s *Service) SessionSummary(ctx context.Context, sessionID string) (model.SessionSummary, error) {
	sess, err := s.reg.Get(sessionID)
	if err != nil {
		return model.SessionSummary{}, err
	}
	return sess.Summary(), nil
}

// AssessmentsBySession returns a session's persisted assessments in commit order.
func (s *Service) AssessmentsBySession(ctx context.Context, sessionID string) ([]*model.RiskAssessment, error) {
	if _, err := s.reg.Get(sessionID); err != nil {
		return nil, err
	}
	return s.assessments.BySession(ctx, sessionID)
}

// OpenIncidents returns incidents not yet closed, newest first.
func (s *Service) OpenIncidents(ctx context.Context) ([]*model.Incident, error) {
	return s.incidents.Open(ctx)
}

// GetStats returns a point-in-time operational snapshot.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	open, err := s.incidents.Open(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count open incidents: %w", err)
	}
	s.mu.Lock()
	started := s.startedAt
	s.mu.Unlock()

	return Stats{
		ActiveSessions: s.reg.Active(),
		TotalSessions:  len(s.reg.Sessions()),
		OpenIncidents:  len(open),
		StartedAt:      started,
		UptimeSeconds:  time.Since(started).Seconds(),
	}, nil
}
