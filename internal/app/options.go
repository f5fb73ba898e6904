package app

import (
	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/config"
	"github.com/goshield/goshield/internal/gateways"
	"github.com/goshield/goshield/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the service configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStorage overrides the audio storage gateway.
func WithStorage(st gateways.Storage) Option {
	return func(s *Service) {
		if st != nil {
			s.storage = st
		}
	}
}

// WithTranscriber overrides the transcription gateway.
func WithTranscriber(t gateways.Transcription) Option {
	return func(s *Service) {
		if t != nil {
			s.transcriber = t
		}
	}
}

// WithThreatScorer overrides the threat scoring gateway.
func WithThreatScorer(t gateways.ThreatScorer) Option {
	return func(s *Service) {
		if t != nil {
			s.threat = t
		}
	}
}

// WithLocationRisk overrides the location risk gateway.
func WithLocationRisk(l gateways.LocationRisk) Option {
	return func(s *Service) {
		if l != nil {
			s.location = l
		}
	}
}

// WithDriverHistory overrides the driver history gateway.
func WithDriverHistory(d gateways.DriverHistory) Option {
	return func(s *Service) {
		if d != nil {
			s.driver = d
		}
	}
}

// WithAssessmentRepository overrides the assessment repository.
func WithAssessmentRepository(r repository.AssessmentRepository) Option {
	return func(s *Service) {
		if r != nil {
			s.assessments = r
		}
	}
}

// WithIncidentRepository overrides the incident repository.
func WithIncidentRepository(r repository.IncidentRepository) Option {
	return func(s *Service) {
		if r != nil {
			s.incidents = r
		}
	}
}
