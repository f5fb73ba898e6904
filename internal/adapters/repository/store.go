// Package repository defines the durable-record interfaces and their
// in-memory implementations.
package repository

import (
	"context"
	"time"

	"github.com/goshield/goshield/internal/domain/model"
)

// AssessmentRepository persists risk assessments.
type AssessmentRepository interface {
	// Append stores one assessment. Appends for the same session arrive in
	// sequence order by construction of the pipeline commit gate.
	Append(ctx context.Context, a *model.RiskAssessment) error

	// BySession returns a session's assessments in append order.
	BySession(ctx context.Context, sessionID string) ([]*model.RiskAssessment, error)

	// HighRisk returns High-level assessments created at or after since,
	// newest first.
	HighRisk(ctx context.Context, since time.Time) ([]*model.RiskAssessment, error)
}

// IncidentRepository persists incidents and their evidence kits.
type IncidentRepository interface {
	// Save stores an incident with its evidence kit and returns the incident
	// id. A duplicate evidence-kit id is rejected with ErrDuplicateEvidenceKit.
	Save(ctx context.Context, inc *model.Incident, kit *model.EvidenceKit) (string, error)

	// ByID returns an incident by id, or ErrIncidentNotFound.
	ByID(ctx context.Context, incidentID string) (*model.Incident, error)

	// Open returns incidents that are not yet closed, newest first.
	Open(ctx context.Context) ([]*model.Incident, error)

	// UpdateStatus transitions an incident's status.
	UpdateStatus(ctx context.Context, incidentID string, status model.IncidentStatus) error
}
