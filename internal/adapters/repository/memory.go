package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goshield/goshield/internal/domain/model"
)

// MemoryAssessmentStore is an in-memory AssessmentRepository.
type MemoryAssessmentStore struct {
	mu         sync.RWMutex
	bySession  map[string][]*model.RiskAssessment
	appendFail atomic.Int64 // injected failures remaining
}

// MemoryAssessmentOption configures a MemoryAssessmentStore.
type MemoryAssessmentOption func(*MemoryAssessmentStore)

// WithAppendFailures makes the next n Append calls fail. Exercises the
// persistence-degradation path.
func WithAppendFailures(n int) MemoryAssessmentOption {
	return func(s *MemoryAssessmentStore) {
		s.appendFail.Store(int64(n))
	}
}

// NewMemoryAssessmentStore creates an empty assessment store.
func NewMemoryAssessmentStore(opts ...MemoryAssessmentOption) *MemoryAssessmentStore {
	s := &MemoryAssessmentStore{bySession: make(map[string][]*model.RiskAssessment)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores one assessment in session order.
func (s *MemoryAssessmentStore) Append(ctx context.Context, a *model.RiskAssessment) error {
	for {
		v := s.appendFail.Load()
		if v <= 0 {
			break
		}
		if s.appendFail.CompareAndSwap(v, v-1) {
			return ErrRepositoryUnavailable
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *a
	s.bySession[a.SessionID] = append(s.bySession[a.SessionID], &copied)
	return nil
}

// BySession returns a session's assessments in append order.
func (s *MemoryAssessmentStore) BySession(ctx context.Context, sessionID string) ([]*model.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.bySession[sessionID]
	out := make([]*model.RiskAssessment, len(stored))
	copy(out, stored)
	return out, nil
}

// HighRisk returns High-level assessments created at or after since, newest first.
func (s *MemoryAssessmentStore) HighRisk(ctx context.Context, since time.Time) ([]*model.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.RiskAssessment
	for _, list := range s.bySession {
		for _, a := range list {
			if a.Level == model.RiskHigh && !a.CreatedAt.Before(since) {
				out = append(out, a)
			}
		}
	}
	// Newest first.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// FailNext makes the next n Append calls fail. Test hook.
func (s *MemoryAssessmentStore) FailNext(n int) {
	s.appendFail.Store(int64(n))
}

// MemoryIncidentStore is an in-memory IncidentRepository. Evidence-kit ids
// are recorded atomically with the incident write, so a duplicate kit id can
// never produce a second incident.
type MemoryIncidentStore struct {
	mu        sync.RWMutex
	incidents map[string]*model.Incident
	kits      map[string]*model.EvidenceKit
	seenKits  map[string]struct{}
	order     []string
}

// NewMemoryIncidentStore creates an empty incident store.
func NewMemoryIncidentStore() *MemoryIncidentStore {
	return &MemoryIncidentStore{
		incidents: make(map[string]*model.Incident),
		kits:      make(map[string]*model.EvidenceKit),
		seenKits:  make(map[string]struct{}),
	}
}

// Save stores an incident with its evidence kit.
func (s *MemoryIncidentStore) Save(ctx context.Context, inc *model.Incident, kit *model.EvidenceKit) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.seenKits[inc.EvidenceKitID]; seen {
		return "", ErrDuplicateEvidenceKit
	}
	s.seenKits[inc.EvidenceKitID] = struct{}{}

	incCopy := *inc
	s.incidents[inc.ID] = &incCopy
	if kit != nil {
		kitCopy := *kit
		s.kits[kit.ID] = &kitCopy
	}
	s.order = append(s.order, inc.ID)

	return inc.ID, nil
}

// ByID returns an incident by id.
func (s *MemoryIncidentStore) ByID(ctx context.Context, incidentID string) (*model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	copied := *inc
	return &copied, nil
}

// Kit returns the evidence kit backing an incident, if present.
func (s *MemoryIncidentStore) Kit(ctx context.Context, kitID string) (*model.EvidenceKit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kit, ok := s.kits[kitID]
	if !ok {
		return nil, false
	}
	copied := *kit
	return &copied, true
}

// Open returns incidents that are not yet closed, newest first.
func (s *MemoryIncidentStore) Open(ctx context.Context) ([]*model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Incident
	for i := len(s.order) - 1; i >= 0; i-- {
		inc := s.incidents[s.order[i]]
		if inc.Status != model.IncidentClosed {
			copied := *inc
			out = append(out, &copied)
		}
	}
	return out, nil
}

// UpdateStatus transitions an incident's status.
func (s *MemoryIncidentStore) UpdateStatus(ctx context.Context, incidentID string, status model.IncidentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return ErrIncidentNotFound
	}
	inc.Status = status
	return nil
}

// Count returns the number of stored incidents.
func (s *MemoryIncidentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents)
}
