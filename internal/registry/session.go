package registry

import (
	"context"
	"sync"
	"time"

	"github.com/goshield/goshield/internal/domain/escalate"
	"github.com/goshield/goshield/internal/domain/model"
)

// Session is one active ride under monitoring. It owns the commit cursor that
// serializes assessment commits: stages of later slices may run concurrently,
// but WaitTurn admits exactly one slice at a time into the commit section, in
// sequence order. The escalation tracker and the risk history are mutated only
// by the gate holder, which makes per-episode exactly-once structural.
type Session struct {
	id        string
	meta      model.SessionMeta
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   model.SessionStatus
	cursor   uint64
	inflight map[uint64]struct{}
	skipped  map[uint64]struct{}
	waiters  map[uint64]chan struct{}
	limit    int
	closedAt time.Time

	tracker *escalate.Tracker
	history []*model.RiskAssessment
	last    *model.RiskAssessment

	lastActive time.Time
	committed  int
	failed     int
	riskEvents int
	highest    float64
	escalated  bool

	now func() time.Time
}

func newSession(parent context.Context, id string, meta model.SessionMeta, limit int, tracker *escalate.Tracker, now func() time.Time) *Session {
	ctx, cancel := context.WithCancel(parent)
	started := now()
	return &Session{
		id:         id,
		meta:       meta,
		startedAt:  started,
		ctx:        ctx,
		cancel:     cancel,
		status:     model.SessionActive,
		inflight:   make(map[uint64]struct{}),
		skipped:    make(map[uint64]struct{}),
		waiters:    make(map[uint64]chan struct{}),
		limit:      limit,
		tracker:    tracker,
		lastActive: started,
		now:        now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Meta returns the ride identity the session was activated with.
func (s *Session) Meta() model.SessionMeta { return s.meta }

// Context is canceled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Status returns the current lifecycle state.
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Admit reserves a sequence number for processing.
func (s *Session) Admit(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == model.SessionClosed {
		return ErrSessionClosed
	}
	if seq < s.cursor {
		return ErrStaleSlice
	}
	if _, ok := s.inflight[seq]; ok {
		return ErrStaleSlice
	}
	if _, ok := s.skipped[seq]; ok {
		return ErrStaleSlice
	}
	if len(s.inflight) >= s.limit {
		return ErrOutOfCapacity
	}

	s.inflight[seq] = struct{}{}
	s.lastActive = s.now()
	return nil
}

// Inflight returns the number of admitted, uncommitted slices.
func (s *Session) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// WaitTurn blocks until the commit cursor reaches seq. On return with a nil
// error the caller is the sole slice inside the commit section and must end it
// with Commit, Fail, or Abandon. A session closed before the slice's turn
// drains the slice as stale.
func (s *Session) WaitTurn(ctx context.Context, seq uint64) error {
	s.mu.Lock()
	for {
		if s.status == model.SessionClosed {
			delete(s.inflight, seq)
			s.mu.Unlock()
			return ErrStaleSlice
		}
		if s.cursor == seq {
			s.mu.Unlock()
			return nil
		}
		ch, ok := s.waiters[seq]
		if !ok {
			ch = make(chan struct{})
			s.waiters[seq] = ch
		}
		s.mu.Unlock()

		select {
		case <-ch:
		case <-s.ctx.Done():
		case <-ctx.Done():
			s.Abandon(seq)
			return ctx.Err()
		}
		s.mu.Lock()
	}
}

// Commit records a classified assessment at seq and advances the cursor.
// Only the WaitTurn holder for seq may call it.
func (s *Session) Commit(seq uint64, a *model.RiskAssessment, escalated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, a)
	s.last = a
	s.committed++
	if a.ActionRequired {
		s.riskEvents++
	}
	if a.TotalScore > s.highest {
		s.highest = a.TotalScore
	}
	if escalated {
		s.escalated = true
	}
	s.advanceLocked(seq)
}

// Fail advances the cursor past a slice whose processing failed before an
// assessment could be produced. Only the WaitTurn holder for seq may call it.
func (s *Session) Fail(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.advanceLocked(seq)
}

// Abandon releases an admitted seq that gave up before its turn. The cursor
// skips it when it gets there so later slices do not stall.
func (s *Session) Abandon(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inflight[seq]; !ok {
		return
	}
	s.failed++
	if s.cursor == seq {
		s.advanceLocked(seq)
		return
	}
	delete(s.inflight, seq)
	if ch, ok := s.waiters[seq]; ok {
		close(ch)
		delete(s.waiters, seq)
	}
	s.skipped[seq] = struct{}{}
}

// advanceLocked moves the cursor past seq and any abandoned successors, then
// wakes the waiter for the new cursor position. Caller holds s.mu.
func (s *Session) advanceLocked(seq uint64) {
	delete(s.inflight, seq)
	s.cursor = seq + 1
	for {
		if _, ok := s.skipped[s.cursor]; !ok {
			break
		}
		delete(s.skipped, s.cursor)
		s.cursor++
	}
	if ch, ok := s.waiters[s.cursor]; ok {
		close(ch)
		delete(s.waiters, s.cursor)
	}
	s.lastActive = s.now()
}

// Tracker returns the escalation state machine. Only the WaitTurn holder may
// mutate it.
func (s *Session) Tracker() *escalate.Tracker { return s.tracker }

// History returns up to n most recent committed assessments, oldest first.
func (s *Session) History(n int) []*model.RiskAssessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]*model.RiskAssessment, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// Cursor returns the next sequence number expected to commit.
func (s *Session) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// IdleSince reports the last admission or commit time.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// close marks the session Closed, cancels its context and wakes all waiters.
// Idempotent.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.status == model.SessionClosed {
		s.mu.Unlock()
		return false
	}
	s.status = model.SessionClosed
	s.closedAt = s.now()
	for seq, ch := range s.waiters {
		close(ch)
		delete(s.waiters, seq)
	}
	s.mu.Unlock()

	s.cancel()
	return true
}

// Summary aggregates the session's risk history.
func (s *Session) Summary() model.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := model.RiskLow
	if s.last != nil {
		level = s.last.Level
	}
	end := s.closedAt
	if s.status == model.SessionActive {
		end = s.now()
	}
	return model.SessionSummary{
		SessionID:       s.id,
		Status:          s.status,
		TotalSlices:     s.committed + s.failed,
		TotalRiskEvents: s.riskEvents,
		HighestScore:    s.highest,
		CurrentLevel:    level,
		Duration:        end.Sub(s.startedAt),
		Escalated:       s.escalated,
	}
}
