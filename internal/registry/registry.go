// Package registry tracks active monitoring sessions and enforces the
// per-ride uniqueness and per-session ordering invariants.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goshield/goshield/internal/domain/escalate"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/pkg/logger"
	"github.com/goshield/goshield/pkg/metrics"
)

// Default bounds, overridable via options.
const (
	defaultInflightLimit = 16
	defaultMaxActive     = 10_000
	defaultIdleTimeout   = 5 * time.Minute

	janitorInterval = 30 * time.Second
)

// Registry owns the session table. One active session per (ride, passenger).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byRide   map[string]string

	inflightLimit    int
	maxActive        int
	idleTimeout      time.Duration
	resolveAfterLows int

	logger logger.Logger
	now    func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithInflightLimit caps admitted-but-uncommitted slices per session.
func WithInflightLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.inflightLimit = n
		}
	}
}

// WithMaxActive caps concurrently active sessions.
func WithMaxActive(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxActive = n
		}
	}
}

// WithIdleTimeout sets the inactivity window after which sessions are closed.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithResolveAfterLows sets the consecutive-Low run that resolves an episode.
func WithResolveAfterLows(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.resolveAfterLows = n
		}
	}
}

// WithLogger sets a custom logger for the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Registry.
func New(opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		sessions:         make(map[string]*Session),
		byRide:           make(map[string]string),
		inflightLimit:    defaultInflightLimit,
		maxActive:        defaultMaxActive,
		idleTimeout:      defaultIdleTimeout,
		resolveAfterLows: 3,
		now:              time.Now,
		baseCtx:          ctx,
		stop:             cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("registry")
	}
	return r
}

func rideKey(meta model.SessionMeta) string {
	return meta.RideID + "/" + meta.PassengerID
}

// Activate creates a new Active session for the given ride identity.
func (r *Registry) Activate(ctx context.Context, meta model.SessionMeta) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rideKey(meta)
	if existing, ok := r.byRide[key]; ok {
		return nil, fmt.Errorf("%w: session %s is active for ride %s", ErrDuplicateSession, existing, meta.RideID)
	}
	if r.activeLocked() >= r.maxActive {
		return nil, ErrRegistryFull
	}

	id := uuid.NewString()
	tracker := escalate.NewTracker(escalate.WithResolveAfter(r.resolveAfterLows))
	s := newSession(r.baseCtx, id, meta, r.inflightLimit, tracker, r.now)
	r.sessions[id] = s
	r.byRide[key] = id

	metrics.RecordSessionActivated()
	metrics.UpdateActiveSessions(r.activeLocked())
	r.logger.Info(ctx, "session activated",
		logger.String("sessionID", id),
		logger.String("rideID", meta.RideID),
		logger.String("driverID", meta.DriverID),
	)
	return s, nil
}

// Get returns the session for id, closed or not.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close transitions a session to Closed, waking any slices blocked on the
// commit gate. Closing an already-closed session is a no-op.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.byRide, rideKey(s.meta))
	r.mu.Unlock()

	if !s.close() {
		return nil
	}

	r.mu.RLock()
	active := r.activeLocked()
	r.mu.RUnlock()

	metrics.RecordSessionClosed()
	metrics.UpdateActiveSessions(active)
	r.logger.Info(ctx, "session closed",
		logger.String("sessionID", id),
		logger.Uint64("cursor", s.Cursor()),
	)
	return nil
}

// Active returns the number of Active sessions.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLocked()
}

func (r *Registry) activeLocked() int {
	return len(r.byRide)
}

// Sessions returns a snapshot of all sessions, closed included.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// StartJanitor launches the background goroutine that closes idle sessions.
func (r *Registry) StartJanitor() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.baseCtx.Done():
				return
			case <-ticker.C:
				r.ReapIdle()
			}
		}
	}()
}

// ReapIdle closes sessions idle past the timeout. The janitor calls it on a
// fixed cadence; tests call it directly.
func (r *Registry) ReapIdle() {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.RLock()
	var idle []string
	for _, id := range r.byRide {
		if s := r.sessions[id]; s != nil && s.IdleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		r.logger.Warn(context.Background(), "closing idle session", logger.String("sessionID", id))
		_ = r.Close(context.Background(), id)
	}
}

// Shutdown closes all sessions and stops the janitor.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byRide))
	for _, id := range r.byRide {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Close(ctx, id)
	}
	r.stop()
	r.wg.Wait()
}
