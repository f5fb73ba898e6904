package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrStorageOutage is returned while an injected storage outage is active.
var ErrStorageOutage = errors.New("storage outage")

// MemoryStorage is an in-memory, content-addressed Storage implementation.
// Put is idempotent per (sessionID, seq): repeated writes return the first
// reference without duplicating the payload.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]storedObject
	refs    map[string]string // "sessionID/seq" -> ref

	rng        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
	outage     outage
}

type storedObject struct {
	payload []byte
	meta    StorageMeta
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithStorageLatency simulates blob-store latency in [min,max).
func WithStorageLatency(min, max time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if min >= 0 && max > min {
			s.minLatency = min
			s.maxLatency = max
			s.rng = rand.New(rand.NewSource(1)) //nolint:gosec // simulated latency only
		}
	}
}

// WithStorageOutage makes the next n Put calls fail.
func WithStorageOutage(n int) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.outage.set(n)
	}
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		objects: make(map[string]storedObject),
		refs:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores the payload and returns a content-addressed reference.
func (s *MemoryStorage) Put(ctx context.Context, sessionID string, seq uint64, payload []byte, meta StorageMeta) (string, error) {
	if err := simulateLatency(ctx, s.rng, s.minLatency, s.maxLatency); err != nil {
		return "", err
	}
	if s.outage.trip() {
		return "", ErrStorageOutage
	}

	key := fmt.Sprintf("%s/%d", sessionID, seq)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.refs[key]; ok {
		return ref, nil
	}

	sum := sha256.Sum256(payload)
	ref := fmt.Sprintf("mem://%s/%d-%s", sessionID, seq, hex.EncodeToString(sum[:6]))
	s.objects[ref] = storedObject{payload: append([]byte(nil), payload...), meta: meta}
	s.refs[key] = ref

	return ref, nil
}

// Get returns a stored payload by reference. Used by the transcriber stub and tests.
func (s *MemoryStorage) Get(ref string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[ref]
	if !ok {
		return nil, false
	}
	return obj.payload, true
}

// FailNext makes the next n Put calls fail. Test hook.
func (s *MemoryStorage) FailNext(n int) {
	s.outage.set(n)
}

// Len returns the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
