package registry

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrSessionNotFound indicates the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession indicates an active session already exists for the
	// same ride and passenger.
	ErrDuplicateSession = errors.New("duplicate session for ride")

	// ErrRegistryFull indicates the active-session cap was reached.
	ErrRegistryFull = errors.New("registry full")

	// ErrSessionClosed indicates the session no longer accepts slices.
	ErrSessionClosed = errors.New("session closed")

	// ErrStaleSlice indicates the sequence number was already committed,
	// is currently in flight, or can no longer commit.
	ErrStaleSlice = errors.New("stale slice")

	// ErrOutOfCapacity indicates the per-session in-flight limit was reached.
	ErrOutOfCapacity = errors.New("session out of capacity")
)
