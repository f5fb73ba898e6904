package pipeline

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrStorageUnavailable indicates the storage stage exhausted its retry
	// budget. The slice produced no assessment; its sequence number is
	// consumed and the commit cursor advances past it.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrPersistenceFailed indicates the committed assessment could not be
	// appended to the repository. Session state already advanced; a background
	// retry re-attempts the append.
	ErrPersistenceFailed = errors.New("assessment persistence failed")
)
