package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrIncidentNotFound      = errors.New("incident not found")
	ErrDuplicateEvidenceKit  = errors.New("duplicate evidence kit id")
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
