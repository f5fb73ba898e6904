// Package model contains domain models passed between layers.
package model

import "time"

// RiskLevel classifies a risk assessment into discrete bands.
type RiskLevel string

// Risk levels, ordered by severity.
const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Escalates reports whether the level qualifies for escalation.
func (l RiskLevel) Escalates() bool {
	return l == RiskMedium || l == RiskHigh
}

// SessionStatus is the lifecycle state of a monitoring session.
type SessionStatus string

// Session lifecycle states.
const (
	SessionActive SessionStatus = "Active"
	SessionClosed SessionStatus = "Closed"
)

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

// Incident lifecycle states.
const (
	IncidentOpen   IncidentStatus = "Open"
	IncidentClosed IncidentStatus = "Closed"
)

// Severity grades an incident.
type Severity string

// Incident severities.
const (
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Urgency grades how quickly an incident needs attention.
type Urgency string

// Incident urgencies.
const (
	UrgencyHigh      Urgency = "High"
	UrgencyImmediate Urgency = "Immediate"
)

// SessionMeta carries the identity of a ride under monitoring.
type SessionMeta struct {
	DriverID     string `json:"driver_id"`
	RideID       string `json:"ride_id"`
	PassengerID  string `json:"passenger_id"`
	RouteRef     string `json:"route_ref"`
	LanguageHint string `json:"language_hint"`
}

// AudioSlice is one ~10-second audio capture within a session, addressed by
// its sequence number. Immutable once admitted.
type AudioSlice struct {
	SessionID  string
	Seq        uint64
	Payload    []byte
	CapturedAt time.Time
	Lat        float64
	Lon        float64
}

// TranscriptionResult is the outcome of the transcription stage for a slice.
type TranscriptionResult struct {
	SessionID  string
	Seq        uint64
	Text       string
	Confidence float64
	Latency    time.Duration
	Degraded   bool
}

// FactorScores bundles the three factor scores feeding classification.
// DegradedFactors names the factors that fell back to a default score.
type FactorScores struct {
	Threat          float64
	Location        float64
	Driver          float64
	DegradedFactors []string
}

// RiskAssessment is the immutable per-slice classification outcome.
type RiskAssessment struct {
	ID              string    `json:"assessment_id"`
	SessionID       string    `json:"session_id"`
	Seq             uint64    `json:"seq"`
	StorageRef      string    `json:"storage_ref"`
	Transcript      string    `json:"transcript"`
	Confidence      float64   `json:"confidence"`
	ThreatScore     float64   `json:"threat_score"`
	LocationScore   float64   `json:"location_score"`
	DriverScore     float64   `json:"driver_score"`
	TotalScore      float64   `json:"total_score"`
	Level           RiskLevel `json:"risk_level"`
	ActionRequired  bool      `json:"action_required"`
	Degraded        bool      `json:"degraded"`
	DegradedFactors []string  `json:"degraded_factors,omitempty"`
	Notification    string    `json:"notification,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Incident is a durable record of one escalation episode.
type Incident struct {
	ID            string         `json:"incident_id"`
	EvidenceKitID string         `json:"evidence_kit_id"`
	SessionID     string         `json:"session_id"`
	RideID        string         `json:"ride_id"`
	PassengerID   string         `json:"passenger_id"`
	DriverID      string         `json:"driver_id"`
	AssessmentID  string         `json:"assessment_id"`
	Severity      Severity       `json:"severity"`
	Urgency       Urgency        `json:"urgency"`
	Summary       string         `json:"summary"`
	Status        IncidentStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EvidenceKit bundles the artifacts backing one incident: the triggering
// transcript, the audio references gathered so far, and the factor scores.
type EvidenceKit struct {
	ID            string    `json:"evidence_kit_id"`
	IncidentID    string    `json:"incident_id"`
	Transcript    string    `json:"transcript"`
	StorageRefs   []string  `json:"storage_refs"`
	ThreatScore   float64   `json:"threat_score"`
	LocationScore float64   `json:"location_score"`
	DriverScore   float64   `json:"driver_score"`
	TotalScore    float64   `json:"total_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionSummary aggregates a session's risk history for callers.
type SessionSummary struct {
	SessionID       string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	TotalSlices     int           `json:"total_slices"`
	TotalRiskEvents int           `json:"total_risk_events"`
	HighestScore    float64       `json:"highest_risk_score"`
	CurrentLevel    RiskLevel     `json:"current_level"`
	Duration        time.Duration `json:"duration"`
	Escalated       bool          `json:"escalated"`
}
