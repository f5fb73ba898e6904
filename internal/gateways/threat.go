package gateways

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// ErrThreatOutage is returned while an injected threat-scorer outage is active.
var ErrThreatOutage = errors.New("threat scorer outage")

// Transcripts shorter than this carry no usable speech signal.
const minScorableTranscript = 5

// defaultThreatTerms weights the indicator phrases the production LLM prompt
// asks about: threats of violence, harassment, route deviation, personal
// information requests.
var defaultThreatTerms = map[string]float64{
	"help":      35,
	"stop":      25,
	"scared":    30,
	"police":    40,
	"hurt":      45,
	"kill":      80,
	"weapon":    70,
	"knife":     70,
	"gun":       80,
	"shut up":   45,
	"alone":     20,
	"shortcut":  25,
	"detour":    25,
	"address":   20,
	"phone num": 20,
	"pretty":    25,
	"touch":     50,
	"drunk":     30,
}

// KeywordThreatScorer is a deterministic ThreatScorer stub: it sums weighted
// indicator terms found in the transcript and clamps to [0,100]. Stands in
// for the LLM-based scorer, which is a pluggable external collaborator.
type KeywordThreatScorer struct {
	terms map[string]float64

	rng        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
	outage     outage
}

// ThreatScorerOption configures a KeywordThreatScorer.
type ThreatScorerOption func(*KeywordThreatScorer)

// WithThreatTerms replaces the indicator term weights.
func WithThreatTerms(terms map[string]float64) ThreatScorerOption {
	return func(s *KeywordThreatScorer) {
		if len(terms) > 0 {
			s.terms = terms
		}
	}
}

// WithThreatLatency simulates LLM latency in [min,max).
func WithThreatLatency(min, max time.Duration) ThreatScorerOption {
	return func(s *KeywordThreatScorer) {
		if min >= 0 && max > min {
			s.minLatency = min
			s.maxLatency = max
			s.rng = rand.New(rand.NewSource(3)) //nolint:gosec // simulated latency only
		}
	}
}

// WithThreatOutage makes the next n Score calls fail.
func WithThreatOutage(n int) ThreatScorerOption {
	return func(s *KeywordThreatScorer) {
		s.outage.set(n)
	}
}

// NewKeywordThreatScorer creates a scorer with the default indicator terms.
func NewKeywordThreatScorer(opts ...ThreatScorerOption) *KeywordThreatScorer {
	s := &KeywordThreatScorer{terms: defaultThreatTerms}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score rates text on [0,100]. Empty or near-empty transcripts score 0.
func (s *KeywordThreatScorer) Score(ctx context.Context, text string) (float64, error) {
	if err := simulateLatency(ctx, s.rng, s.minLatency, s.maxLatency); err != nil {
		return 0, err
	}
	if s.outage.trip() {
		return 0, ErrThreatOutage
	}

	if len(strings.TrimSpace(text)) < minScorableTranscript {
		return 0, nil
	}

	lowered := strings.ToLower(text)
	var score float64
	for term, weight := range s.terms {
		if strings.Contains(lowered, term) {
			score += weight
		}
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

// FailNext makes the next n Score calls fail. Test hook.
func (s *KeywordThreatScorer) FailNext(n int) {
	s.outage.set(n)
}
