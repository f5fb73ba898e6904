package gateways

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrTranscriptionOutage is returned while an injected transcription outage is active.
var ErrTranscriptionOutage = errors.New("transcription outage")

const defaultConfidence = 0.92

// MemoryTranscriber is a deterministic Transcription stub. Slice payloads in
// local runs and tests carry UTF-8 text standing in for speech; transcription
// resolves the audio reference through the backing MemoryStorage and returns
// that text. Non-text payloads transcribe to an empty string, which mirrors a
// silent slice.
type MemoryTranscriber struct {
	store *MemoryStorage

	rng        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
	outage     outage
}

// MemoryTranscriberOption configures a MemoryTranscriber.
type MemoryTranscriberOption func(*MemoryTranscriber)

// WithTranscribeLatency simulates speech-to-text latency in [min,max).
func WithTranscribeLatency(min, max time.Duration) MemoryTranscriberOption {
	return func(t *MemoryTranscriber) {
		if min >= 0 && max > min {
			t.minLatency = min
			t.maxLatency = max
			t.rng = rand.New(rand.NewSource(2)) //nolint:gosec // simulated latency only
		}
	}
}

// WithTranscribeOutage makes the next n Transcribe calls fail.
func WithTranscribeOutage(n int) MemoryTranscriberOption {
	return func(t *MemoryTranscriber) {
		t.outage.set(n)
	}
}

// NewMemoryTranscriber creates a transcriber reading payloads from store.
func NewMemoryTranscriber(store *MemoryStorage, opts ...MemoryTranscriberOption) *MemoryTranscriber {
	t := &MemoryTranscriber{store: store}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe resolves audioRef and returns its text content.
func (t *MemoryTranscriber) Transcribe(ctx context.Context, audioRef string, languageHint string) (Transcript, error) {
	if err := simulateLatency(ctx, t.rng, t.minLatency, t.maxLatency); err != nil {
		return Transcript{}, err
	}
	if t.outage.trip() {
		return Transcript{}, ErrTranscriptionOutage
	}

	payload, ok := t.store.Get(audioRef)
	if !ok {
		return Transcript{}, errors.New("unknown audio reference: " + audioRef)
	}

	text := strings.TrimSpace(string(payload))
	if !utf8.ValidString(text) {
		// Binary audio with no scripted speech.
		return Transcript{Text: "", Confidence: 0}, nil
	}

	return Transcript{Text: text, Confidence: defaultConfidence}, nil
}

// FailNext makes the next n Transcribe calls fail. Test hook.
func (t *MemoryTranscriber) FailNext(n int) {
	t.outage.set(n)
}
