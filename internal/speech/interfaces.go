package speech

import (
	"context"
	"errors"
	"time"
)

// Params selects the voice a synthesis call should use.
type Params struct {
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

// Audio is the result of one synthesis call.
type Audio struct {
	Bytes    []byte
	Format   string
	Duration time.Duration
	// Elapsed records the vendor round-trip; coalesced cache waiters see
	// the same value, copied, not recomputed.
	Elapsed time.Duration
}

var ErrUpstreamTimeout = errors.New("synthesis upstream timeout")

// Synthesizer renders text to speech. Implementations must honor ctx
// cancellation and are consumed only through the dispatcher.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params Params) (Audio, error)
}

// IsRetryable classifies vendor HTTP status codes worth failing over on.
func IsRetryable(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// EstimateDuration approximates spoken length from text when the vendor does
// not report one: about 150 words per minute, five characters per word.
func EstimateDuration(text string) time.Duration {
	words := float64(len(text)) / 5
	seconds := words / 150 * 60
	return time.Duration(seconds * float64(time.Second))
}
