package speech

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// NewFailoverSynthesizer builds a synthesizer that prefers the primary
// backend and automatically switches to fallback when primary calls fail.
// Once fallback succeeds, it stays active until fallback fails; then primary
// is retried. fallbackVoiceID, when set, overrides the requested voice on
// the fallback backend.
func NewFailoverSynthesizer(primary, fallback Synthesizer, fallbackVoiceID string) Synthesizer {
	return &failoverSynthesizer{
		primary:         primary,
		fallback:        fallback,
		fallbackVoiceID: strings.TrimSpace(fallbackVoiceID),
	}
}

type failoverSynthesizer struct {
	fallbackActive  atomic.Bool
	primary         Synthesizer
	fallback        Synthesizer
	fallbackVoiceID string
}

func (s *failoverSynthesizer) Synthesize(ctx context.Context, text string, params Params) (Audio, error) {
	if s.fallbackActive.Load() {
		audio, fbErr := s.fallback.Synthesize(ctx, text, s.fallbackParams(params))
		if fbErr == nil {
			return audio, nil
		}
		// Fallback failed after being active; try primary again.
		audio, prErr := s.primary.Synthesize(ctx, text, params)
		if prErr == nil {
			s.fallbackActive.Store(false)
			return audio, nil
		}
		return Audio{}, fmt.Errorf("tts fallback failed: %v; tts primary failed: %w", fbErr, prErr)
	}

	audio, prErr := s.primary.Synthesize(ctx, text, params)
	if prErr == nil {
		return audio, nil
	}
	if ctx.Err() != nil {
		// The caller's budget expired; switching backends cannot help.
		return Audio{}, prErr
	}

	audio, fbErr := s.fallback.Synthesize(ctx, text, s.fallbackParams(params))
	if fbErr != nil {
		return Audio{}, fmt.Errorf("tts primary failed: %v; tts fallback failed: %w", prErr, fbErr)
	}
	s.fallbackActive.Store(true)
	return audio, nil
}

func (s *failoverSynthesizer) fallbackParams(params Params) Params {
	if s.fallbackVoiceID != "" {
		params.VoiceID = s.fallbackVoiceID
	}
	return params
}
