package speech

import (
	"context"
	"sync"
	"time"
)

// Mock is a scriptable synthesizer for tests and for running without an
// ElevenLabs key. It renders the input text bytes as fake audio.
type Mock struct {
	mu    sync.Mutex
	calls int

	// Latency is simulated per call, honoring ctx cancellation.
	Latency time.Duration
	// Err, when set, fails every call.
	Err error
	// FailFirst fails the first N calls, then succeeds.
	FailFirst int
	FailErr   error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Synthesize(ctx context.Context, text string, _ Params) (Audio, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	latency := m.Latency
	err := m.Err
	failFirst := m.FailFirst
	failErr := m.FailErr
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		}
	}
	if err != nil {
		return Audio{}, err
	}
	if call <= failFirst {
		if failErr != nil {
			return Audio{}, failErr
		}
		return Audio{}, ErrUpstreamTimeout
	}
	return Audio{
		Bytes:    []byte("mock-audio:" + text),
		Format:   "mp3",
		Duration: EstimateDuration(text),
		Elapsed:  latency,
	}, nil
}

// Calls reports how many synthesis calls were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
