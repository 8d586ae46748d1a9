package textgen

import (
	"context"
	"sync/atomic"
	"time"
)

// Mock is a test double with scripted output, latency, and failure.
type Mock struct {
	Text    string
	Err     error
	Latency time.Duration

	calls atomic.Int64
}

func (m *Mock) Generate(ctx context.Context, _ Prompt) (string, error) {
	m.calls.Add(1)
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "Nice work, keep it moving.", nil
}

func (m *Mock) Calls() int64 {
	return m.calls.Load()
}
