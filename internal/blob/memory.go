package blob

import (
	"context"
	"sync"
)

// Memory is an in-process store used by tests.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "mem://" + key
	m.blobs[url] = append([]byte(nil), data...)
	return url, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, url)
	return nil
}

// Len reports stored blob count, for eviction assertions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
