// Package blob persists synthesized audio referenced by cache entries.
package blob

import "context"

// Store writes opaque audio bytes and returns a URL that clients can fetch.
// Implementations own the mapping from key to URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}
