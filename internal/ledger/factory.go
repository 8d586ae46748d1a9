package ledger

import (
	"context"
	"log"
	"strings"
	"time"
)

// NewStore picks the backend from DATABASE_URL: postgres when set, in-memory
// otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// StartRetentionSweep deletes expired records on a fixed interval until ctx
// is cancelled. Sweep failures are logged and retried on the next tick.
func StartRetentionSweep(ctx context.Context, store Store, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := store.DeleteExpired(ctx, now)
				if err != nil {
					log.Printf("ledger retention sweep: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("ledger retention sweep removed %d records", removed)
				}
			}
		}
	}()
}
