// Package ledger persists delivered coaching responses for feedback
// collection, retention-bounded audit, and per-user purge.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/adaptivefit/coachpipe/internal/trigger"
)

var ErrNotFound = errors.New("response not found in ledger")

// Feedback is the user's reaction to a delivered response.
type Feedback struct {
	Rating  int  `json:"rating"`
	Helpful bool `json:"helpful"`
}

// Record is one delivered coaching response. DeleteAfter bounds retention;
// the sweeper removes records past it regardless of feedback state.
type Record struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Kind        trigger.Kind `json:"trigger_kind"`
	PersonaID   string       `json:"persona_id"`
	Text        string       `json:"text"`
	Toast       string       `json:"toast"`
	AudioURL    string       `json:"audio_url,omitempty"`
	CacheHit    bool         `json:"cache_hit"`
	LatencyMs   int64        `json:"latency_ms"`
	TextGenMs   int64        `json:"textgen_ms"`
	SynthMs     int64        `json:"synth_ms"`
	Feedback    *Feedback    `json:"feedback,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	DeleteAfter time.Time    `json:"delete_after"`
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	AttachFeedback(ctx context.Context, id string, fb Feedback) error
	// PurgeUser removes every record for the user and reports how many.
	PurgeUser(ctx context.Context, userID string) (int, error)
	// DeleteExpired removes records whose DeleteAfter is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}
