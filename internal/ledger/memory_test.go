package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adaptivefit/coachpipe/internal/trigger"
)

func sampleRecord(id, userID string, deleteAfter time.Time) Record {
	return Record{
		ID:          id,
		UserID:      userID,
		Kind:        trigger.KindSetEnd,
		PersonaID:   "alice",
		Text:        "Great set! Keep up the momentum.",
		Toast:       "Great set!",
		CacheHit:    true,
		LatencyMs:   42,
		CreatedAt:   time.Now(),
		DeleteAfter: deleteAfter,
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := sampleRecord("r1", "u1", time.Now().Add(time.Hour))
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != rec.Text || got.UserID != "u1" {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreAttachFeedback(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Save(ctx, sampleRecord("r1", "u1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.AttachFeedback(ctx, "r1", Feedback{Rating: 5, Helpful: true}); err != nil {
		t.Fatalf("AttachFeedback: %v", err)
	}
	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Feedback == nil || got.Feedback.Rating != 5 || !got.Feedback.Helpful {
		t.Fatalf("feedback not attached: %+v", got.Feedback)
	}
	if err := s.AttachFeedback(ctx, "missing", Feedback{Rating: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Save(ctx, sampleRecord("r1", "u1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.AttachFeedback(ctx, "r1", Feedback{Rating: 4}); err != nil {
		t.Fatalf("AttachFeedback: %v", err)
	}
	got, _ := s.Get(ctx, "r1")
	got.Feedback.Rating = 1
	again, _ := s.Get(ctx, "r1")
	if again.Feedback.Rating != 4 {
		t.Fatalf("caller mutation leaked into store: rating %d", again.Feedback.Rating)
	}
}

func TestMemoryStorePurgeUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	for _, rec := range []Record{
		sampleRecord("r1", "u1", exp),
		sampleRecord("r2", "u1", exp),
		sampleRecord("r3", "u2", exp),
	} {
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save %s: %v", rec.ID, err)
		}
	}
	removed, err := s.PurgeUser(ctx, "u1")
	if err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("remaining = %d, want 1", s.Len())
	}
	if _, err := s.Get(ctx, "r3"); err != nil {
		t.Fatalf("other user's record lost: %v", err)
	}
}

func TestMemoryStoreDeleteExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	if err := s.Save(ctx, sampleRecord("old", "u1", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, sampleRecord("fresh", "u1", now.Add(time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	removed, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := s.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record still present: %v", err)
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh record lost: %v", err)
	}
}
