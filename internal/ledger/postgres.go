package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adaptivefit/coachpipe/internal/trigger"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initLedgerSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initLedgerSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS coach_responses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			persona_id TEXT NOT NULL,
			text TEXT NOT NULL,
			toast TEXT NOT NULL DEFAULT '',
			audio_url TEXT NOT NULL DEFAULT '',
			cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			textgen_ms BIGINT NOT NULL DEFAULT 0,
			synth_ms BIGINT NOT NULL DEFAULT 0,
			feedback_rating INTEGER NULL,
			feedback_helpful BOOLEAN NULL,
			created_at TIMESTAMPTZ NOT NULL,
			delete_after TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_coach_responses_user ON coach_responses (user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_coach_responses_delete_after ON coach_responses (delete_after);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init ledger schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	var rating *int
	var helpful *bool
	if rec.Feedback != nil {
		rating = &rec.Feedback.Rating
		helpful = &rec.Feedback.Helpful
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO coach_responses (
			id, user_id, trigger_kind, persona_id, text, toast, audio_url, cache_hit,
			latency_ms, textgen_ms, synth_ms, feedback_rating, feedback_helpful, created_at, delete_after
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
		)
		ON CONFLICT (id) DO UPDATE SET
			user_id=EXCLUDED.user_id,
			trigger_kind=EXCLUDED.trigger_kind,
			persona_id=EXCLUDED.persona_id,
			text=EXCLUDED.text,
			toast=EXCLUDED.toast,
			audio_url=EXCLUDED.audio_url,
			cache_hit=EXCLUDED.cache_hit,
			latency_ms=EXCLUDED.latency_ms,
			textgen_ms=EXCLUDED.textgen_ms,
			synth_ms=EXCLUDED.synth_ms,
			feedback_rating=EXCLUDED.feedback_rating,
			feedback_helpful=EXCLUDED.feedback_helpful,
			created_at=EXCLUDED.created_at,
			delete_after=EXCLUDED.delete_after`,
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		rec.PersonaID,
		rec.Text,
		rec.Toast,
		rec.AudioURL,
		rec.CacheHit,
		rec.LatencyMs,
		rec.TextGenMs,
		rec.SynthMs,
		rating,
		helpful,
		rec.CreatedAt,
		rec.DeleteAfter,
	)
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, trigger_kind, persona_id, text, toast, audio_url, cache_hit,
		        latency_ms, textgen_ms, synth_ms, feedback_rating, feedback_helpful, created_at, delete_after
		   FROM coach_responses WHERE id=$1`,
		id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get response: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) AttachFeedback(ctx context.Context, id string, fb Feedback) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE coach_responses SET feedback_rating=$2, feedback_helpful=$3 WHERE id=$1`,
		id, fb.Rating, fb.Helpful,
	)
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PurgeUser(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM coach_responses WHERE user_id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("purge user responses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM coach_responses WHERE delete_after <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired responses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		kind    string
		rating  *int
		helpful *bool
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&kind,
		&rec.PersonaID,
		&rec.Text,
		&rec.Toast,
		&rec.AudioURL,
		&rec.CacheHit,
		&rec.LatencyMs,
		&rec.TextGenMs,
		&rec.SynthMs,
		&rating,
		&helpful,
		&rec.CreatedAt,
		&rec.DeleteAfter,
	); err != nil {
		return Record{}, err
	}
	rec.Kind = trigger.Kind(kind)
	if rating != nil {
		rec.Feedback = &Feedback{Rating: *rating}
		if helpful != nil {
			rec.Feedback.Helpful = *helpful
		}
	}
	return rec, nil
}
