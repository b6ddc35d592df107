package store

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS prompts (
		id         UUID PRIMARY KEY,
		text       TEXT NOT NULL,
		tags       TEXT[] NOT NULL DEFAULT '{}',
		q_score    DOUBLE PRECISION NOT NULL,
		features   JSONB NOT NULL,
		version    INTEGER NOT NULL DEFAULT 1,
		parent_id  UUID REFERENCES prompts(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_parent_id ON prompts (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_created_at ON prompts (created_at DESC)`,
}

// Migrate applies the schema. Statements are idempotent, so running it at
// every startup is safe.
func Migrate(ctx context.Context, db DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
