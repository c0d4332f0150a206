package database

import (
	"context"
	"fmt"
)

// Idempotent DDL executed on startup. Soft-deleted rows keep their
// tombstone in deleted_at; the partial unique index keeps email uniqueness
// scoped to live rows.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at    TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_live_idx
		ON users (lower(email)) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS users_deleted_at_idx
		ON users (deleted_at) WHERE deleted_at IS NOT NULL`,
}

func (m *Module) bootstrapSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	m.logger.Debug("schema bootstrap complete", "statements", len(schemaStatements))
	return nil
}
