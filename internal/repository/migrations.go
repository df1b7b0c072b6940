package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vision_jobs (
	id                      UUID PRIMARY KEY,
	filename                TEXT NOT NULL,
	source_url              TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	processed               BOOLEAN NOT NULL DEFAULT FALSE,
	result_url              TEXT,
	detections              JSONB,
	error_message           TEXT,
	retry_count             INTEGER NOT NULL DEFAULT 0,
	processing_time_seconds DOUBLE PRECISION,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ,
	processed_at            TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_vision_jobs_status ON vision_jobs (status, updated_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vision_jobs (
	id                      TEXT PRIMARY KEY,
	filename                TEXT NOT NULL,
	source_url              TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	processed               BOOLEAN NOT NULL DEFAULT 0,
	result_url              TEXT,
	detections              BLOB,
	error_message           TEXT,
	retry_count             INTEGER NOT NULL DEFAULT 0,
	processing_time_seconds REAL,
	created_at              TIMESTAMP NOT NULL,
	updated_at              TIMESTAMP,
	processed_at            TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_vision_jobs_status ON vision_jobs (status, updated_at);
`

// EnsureSchema creates the vision_jobs table if it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	var ddl string
	switch dialect {
	case DialectPostgres:
		ddl = postgresSchema
	case DialectSQLite:
		ddl = sqliteSchema
	default:
		return fmt.Errorf("ensure schema: unknown dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
