package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is created by the last step; its presence means the schema is complete.
const sentinelTable = "public.quota_change_log"

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_accounts",
		SQL: `CREATE TABLE IF NOT EXISTS accounts (
  id            TEXT        PRIMARY KEY,
  email         TEXT        NOT NULL DEFAULT '',
  storage_used  BIGINT      NOT NULL DEFAULT 0 CHECK (storage_used >= 0),
  storage_limit BIGINT      NOT NULL CHECK (storage_limit >= 0),
  is_admin      BOOLEAN     NOT NULL DEFAULT FALSE,
  is_moderator  BOOLEAN     NOT NULL DEFAULT FALSE,
  capabilities  INTEGER     NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		// At most one account may carry the protected bit.
		Name: "create_index_accounts_single_protected",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_single_protected ON accounts ((capabilities & 1)) WHERE capabilities & 1 <> 0;`,
	},
	{
		Name: "create_table_files",
		SQL: `CREATE TABLE IF NOT EXISTS files (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_id     TEXT        NOT NULL REFERENCES accounts (id),
  filename     TEXT        NOT NULL,
  description  TEXT        NOT NULL DEFAULT '',
  size         BIGINT      NOT NULL CHECK (size > 0),
  content_hash TEXT        NOT NULL,
  content_type TEXT        NOT NULL,
  category     TEXT        NOT NULL,
  storage_key  TEXT        NOT NULL UNIQUE,
  visibility   TEXT        NOT NULL CHECK (visibility IN ('public', 'private')),
  approval     TEXT        NOT NULL CHECK (approval IN ('approved', 'pending')),
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_files_owner_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_files_owner_created_at ON files (owner_id, created_at DESC);`,
	},
	{
		Name: "create_index_files_content_hash",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_files_content_hash ON files (content_hash);`,
	},
	{
		Name: "create_table_quota_modification_requests",
		SQL: `CREATE TABLE IF NOT EXISTS quota_modification_requests (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  requester_id   TEXT        NOT NULL REFERENCES accounts (id),
  target_id      TEXT        NOT NULL REFERENCES accounts (id),
  old_limit      BIGINT      NOT NULL,
  new_limit      BIGINT      NOT NULL CHECK (new_limit >= 0),
  reason         TEXT        NOT NULL DEFAULT '',
  status         TEXT        NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
  reviewer_id    TEXT        REFERENCES accounts (id),
  reviewed_at    TIMESTAMPTZ,
  review_comment TEXT,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_quota_requests_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_quota_requests_status ON quota_modification_requests (status, created_at DESC);`,
	},
	{
		Name: "create_table_quota_change_log",
		SQL: `CREATE TABLE IF NOT EXISTS quota_change_log (
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  actor_id   TEXT        NOT NULL,
  target_id  TEXT        NOT NULL,
  action     TEXT        NOT NULL,
  old_limit  BIGINT      NOT NULL,
  new_limit  BIGINT      NOT NULL,
  reason     TEXT        NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
}

// EnsureMigrated checks for the sentinel table and runs every step if it is missing.
// Steps are idempotent, so a run interrupted halfway is finished on the next start.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_check").Msg("checking schema")

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists)
	if err != nil {
		log.Error().Err(err).
			Str("event", "db_migration_failed").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().
			Str("event", "db_migration_skip").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Int("steps", len(steps)).Msg("migrating")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().Err(err).
				Str("event", "db_migration_failed").
				Str("migration_step", step.Name).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Debug().
			Str("event", "db_migration_step").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("step applied")
	}

	log.Info().
		Str("event", "db_migration_success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("schema migrated")

	return nil
}
