package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// schema holds the profile-table DDL the engine depends on. Statements are
// idempotent; the wider portal schema is owned elsewhere.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS staff_profiles (
        subject_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        name             TEXT NOT NULL,
        email            TEXT NOT NULL UNIQUE,
        password_hash    TEXT NOT NULL,
        role             TEXT NOT NULL CHECK (role IN ('ADMIN','STAFF')),
        home_location_id TEXT NOT NULL,
        permissions      TEXT[] NOT NULL DEFAULT '{}',
        active_flag      BOOLEAN NOT NULL DEFAULT TRUE,
        created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS member_profiles (
        subject_id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        name                TEXT NOT NULL,
        email               TEXT NOT NULL UNIQUE,
        password_hash       TEXT NOT NULL,
        home_location_id    TEXT NOT NULL,
        membership_status   TEXT NOT NULL CHECK (membership_status IN
            ('ACTIVE','INACTIVE','SUSPENDED','EXPIRED','CANCELLED','PENDING')),
        membership_end_date TIMESTAMPTZ,
        suspended_until     TIMESTAMPTZ,
        created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_member_profiles_location
        ON member_profiles (home_location_id)`,
}

// RunMigrations applies the engine's schema statements.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for i, statement := range schema {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}

	logger.Info("schema applied", zap.Int("statements", len(schema)))
	return nil
}
