package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; Migrate runs it on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		role       TEXT NOT NULL DEFAULT 'student',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS competitions (
		id                    TEXT PRIMARY KEY,
		title                 TEXT NOT NULL,
		description           TEXT NOT NULL DEFAULT '',
		source_type           TEXT NOT NULL DEFAULT 'internal',
		sponsor               TEXT,
		location              TEXT,
		banner_image_url      TEXT,
		rules                 TEXT,
		tags                  TEXT[] NOT NULL DEFAULT '{}',
		prize_pool            DOUBLE PRECISION,
		start_date            TIMESTAMPTZ NOT NULL,
		end_date              TIMESTAMPTZ NOT NULL,
		registration_deadline TIMESTAMPTZ,
		max_team_size         INTEGER NOT NULL DEFAULT 1,
		total_seats           INTEGER NOT NULL,
		seats_remaining       INTEGER NOT NULL,
		status                TEXT NOT NULL DEFAULT 'published',
		is_active             BOOLEAN NOT NULL DEFAULT TRUE,
		is_featured           BOOLEAN NOT NULL DEFAULT FALSE,
		stages                TEXT NOT NULL DEFAULT '[]',
		eligibility_criteria  JSONB NOT NULL DEFAULT '{}',
		contact_info          JSONB NOT NULL DEFAULT '{}',
		created_by            TEXT REFERENCES users(id) ON DELETE SET NULL,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT competitions_dates_chk CHECK (start_date < end_date),
		CONSTRAINT competitions_deadline_chk CHECK (registration_deadline IS NULL OR registration_deadline <= start_date),
		CONSTRAINT competitions_team_size_chk CHECK (max_team_size BETWEEN 1 AND 10),
		CONSTRAINT competitions_seats_chk CHECK (total_seats >= 1 AND seats_remaining BETWEEN 0 AND total_seats)
	)`,
	`CREATE INDEX IF NOT EXISTS competitions_start_date_idx ON competitions (start_date)`,
	`CREATE INDEX IF NOT EXISTS competitions_active_source_idx ON competitions (is_active, source_type)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id             TEXT PRIMARY KEY,
		competition_id TEXT NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
		leader_id      TEXT NOT NULL REFERENCES users(id),
		type           TEXT NOT NULL DEFAULT 'individual',
		team_name      TEXT,
		abstract       TEXT,
		status         TEXT NOT NULL DEFAULT 'confirmed',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT registrations_leader_uniq UNIQUE (competition_id, leader_id)
	)`,
	`CREATE TABLE IF NOT EXISTS registration_members (
		registration_id TEXT NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
		competition_id  TEXT NOT NULL,
		user_id         TEXT NOT NULL REFERENCES users(id),
		is_leader       BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (registration_id, user_id),
		CONSTRAINT registration_members_uniq UNIQUE (competition_id, user_id)
	)`,
	// Leaders also hold a row, so registration_members_uniq covers every
	// participant of a competition.
	`ALTER TABLE registration_members ADD COLUMN IF NOT EXISTS is_leader BOOLEAN NOT NULL DEFAULT FALSE`,
	`INSERT INTO registration_members (registration_id, competition_id, user_id, is_leader)
	 SELECT id, competition_id, leader_id, TRUE FROM registrations
	 ON CONFLICT DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id             TEXT PRIMARY KEY,
		competition_id TEXT NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
		leader_id      TEXT NOT NULL REFERENCES users(id),
		title          TEXT NOT NULL,
		summary        TEXT,
		status         TEXT NOT NULL DEFAULT 'submitted',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT submissions_leader_uniq UNIQUE (competition_id, leader_id)
	)`,
}

// Migrate creates the tables and indexes the Postgres store expects.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
