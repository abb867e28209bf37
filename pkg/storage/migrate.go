package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change. Versions are applied in
// order and recorded in schema_migrations; re-running is a no-op.
type Migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					provider_identity VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL DEFAULT '',
					avatar_url TEXT NOT NULL DEFAULT '',
					role VARCHAR(32) NOT NULL DEFAULT 'user',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					encrypted_provider_token BYTEA,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);
				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					provider_identity TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					avatar_url TEXT NOT NULL DEFAULT '',
					role TEXT NOT NULL DEFAULT 'user',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					encrypted_provider_token BLOB,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					last_login_at DATETIME
				);

				CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);
				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			`,
		},
	}
}

// Migrate applies all pending migrations for the given driver.
func Migrate(ctx context.Context, db *sql.DB, driver Driver) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations() {
		var applied bool
		query := `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
		if driver == DriverSQLite {
			query = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`
		}
		if err := db.QueryRowContext(ctx, query, m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		stmt := m.Postgres
		if driver == DriverSQLite {
			stmt = m.SQLite
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		record := `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, CURRENT_TIMESTAMP)`
		if driver == DriverSQLite {
			record = `INSERT INTO schema_migrations (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`
		}
		if _, err := tx.ExecContext(ctx, record, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
