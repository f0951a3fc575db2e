package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one additive schema step.  Steps only create tables or add
// nullable/defaulted columns so rows written by older versions stay valid.
type migration struct {
	version int
	name    string
	mysql   []string
	sqlite  []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create accounts, ai_requests, purchases",
		mysql: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				email VARCHAR(255) NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				credits INT NOT NULL DEFAULT 0,
				reset_token_hash CHAR(64) NULL,
				reset_token_expires DATETIME(6) NULL,
				created_at DATETIME(6) NOT NULL,
				UNIQUE KEY uq_accounts_email (email),
				UNIQUE KEY uq_accounts_reset_token (reset_token_hash),
				CONSTRAINT chk_accounts_credits CHECK (credits >= 0),
				CONSTRAINT chk_accounts_reset_pair CHECK ((reset_token_hash IS NULL) = (reset_token_expires IS NULL))
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
			`CREATE TABLE IF NOT EXISTS ai_requests (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				account_id BIGINT UNSIGNED NOT NULL,
				kind VARCHAR(16) NOT NULL,
				model VARCHAR(128) NOT NULL,
				prompt TEXT NOT NULL,
				delivery_email VARCHAR(255) NOT NULL,
				artifact_name VARCHAR(255) NULL,
				artifact_key VARCHAR(512) NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'Pending',
				admin_response TEXT NULL,
				admin_artifact_name VARCHAR(255) NULL,
				admin_artifact_key VARCHAR(512) NULL,
				created_at DATETIME(6) NOT NULL,
				completed_at DATETIME(6) NULL,
				KEY idx_ai_requests_account_created (account_id, created_at),
				CONSTRAINT fk_ai_requests_account FOREIGN KEY (account_id) REFERENCES accounts(id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS purchases (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				account_id BIGINT UNSIGNED NOT NULL,
				session_id VARCHAR(255) NOT NULL,
				credits INT NOT NULL,
				amount_cents BIGINT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				UNIQUE KEY uq_purchases_session (session_id),
				KEY idx_purchases_account (account_id),
				CONSTRAINT fk_purchases_account FOREIGN KEY (account_id) REFERENCES accounts(id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
		},
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				credits INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
				reset_token_hash TEXT UNIQUE,
				reset_token_expires DATETIME,
				created_at DATETIME NOT NULL,
				CHECK ((reset_token_hash IS NULL) = (reset_token_expires IS NULL))
			)`,
			`CREATE TABLE IF NOT EXISTS ai_requests (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id INTEGER NOT NULL REFERENCES accounts(id),
				kind TEXT NOT NULL,
				model TEXT NOT NULL,
				prompt TEXT NOT NULL,
				delivery_email TEXT NOT NULL,
				artifact_name TEXT,
				artifact_key TEXT,
				status TEXT NOT NULL DEFAULT 'Pending',
				admin_response TEXT,
				admin_artifact_name TEXT,
				admin_artifact_key TEXT,
				created_at DATETIME NOT NULL,
				completed_at DATETIME
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_requests_account_created ON ai_requests (account_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS purchases (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id INTEGER NOT NULL REFERENCES accounts(id),
				session_id TEXT NOT NULL UNIQUE,
				credits INTEGER NOT NULL,
				amount_cents INTEGER NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_purchases_account ON purchases (account_id)`,
		},
	},
	{
		version: 2,
		name:    "add accounts.role",
		mysql:   []string{`ALTER TABLE accounts ADD COLUMN role VARCHAR(16) NOT NULL DEFAULT 'USER'`},
		sqlite:  []string{`ALTER TABLE accounts ADD COLUMN role TEXT NOT NULL DEFAULT 'USER'`},
	},
}

// LatestVersion is the schema version Migrate brings a database to.
func LatestVersion() int { return migrations[len(migrations)-1].version }

// Migrate applies every migration newer than the recorded schema version
// and returns how many were applied.  MySQL commits DDL implicitly, so
// each step records its version only after all of its statements succeed.
func Migrate(ctx context.Context, db *sql.DB, driver string) (int, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverMySQL && driver != DriverSQLite {
		return 0, fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return 0, fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		stmts := m.sqlite
		if driver == DriverMySQL {
			stmts = m.mysql
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return applied, fmt.Errorf("migrate: v%d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?,?,?)",
			m.version, m.name, time.Now().UTC()); err != nil {
			return applied, fmt.Errorf("migrate: record v%d: %w", m.version, err)
		}
		applied++
	}
	return applied, nil
}

// CurrentVersion returns the highest applied migration, 0 for a fresh database.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("migrate: read version: %w", err)
	}
	return int(v.Int64), nil
}
