package database

import (
	"context"
	"fmt"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_definitions (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		fields      JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS custom_endpoints (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL UNIQUE,
		operation        INTEGER NOT NULL,
		selected_schema  TEXT NOT NULL REFERENCES schema_definitions(id),
		authentication   BOOLEAN NOT NULL DEFAULT FALSE,
		paginated        BOOLEAN NOT NULL DEFAULT FALSE,
		sorted           BOOLEAN NOT NULL DEFAULT FALSE,
		inputs           JSONB NOT NULL,
		queries          JSONB NOT NULL,
		assignments      JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_custom_endpoints_schema ON custom_endpoints(selected_schema)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_definitions (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		fields      TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS custom_endpoints (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL UNIQUE,
		operation        INTEGER NOT NULL,
		selected_schema  TEXT NOT NULL REFERENCES schema_definitions(id),
		authentication   BOOLEAN NOT NULL DEFAULT 0,
		paginated        BOOLEAN NOT NULL DEFAULT 0,
		sorted           BOOLEAN NOT NULL DEFAULT 0,
		inputs           TEXT NOT NULL,
		queries          TEXT NOT NULL,
		assignments      TEXT NOT NULL,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_custom_endpoints_schema ON custom_endpoints(selected_schema)`,
}

// Migrate creates the registry and definition store tables if missing.
func (c *Client) Migrate(ctx context.Context) error {
	stmts := postgresMigrations
	if c.Driver == DriverSQLite {
		stmts = sqliteMigrations
	}

	for i, stmt := range stmts {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
