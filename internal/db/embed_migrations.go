// Package db holds the Postgres schema and connection helpers.
package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Used by the migrate runner (sitectl migrate) to apply migrations.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
