package db

import "embed"

// EmbedMigrations contains the history store migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
