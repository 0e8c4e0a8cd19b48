// Package assets embeds files the server binary ships with.
package assets

import "embed"

// Migrations holds the Postgres schema for the task and user tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS
