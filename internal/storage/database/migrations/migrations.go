// Package migrations embeds the SQL schema applied by goose at startup.
// Statements stay within the subset shared by PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
