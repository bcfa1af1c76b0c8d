package migrations

import "embed"

// FS embeds the SQL schema migrations.
//
//go:embed *.sql
var FS embed.FS
