// Package migrations embeds the SQL schema migrations for the
// courtroom session store.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
