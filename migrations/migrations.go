// Package migrations embeds the SQL schema migrations so the API binary
// can apply them at startup without the files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
