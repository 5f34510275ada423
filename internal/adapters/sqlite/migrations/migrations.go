// Package migrations embeds the SQLite schema of the event log.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
