// Package migrations embeds the SQL schema history so a deployed binary
// carries everything needed to bring a database up to date.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
