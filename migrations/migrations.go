// Package migrations embeds the goose migrations for the trade-history mirror.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
