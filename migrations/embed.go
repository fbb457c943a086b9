// Package migrations embeds the SQL schema of the customer read model.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
