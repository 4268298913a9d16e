// Package sql embeds the schema migrations. Each file is idempotent
// (IF NOT EXISTS throughout) and applied in filename order.
package sql

import "embed"

//go:embed migrations
var Migrations embed.FS
