// Package migrations embeds the schema migrations for each job store.
package migrations

import "embed"

// Postgres holds the server job store migrations under postgres/.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the local CLI job store migrations under sqlite/.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
