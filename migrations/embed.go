// Package migrations embeds the schema migrations for every supported
// storage engine. Each engine has its own directory of golang-migrate
// files so dialect differences stay out of the Go code.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directory names inside FS.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)
