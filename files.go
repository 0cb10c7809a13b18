package auth

import (
	"embed"
)

// Account schema migrations, one directory per supported dialect so the
// same revision history runs on sqlite and postgres.
//
//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS exposes the embedded account schema migrations for the
// persistence layer to register at startup.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
