// Package database opens the connection for the configured storage backend.
//
// PostgreSQL is the production target and uses a pgx pool. SQLite is the
// zero-setup local fallback used when no PostgreSQL host is configured.
package database
