// Package activity tracks user and file actions in a shared-file service and
// turns them into durable per-device notifications plus human-readable
// activity timelines.
//
// The module is organized around four public operations:
//
//   - tracker.Recorder records a single action as an immutable activity-log row
//   - notification.Fanout expands one action into per-recipient notification
//     rows and best-effort online push hints
//   - notification.Reader reconstructs a user+device's pending notifications
//     into a normalized client-ready shape
//   - session.Aggregator stitches raw open/print/download events into
//     session-shaped activity views
//
// Every operation that touches storage accepts an optional bun.IDB so a
// caller can compose it into a larger transaction; passing nil makes the
// component open, use, and release its own transaction scope.
package activity

import "embed"

// MigrationsFS contains the SQL migrations for both PostgreSQL and SQLite.
//
// The migrations are organized in a dialect-aware structure:
//   - Root files (data/sql/migrations/*.sql) contain PostgreSQL migrations
//   - SQLite overrides are in data/sql/migrations/sqlite/*.sql
//
//go:embed data/sql/migrations
var MigrationsFS embed.FS

// GetMigrationsFS exposes the SQL migration files so host applications can
// register them with their migration runner.
func GetMigrationsFS() embed.FS {
	return MigrationsFS
}
