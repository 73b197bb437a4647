// Package store provides durable history for sweep runs.
//
// Persistence is an optional sink: scenario execution never depends on
// the store, and the harness stays a purely in-process component when no
// database path is configured. The CLI writes a report after a sweep
// finishes and reads it back for `vigil report`.
//
// Layout:
//
//	runs          one row per sweep execution
//	results       one row per scenario outcome, ordered by position
//	trace_events  one row per trace entry, for post-hoc diagnostics
//
// SQLite with WAL mode; a single writer connection avoids SQLITE_BUSY
// under the store's strictly sequential write pattern.
package store
