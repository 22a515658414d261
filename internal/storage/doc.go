// Package storage persists event rows and the publish audit trail.
//
// The store is the single source of truth for event existence and status;
// the scheduler's in-memory timer set is a rebuildable cache derived from
// it. Loosely-typed rows are parsed into the strict event.Event model at
// this boundary and malformed rows fail fast.
//
// Drivers:
//   - "sqlite" (default): SQLite database file via modernc.org/sqlite
//   - "file": dependency-free JSON snapshot + audit JSON Lines
package storage
