// Package persistence provides the key-value storage used by the tracker.
// Collections are stored as JSON arrays under named keys. Backends are pluggable,
// currently SQLite with WAL mode and an in-memory map for tests and ephemeral runs.
package persistence
