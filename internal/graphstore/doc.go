// Package graphstore provides the structural store contract and its SQLite
// implementation.
//
// The Store interface covers node and edge upserts, full-text search over
// node text, bounded relationship traversal, cycle detection, and
// predicate-scoped deletion. Every operation is partitioned by workspace
// context; a call can neither read nor delete across contexts.
//
// # SQLite backend
//
// SQLiteStore keeps nodes and edges in two tables with an FTS5 virtual table
// over node text, maintained by triggers. The driver is selected at build
// time: modernc.org/sqlite by default (pure Go, no C compiler needed) or
// mattn/go-sqlite3 with the cgo_sqlite build tag for faster FTS on large
// graphs. Schema changes go through versioned migrations.
//
// # Deletion safety
//
// Delete requires a non-empty NodeFilter (file path, path prefix, or element
// name) and removes matching nodes plus their incident edges inside one
// transaction. Reindex stale removal relies on the path-prefix predicate
// never reaching outside the reindexed subtree.
package graphstore
