// Package queue persists upload tasks in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, stuck-task recovery, and the status transitions the pipeline
// worker applies. Tasks capture payload location, destination, retry
// bookkeeping, and capture metadata so the worker can resume cleanly after
// a restart.
//
// The database is treated as transient storage for in-flight uploads rather
// than a long-term archive: tasks that reach a terminal state are deleted,
// and an unreadable or incompatible database is moved aside and recreated
// empty rather than blocking startup. Schema changes bump the version in
// schema.go.
package queue
