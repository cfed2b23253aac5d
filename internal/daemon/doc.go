// Package daemon coordinates the long-running Shuttle process.
//
// It wires configuration, queue storage, the upload pipeline, the inbox
// watcher, and the notification bridge into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes the
// queue maintenance helpers behind the IPC surface, handles manual capture
// submission, and owns the notifications emitted on startup and shutdown.
//
// Keep orchestration logic here: upload mechanics live in pipeline, admission
// rules in ingest, while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
