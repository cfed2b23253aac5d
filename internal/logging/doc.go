// Package logging assembles the structured slog loggers shared by the
// shuttle daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers plus a no-op logger so wiring
// code and tests never hand-roll slog setup. Prefer these constructors so
// every component emits log lines with the same shape.
package logging
