// Package api defines wire-format types and converters for the IPC layer.
// It translates internal queue models into transport-friendly DTOs so that
// CLI rendering and RPC payloads never couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status,
// capture.Orientation) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds.
package api
