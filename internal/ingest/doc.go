// Package ingest admits captures into the upload pipeline. The gate
// validates and sanitizes capture metadata, spools payload bytes, and
// rejects duplicates before they become queue tasks; the watcher feeds the
// gate from a drop-off inbox directory scanned on an interval.
package ingest
