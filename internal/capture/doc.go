// Package capture defines the capture payloads the uploader moves and the
// on-disk spool that holds them until delivery.
//
// A capture is an opaque media blob plus a small amount of recording
// metadata: the capture timestamp, an optional GPS fix, and the device
// orientation at record time. Metadata is validated once at ingest; the
// rest of the pipeline treats it as trusted.
//
// The Spool owns the content directory. Payloads are keyed by media ID,
// written via temp-file-and-rename so a crash never leaves a partial blob
// under a final name, and removed only after the upload pipeline is done
// with them.
package capture
