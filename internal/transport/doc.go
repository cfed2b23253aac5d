// Package transport delivers capture payloads to the remote media endpoint.
//
// The HTTP client streams each payload as a multipart POST so large
// recordings never sit in memory, reports delivery progress as a
// non-decreasing fraction, and surfaces non-2xx responses as StatusError
// values the pipeline can log and retry. Whether a failure is retried is
// the pipeline's decision; the only error the transport marks as
// permanent is a payload that no longer exists on disk.
package transport
