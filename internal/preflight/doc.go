// Package preflight provides readiness checks for the filesystem paths and
// collector endpoint that Shuttle depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures before the
//     upload worker begins draining the queue.
//   - The CLI "shuttle status" command uses individual check functions
//     (CheckEndpoint, CheckDirectoryAccess) to display health.
//
// Each check is gated by its config value -- unconfigured features are skipped.
package preflight
