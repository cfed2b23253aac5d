package preflight

import (
	"context"

	"shuttle/internal/config"
)

// Result reports the outcome of a single preflight check. Fatal marks
// checks the daemon cannot run without.
type Result struct {
	Name   string
	Passed bool
	Fatal  bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Queue and spool directories (always checked). The daemon cannot
	// operate without them, so their failures are fatal.
	for _, check := range []struct {
		name string
		path string
	}{
		{"Data directory", cfg.Paths.DataDir},
		{"Spool content directory", cfg.SpoolContentDir()},
		{"Spool inbox directory", cfg.SpoolInboxDir()},
		{"Log directory", cfg.Paths.LogDir},
	} {
		result := CheckDirectoryAccess(check.name, check.path)
		result.Fatal = true
		results = append(results, result)
	}

	// Free space on the spool volume (when a floor is configured)
	if cfg.Workflow.MinFreeSpaceMiB > 0 {
		results = append(results, CheckFreeSpace("Spool free space", cfg.Paths.SpoolDir, cfg.Workflow.MinFreeSpaceMiB))
	}

	// Collector endpoint
	if cfg.Uploader.Endpoint != "" {
		results = append(results, CheckEndpoint(ctx, cfg))
	}

	return results
}
