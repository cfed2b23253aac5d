package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"shuttle/internal/config"
)

// CheckEndpointFromConfig evaluates collector status from config and connectivity.
func CheckEndpointFromConfig(cfg *config.Config) Result {
	const name = "Collector endpoint"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Uploader.Endpoint) == "" {
		return Result{Name: name, Detail: "Missing endpoint"}
	}
	check := CheckEndpoint(context.Background(), cfg)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}

// SpoolProbe reports the current spooled-payload snapshot.
type SpoolProbe struct {
	Files int
	Bytes int64
}

// ProbeSpool counts the payloads currently held in the spool content
// directory. A missing directory reads as an empty spool.
func ProbeSpool(dir string) SpoolProbe {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return SpoolProbe{}
	}

	var probe SpoolProbe
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		probe.Files++
		probe.Bytes += info.Size()
	}
	return probe
}

// SpoolDetail renders a display-friendly summary for status UIs.
func (p SpoolProbe) SpoolDetail() string {
	if p.Files == 0 {
		return "Spool empty"
	}
	return fmt.Sprintf("%d payload(s), %.1f MiB spooled", p.Files, float64(p.Bytes)/(1<<20))
}
