// Package testsupport provides shared fixtures for package tests: temp-dir
// backed configs, queue stores with registered cleanup, and seeded tasks.
package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Uploader.Endpoint = "https://uploads.example.test/api/v1/media"
	cfgVal.Uploader.AuthToken = "test-token"
	cfgVal.Notifications.Queue = false
	cfgVal.Notifications.Errors = false

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEndpoint overrides the upload endpoint on the test config.
func WithEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploader.Endpoint = endpoint
	}
}

// WithMaxRetries overrides the retry budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploader.MaxRetries = n
	}
}

// WithNtfyTopic enables queue and error notifications against the given
// topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
		b.cfg.Notifications.Queue = true
		b.cfg.Notifications.Errors = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
