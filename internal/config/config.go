package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds the directories and sockets shuttle operates on.
type Paths struct {
	// DataDir stores the queue database, daemon socket, lock, and pid file.
	DataDir string `toml:"data_dir"`
	// SpoolDir holds captured content awaiting upload (content/) and the
	// drop-off inbox scanned for new captures (inbox/).
	SpoolDir string `toml:"spool_dir"`
	LogDir   string `toml:"log_dir"`
}

// Uploader configures the collector endpoint and retry policy.
type Uploader struct {
	// Endpoint is the collector URL uploads are POSTed to.
	Endpoint string `toml:"endpoint"`
	// AuthToken is the bearer credential attached to upload requests.
	// AuthTokenFile names a file holding the credential instead; the file
	// wins when both are set.
	AuthToken      string `toml:"auth_token"`
	AuthTokenFile  string `toml:"auth_token_file"`
	RequestTimeout int    `toml:"request_timeout"`
	// MaxRetries bounds retry attempts per task after the initial attempt.
	MaxRetries int `toml:"max_retries"`
	// RetryBackoffSeconds is the unit for the exponential backoff between
	// attempts: a task with n recorded retries waits 2^n units.
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
	UserAgent           string `toml:"user_agent"`
}

// Workflow contains daemon polling intervals and resource floors.
type Workflow struct {
	QueuePollInterval int   `toml:"queue_poll_interval"`
	SpoolScanInterval int   `toml:"spool_scan_interval"`
	MinFreeSpaceMiB   int64 `toml:"min_free_space_mib"`
}

// Notifications configures optional ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shuttle.
//
// Configuration sections by subsystem:
//   - Paths: data, spool, and log directories
//   - Uploader: collector endpoint, credential, and retry policy
//   - Workflow: daemon polling intervals and disk-space floor
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Uploader      Uploader      `toml:"uploader"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shuttle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shuttle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DataDir,
		c.Paths.LogDir,
		c.Paths.SpoolDir,
		c.SpoolContentDir(),
		c.SpoolInboxDir(),
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the queue database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "shuttle.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "shuttle.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "shuttle.pid")
}

// SpoolContentDir returns the directory holding enqueued capture payloads.
func (c *Config) SpoolContentDir() string {
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.SpoolDir, "content")
}

// SpoolInboxDir returns the drop-off directory scanned for new captures.
func (c *Config) SpoolInboxDir() string {
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.SpoolDir, "inbox")
}

// ResolveAuthToken returns the collector credential, preferring the token
// file over the inline value.
func (c *Config) ResolveAuthToken() (string, error) {
	if file := strings.TrimSpace(c.Uploader.AuthTokenFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read auth token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("auth token file %q is empty", file)
		}
		return token, nil
	}
	return strings.TrimSpace(c.Uploader.AuthToken), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
