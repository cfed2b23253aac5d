package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeUploader(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		c.Paths.SpoolDir = defaultSpoolDir
	}
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUploader() error {
	c.Uploader.Endpoint = strings.TrimSpace(c.Uploader.Endpoint)
	if c.Uploader.AuthToken == "" {
		if value, ok := os.LookupEnv("SHUTTLE_AUTH_TOKEN"); ok {
			c.Uploader.AuthToken = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Uploader.AuthTokenFile) != "" {
		expanded, err := expandPath(c.Uploader.AuthTokenFile)
		if err != nil {
			return fmt.Errorf("uploader.auth_token_file: %w", err)
		}
		c.Uploader.AuthTokenFile = expanded
	}
	if c.Uploader.RequestTimeout <= 0 {
		c.Uploader.RequestTimeout = defaultRequestTimeout
	}
	if c.Uploader.RetryBackoffSeconds <= 0 {
		c.Uploader.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if strings.TrimSpace(c.Uploader.UserAgent) == "" {
		c.Uploader.UserAgent = defaultUserAgent
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.SpoolScanInterval <= 0 {
		c.Workflow.SpoolScanInterval = defaultSpoolScanInterval
	}
	if c.Workflow.MinFreeSpaceMiB < 0 {
		c.Workflow.MinFreeSpaceMiB = 0
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
