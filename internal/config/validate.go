package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUploader(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUploader() error {
	if c.Uploader.Endpoint == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shuttle/config.toml"
		}
		return fmt.Errorf("uploader.endpoint is required. Edit %s (create with 'shuttle config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Uploader.Endpoint)
	if err != nil {
		return fmt.Errorf("uploader.endpoint is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("uploader.endpoint must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("uploader.endpoint is missing a host")
	}
	if c.Uploader.MaxRetries < 0 {
		return errors.New("uploader.max_retries must be zero or greater")
	}
	if c.Uploader.RequestTimeout <= 0 {
		return errors.New("uploader.request_timeout must be greater than zero")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be greater than zero")
	}
	if c.Workflow.SpoolScanInterval <= 0 {
		return errors.New("workflow.spool_scan_interval must be greater than zero")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
