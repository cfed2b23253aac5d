package config

const (
	defaultDataDir             = "~/.local/share/shuttle"
	defaultSpoolDir            = "~/.local/share/shuttle/spool"
	defaultLogDir              = "~/.local/share/shuttle/logs"
	defaultRequestTimeout      = 60
	defaultMaxRetries          = 3
	defaultRetryBackoffSeconds = 1
	defaultUserAgent           = "Shuttle/dev"
	defaultQueuePollInterval   = 2
	defaultSpoolScanInterval   = 5
	defaultMinFreeSpaceMiB     = 256
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			SpoolDir: defaultSpoolDir,
			LogDir:   defaultLogDir,
		},
		Uploader: Uploader{
			RequestTimeout:      defaultRequestTimeout,
			MaxRetries:          defaultMaxRetries,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			UserAgent:           defaultUserAgent,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			SpoolScanInterval: defaultSpoolScanInterval,
			MinFreeSpaceMiB:   defaultMinFreeSpaceMiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
