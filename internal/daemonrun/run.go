package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/daemon"
	"shuttle/internal/ingest"
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/pipeline"
	"shuttle/internal/queue"
	"shuttle/internal/transport"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the shuttle daemon runtime loop and blocks until a signal or an
// IPC shutdown request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := filepath.Join(cfg.Paths.LogDir, "shuttle.log")
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := writePIDFile(cfg.PIDPath()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.PIDPath())

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	spool, err := capture.OpenSpool(cfg)
	if err != nil {
		logger.Error("open payload spool", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	bridge := notifications.NewBridge(notifier, logger)
	pipe := pipeline.New(cfg, store, spool, transport.NewClient(cfg),
		pipeline.WithEvents(bridge),
		pipeline.WithLogger(logger))
	gate := ingest.NewGate(cfg, spool, pipe, logger)
	watcher := ingest.NewWatcher(cfg, gate, logger)

	d, err := daemon.New(cfg, store, logger, pipe, gate, watcher, notifier, bridge)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"))
		return err
	}

	select {
	case <-signalCtx.Done():
	case <-d.ShutdownRequested():
	}
	logger.Info("shuttle daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
