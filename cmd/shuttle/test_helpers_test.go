package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/daemon"
	"shuttle/internal/ingest"
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/pipeline"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
	"shuttle/internal/transport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

// setupCLITestEnv wires a queue store and an answering IPC server around a
// daemon that has not been started, so commands exercise both transports
// without a live upload worker racing the assertions.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(collector.URL))

	configPath := filepath.Join(homeDir, ".config", "shuttle", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	spool, err := capture.OpenSpool(cfg)
	if err != nil {
		t.Fatalf("capture.OpenSpool: %v", err)
	}

	logger := logging.NewNop()
	notifier := notifications.NewService(cfg)
	bridge := notifications.NewBridge(notifier, logger)
	pipe := pipeline.New(cfg, store, spool, transport.NewClient(cfg),
		pipeline.WithLogger(logger),
		pipeline.WithEvents(bridge),
	)
	gate := ingest.NewGate(cfg, spool, pipe, logger)
	watcher := ingest.NewWatcher(cfg, gate, logger)

	d, err := daemon.New(cfg, store, logger, pipe, gate, watcher, notifier, bridge)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable in sandbox: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return env
}

// goOffline tears down the IPC server so subsequent CLI invocations take the
// direct-store fallback paths.
func (env *cliTestEnv) goOffline(t *testing.T) {
	t.Helper()
	env.cancel()
	env.server.Close()
	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(env.socketPath)
		return os.IsNotExist(err)
	})
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nspool_dir = %q\nlog_dir = %q\n\n[uploader]\nendpoint = %q\nauth_token = %q\n\n[notifications]\nqueue = false\nerrors = false\n",
		cfg.Paths.DataDir,
		cfg.Paths.SpoolDir,
		cfg.Paths.LogDir,
		cfg.Uploader.Endpoint,
		cfg.Uploader.AuthToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
