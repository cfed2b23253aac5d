package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace_OK(t *testing.T) {
	result := CheckFreeSpace("test", t.TempDir(), 1)
	if !result.Passed {
		t.Fatalf("expected pass for 1 MiB floor, got: %s", result.Detail)
	}
}

func TestCheckFreeSpace_Insufficient(t *testing.T) {
	// No test filesystem has an exbibyte free.
	result := CheckFreeSpace("test", t.TempDir(), 1<<40)
	if result.Passed {
		t.Fatal("expected failure for absurd floor")
	}
}

func endpointConfig(url, token string) *config.Config {
	cfg := config.Default()
	cfg.Uploader.Endpoint = url
	cfg.Uploader.AuthToken = token
	return &cfg
}

func TestCheckEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), endpointConfig(srv.URL, "good-token"))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), endpointConfig(srv.URL, "bad-token"))
	if result.Passed {
		t.Fatal("expected failure for rejected token")
	}
}

func TestCheckEndpoint_MethodNotAllowedStillReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), endpointConfig(srv.URL, "token"))
	if !result.Passed {
		t.Fatalf("expected 405 to count as reachable, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_MissingURL(t *testing.T) {
	result := CheckEndpoint(context.Background(), endpointConfig("", "token"))
	if result.Passed {
		t.Fatal("expected failure for missing endpoint")
	}
}

func TestCheckEndpoint_UnreadableTokenFile(t *testing.T) {
	cfg := config.Default()
	cfg.Uploader.Endpoint = "http://localhost:1"
	cfg.Uploader.AuthTokenFile = filepath.Join(t.TempDir(), "absent-token")

	result := CheckEndpoint(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for unreadable token file")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.SpoolDir = filepath.Join(base, "spool")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Uploader.Endpoint = ""
	cfg.Workflow.MinFreeSpaceMiB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	// Data, spool content, spool inbox, and log directory checks.
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
		if !r.Fatal {
			t.Errorf("directory check %q should be fatal", r.Name)
		}
	}
}

func TestRunAll_IncludesEndpointWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.SpoolDir = filepath.Join(base, "spool")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Uploader.Endpoint = srv.URL
	cfg.Uploader.AuthToken = "test"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Collector endpoint" {
			found = true
			if !r.Passed {
				t.Errorf("endpoint check failed: %s", r.Detail)
			}
			if r.Fatal {
				t.Error("endpoint check should not be fatal")
			}
		}
	}
	if !found {
		t.Fatal("expected endpoint check in results")
	}
}

func TestProbeSpool(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b"), make([]byte, 50), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".incoming-tmp"), make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := ProbeSpool(dir)
	if probe.Files != 2 {
		t.Fatalf("expected 2 payloads, got %d", probe.Files)
	}
	if probe.Bytes != 150 {
		t.Fatalf("expected 150 bytes, got %d", probe.Bytes)
	}

	empty := ProbeSpool(filepath.Join(dir, "missing"))
	if empty.Files != 0 || empty.Bytes != 0 {
		t.Fatalf("expected empty probe for missing dir, got %+v", empty)
	}
}
