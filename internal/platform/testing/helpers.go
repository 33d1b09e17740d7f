// Package testing holds helpers shared by package tests.
package testing

import (
	"path/filepath"
	"testing"

	"ar-scan-go/internal/platform/config"
	"ar-scan-go/internal/platform/logging"
)

// SetupTestConfig returns the defaults with every writable path inside the
// test's temp dir.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "debug"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Audio.TempDir = dir
	cfg.Web.StaticDir = ""
	return cfg
}

// SetupTestLogger returns a file-backed logger closed at test end.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}
