// Package testutils holds helpers shared by integration tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/logging"
)

// ConfigForTests applies the variables of the project's .env.test file, when
// there is one, and returns the resulting configuration.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	// 1. Find project root by looking for go.mod to reliably locate .env.test
	path, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			break
		}
		if path == filepath.Dir(path) {
			t.Fatalf("could not find project root with go.mod")
		}
		path = filepath.Dir(path)
	}

	// 2. Read the .env.test file and apply it with t.Setenv so it is undone
	// after the test.
	env, err := godotenv.Read(filepath.Join(path, ".env.test"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to load .env.test file: %v", err)
	}
	for key, value := range env {
		t.Setenv(key, value)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("invalid test configuration: %v", err)
	}
	logging.New(cfg.GetLogFormat(), cfg.GetLogLevel())
	return cfg
}
