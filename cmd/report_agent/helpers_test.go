package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// getBinaryPath returns the path to the report_agent binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "report_agent"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/report_agent ./cmd/report_agent'", binaryPath)
	}

	return binaryPath
}

// executeCommand runs rootCmd in-process with args and returns its combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// useSQLite points the job store at a fresh database under a temp dir.
func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("LOG_MODE", "production")
	return path
}

// runBinary runs the built CLI and returns its combined output.
func runBinary(binaryPath string, args ...string) (string, error) {
	output, err := exec.Command(binaryPath, args...).CombinedOutput()
	return string(output), err
}
