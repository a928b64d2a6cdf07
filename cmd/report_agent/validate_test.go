package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand_ValidBody(t *testing.T) {
	path := writeJSON(t, `{"jobId":"report_1_abcdefgh","baseURL":"https://reports.example.com","brandId":"brand-1"}`)

	out, err := executeCommand(t, "validate", "--schema", "generate_report", "--json", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is a valid generate_report body")
}

func TestValidateCommand_InvalidBody(t *testing.T) {
	path := writeJSON(t, `{"brandId":"a/b"}`)

	out, err := executeCommand(t, "validate", "--schema", "create_job", "--json", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out, "brandId")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, err := executeCommand(t, "validate", "--schema", "create_job", "--json", "/nonexistent/body.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateCommand_MissingSchemaFlag(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "validate", "--json", "body.json")
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "required flag(s) \"schema\" not set")
}
