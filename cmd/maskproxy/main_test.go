package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestMaskCommandStdin(t *testing.T) {
	out, stderr, err := execute(t, `{"content":"mail me at jane@example.com or 010-1234-5678"}`, "mask", "--stats")
	require.NoError(t, err)
	assert.Equal(t, `{"content":"mail me at ja***@example.com or 010-****-****"}`+"\n", out)
	assert.Contains(t, stderr, "email: 1")
	assert.Contains(t, stderr, "phone: 1")
	assert.Contains(t, stderr, "total: 2")
}

func TestMaskCommandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`[800101-1234567, "x"]`), 0o600))

	_, _, err := execute(t, "", "mask", path)
	require.Error(t, err, "bare digits are not valid JSON here")

	require.NoError(t, os.WriteFile(path, []byte(`["800101-1234567", 42]`), 0o600))
	out, _, err := execute(t, "", "mask", path)
	require.NoError(t, err)
	assert.Equal(t, `["800101-*******",42]`+"\n", out)
}

func TestValidateCommand(t *testing.T) {
	t.Setenv("PROXY_SECRET_KEY", "proxy-secret")
	out, _, err := execute(t, "", "validate", "--env-file", "")
	require.NoError(t, err)
	assert.Equal(t, "config ok\n", out)
}

func TestValidateCommandMissingEnvFile(t *testing.T) {
	_, _, err := execute(t, "", "validate", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "version=dev"))
}

func TestReportCommandUsesConfiguredLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "exchanges.jsonl")
	line := `{"ts":"2026-01-02T03:04:05Z","outcome":"forwarded","status_code":200,"path":"/v1/chat/completions","redactions":{"email":2}}` + "\n"
	require.NoError(t, os.WriteFile(logPath, []byte(line), 0o600))

	cfgPath := filepath.Join(dir, "maskproxy.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("configVersion: 1\nlogging:\n  exchangeLog: exchanges.jsonl\n"), 0o600))

	outPath := filepath.Join(dir, "report.json")
	_, _, err := execute(t, "", "report", "--config", cfgPath, "--format", "json", "--out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"forwarded": 1`)
	assert.Contains(t, string(data), `"redactions": 2`)
}

func TestReportCommandWithoutLog(t *testing.T) {
	_, _, err := execute(t, "", "report")
	require.Error(t, err)
}
