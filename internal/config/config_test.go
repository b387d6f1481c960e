package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maskproxy.yaml")
	data := `configVersion: 1
upstream:
  url: http://127.0.0.1:8080
  timeout: 30s
proxy:
  allowPaths: ["/v1/chat/completions"]
logging:
  exchangeLog: logs/exchanges.jsonl
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.Upstream.URL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Upstream.ResponseHeaderTimeout, "default header timeout")
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Proxy.MaxBodyBytes)
	assert.Equal(t, []string{"/v1/chat/completions"}, cfg.Proxy.AllowPaths)
	assert.Equal(t, filepath.Join(dir, "logs", "exchanges.jsonl"), cfg.ResolvePath(cfg.Logging.ExchangeLog))
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultUpstreamURL, cfg.Upstream.URL)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upstream: [\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(fakeEnv(map[string]string{
		EnvProxySecret: "proxy-secret",
		EnvOpenAIKey:   "sk-upstream",
		EnvPort:        "8081",
		EnvLogLevel:    "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "proxy-secret", cfg.Credentials.Inbound())
	assert.Equal(t, "sk-upstream", cfg.Credentials.Upstream())
	assert.Equal(t, ":8081", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvPrefersUpstreamKey(t *testing.T) {
	cfg := Default()
	cfg.Server.Listen = "127.0.0.1:3000"
	err := cfg.ApplyEnv(fakeEnv(map[string]string{
		EnvOpenAIKey:   "sk-openai",
		EnvUpstreamKey: "sk-generic",
		EnvPort:        "9000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-generic", cfg.Credentials.Upstream(), "UPSTREAM_API_KEY wins")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen, "host kept")
}

func TestEnvLookupReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MASKPROXY_TEST_ONLY_SECRET=from-file\n"), 0o600))

	lookup, err := EnvLookup(path, true)
	require.NoError(t, err)

	v, ok := lookup("MASKPROXY_TEST_ONLY_SECRET")
	assert.True(t, ok)
	assert.Equal(t, "from-file", v)
}

func TestEnvLookupProcessEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MASKPROXY_TEST_ONLY_PRECEDENCE=from-file\n"), 0o600))
	t.Setenv("MASKPROXY_TEST_ONLY_PRECEDENCE", "from-env")

	lookup, err := EnvLookup(path, true)
	require.NoError(t, err)

	v, _ := lookup("MASKPROXY_TEST_ONLY_PRECEDENCE")
	assert.Equal(t, "from-env", v)
}

func TestEnvLookupMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.env")

	_, err := EnvLookup(missing, false)
	assert.NoError(t, err, "optional env file should not fail")

	_, err = EnvLookup(missing, true)
	assert.Error(t, err, "required env file")
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.ConfigVersion = 2
	cfg.Upstream.URL = "ftp://example.com"
	cfg.Proxy.MaxBodyBytes = 0
	cfg.Proxy.AllowPaths = []string{"v1"}
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)

	joined := strings.Join(verr.Problems, "\n")
	for _, want := range []string{
		"configVersion must be 1",
		"upstream.url invalid",
		"proxy.maxBodyBytes must be > 0",
		"proxy.allowPaths[0] must start with /",
		"logging.format must be json|console",
		EnvProxySecret + " is required",
	} {
		assert.Contains(t, joined, want)
	}
	assert.IsIncreasing(t, verr.Problems)
}

func TestValidateAllowsMissingUpstreamSecret(t *testing.T) {
	cfg := Default()
	cfg.Credentials = NewCredentials("proxy-secret", "")
	assert.NoError(t, cfg.Validate())
}

func TestCredentials(t *testing.T) {
	creds := NewCredentials("proxy-secret-123", "sk-abcdefghijkl")

	assert.True(t, creds.MatchInbound("proxy-secret-123"))
	assert.False(t, creds.MatchInbound("wrong-key"))
	assert.False(t, NewCredentials("", "x").MatchInbound(""), "empty inbound secret must never match")

	s := creds.String()
	assert.NotContains(t, s, "proxy-secret-123")
	assert.NotContains(t, s, "sk-abcdefghijkl")
	assert.Equal(t, "dial failed with [REDACTED]", creds.Scrub("dial failed with sk-abcdefghijkl"))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "<unset>", Redact(""))
	assert.Equal(t, "****", Redact("short"))
	assert.Equal(t, "****2345", Redact("abcdefghi12345"))
}
