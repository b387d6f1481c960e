package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProxySecret = "PROXY_SECRET_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvUpstreamKey = "UPSTREAM_API_KEY"
	EnvUpstreamURL = "UPSTREAM_URL"
	EnvPort        = "PORT"
	EnvLogLevel    = "LOG_LEVEL"
	DefaultEnvFile = ".env"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads a YAML config on top of Default. An empty path returns the
// defaults with the working directory as base.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.baseDir = wd
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.baseDir = filepath.Dir(absPath)

	return cfg, nil
}

// EnvLookup returns a lookup that prefers the process environment and falls
// back to the variables in envFile. A missing envFile is only an error when
// required is set.
func EnvLookup(envFile string, required bool) (LookupFunc, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("read env file: %w", err)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays environment settings and builds the credentials.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	inbound, _ := lookup(EnvProxySecret)
	upstream, ok := lookup(EnvUpstreamKey)
	if !ok || upstream == "" {
		upstream, _ = lookup(EnvOpenAIKey)
	}
	c.Credentials = NewCredentials(inbound, upstream)

	if raw, ok := lookup(EnvUpstreamURL); ok && raw != "" {
		c.Upstream.URL = raw
	}
	if level, ok := lookup(EnvLogLevel); ok && level != "" {
		c.Logging.Level = level
	}
	if port, ok := lookup(EnvPort); ok && port != "" {
		listen, err := withPort(c.Server.Listen, port)
		if err != nil {
			return fmt.Errorf("apply %s: %w", EnvPort, err)
		}
		c.Server.Listen = listen
	}
	return nil
}

func withPort(listen, port string) (string, error) {
	host := ""
	if listen != "" {
		h, _, err := net.SplitHostPort(listen)
		if err != nil {
			return "", err
		}
		host = h
	}
	return net.JoinHostPort(host, port), nil
}

func (c *Config) resolvePath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := c.baseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, p)
}
