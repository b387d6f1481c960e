package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

// Validate checks the configuration. A missing upstream secret is not a
// problem here: the proxy starts and answers every request with a
// configuration error instead.
func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if err := validateListen(c.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			v.Add("server.tls.certFile required when tls.enabled is true")
		}
		if c.Server.TLS.KeyFile == "" {
			v.Add("server.tls.keyFile required when tls.enabled is true")
		}
		if c.Server.TLS.CertFile != "" {
			if err := requireFile(c.resolvePath(c.Server.TLS.CertFile)); err != nil {
				v.Add("server.tls.certFile invalid: %v", err)
			}
		}
		if c.Server.TLS.KeyFile != "" {
			if err := requireFile(c.resolvePath(c.Server.TLS.KeyFile)); err != nil {
				v.Add("server.tls.keyFile invalid: %v", err)
			}
		}
	}

	if c.Upstream.URL == "" {
		v.Add("upstream.url is required")
	} else if err := validateURL(c.Upstream.URL); err != nil {
		v.Add("upstream.url invalid: %v", err)
	}
	if c.Upstream.Timeout <= 0 {
		v.Add("upstream.timeout must be > 0")
	}
	if c.Upstream.ResponseHeaderTimeout < 0 {
		v.Add("upstream.responseHeaderTimeout must be >= 0")
	}

	if c.Proxy.MaxBodyBytes <= 0 {
		v.Add("proxy.maxBodyBytes must be > 0")
	}
	for i, prefix := range c.Proxy.AllowPaths {
		if !strings.HasPrefix(prefix, "/") {
			v.Add("proxy.allowPaths[%d] must start with /", i)
		}
	}

	if c.CORS.Enabled && len(c.CORS.AllowedOrigins) == 0 {
		v.Add("cors.allowedOrigins required when cors.enabled is true")
	}
	if c.CORS.MaxAge < 0 {
		v.Add("cors.maxAge must be >= 0")
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			v.Add("logging.level invalid: %v", err)
		}
	}
	switch c.Logging.Format {
	case "", FormatJSON, FormatConsole:
	default:
		v.Add("logging.format must be json|console")
	}
	if c.Logging.ExchangeLog != "" {
		if err := ensureWritable(c.resolvePath(c.Logging.ExchangeLog)); err != nil {
			v.Add("logging.exchangeLog invalid: %v", err)
		}
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	if !c.Credentials.HasInbound() {
		v.Add("%s is required", EnvProxySecret)
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("must include scheme and host")
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func ensureWritable(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		// created on open
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	file, err := os.CreateTemp(dir, "maskproxy-validate-*")
	if err != nil {
		return err
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
