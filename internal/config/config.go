package config

import "time"

type Config struct {
	ConfigVersion int            `yaml:"configVersion"`
	Server        ServerConfig   `yaml:"server"`
	Upstream      UpstreamConfig `yaml:"upstream"`
	Proxy         ProxyConfig    `yaml:"proxy"`
	CORS          CORSConfig     `yaml:"cors"`
	Logging       LoggingConfig  `yaml:"logging"`
	Metrics       MetricsConfig  `yaml:"metrics"`

	// Credentials come from the environment only.
	Credentials Credentials `yaml:"-"`

	baseDir string `yaml:"-"`
}

type ServerConfig struct {
	Listen string    `yaml:"listen"`
	TLS    TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

type UpstreamConfig struct {
	URL                   string        `yaml:"url"`
	Timeout               time.Duration `yaml:"timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout"`
}

type ProxyConfig struct {
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	// AllowPaths restricts forwarding to these path prefixes. Empty forwards
	// every path.
	AllowPaths []string `yaml:"allowPaths"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	AllowedHeaders []string `yaml:"allowedHeaders"`
	MaxAge         int      `yaml:"maxAge"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ExchangeLog string `yaml:"exchangeLog"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

const (
	DefaultUpstreamURL  = "https://api.openai.com"
	DefaultListen       = ":3000"
	DefaultMaxBodyBytes = 10 << 20

	FormatJSON    = "json"
	FormatConsole = "console"
)

// Default returns a complete configuration that needs only credentials.
func Default() *Config {
	return &Config{
		ConfigVersion: 1,
		Server:        ServerConfig{Listen: DefaultListen},
		Upstream: UpstreamConfig{
			URL:                   DefaultUpstreamURL,
			Timeout:               5 * time.Minute,
			ResponseHeaderTimeout: 60 * time.Second,
		},
		Proxy: ProxyConfig{MaxBodyBytes: DefaultMaxBodyBytes},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		},
		Logging: LoggingConfig{Level: "info", Format: FormatJSON},
		Metrics: MetricsConfig{Enabled: false, Listen: ":9090"},
	}
}

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}
