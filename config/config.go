// Package config loads the gateway configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks the environment variables read by Load. A double
// underscore separates nesting levels: STS_SERVER__HTTPS_PORT sets
// server.https_port.
const EnvPrefix = "STS_"

// EnvironmentVariable selects the hosting environment when no STS_ENVIRONMENT
// override is set.
const EnvironmentVariable = "APP_ENVIRONMENT"

const Development = "development"

type Config struct {
	Environment string         `koanf:"environment"`
	Server      ServerConfig   `koanf:"server"`
	Log         LogConfig      `koanf:"log"`
	Auth        AuthConfig     `koanf:"auth"`
	Docs        DocsConfig     `koanf:"docs"`
	Probe       ProbeConfig    `koanf:"probe"`
	Mongo       MongoConfig    `koanf:"mongo"`
	Database    DatabaseConfig `koanf:"database"`
	Tracing     TracingConfig  `koanf:"tracing"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
	// HTTPSPort is where plaintext requests are redirected. Zero disables the
	// redirect.
	HTTPSPort         int           `koanf:"https_port"`
	RedirectHTTPS     bool          `koanf:"redirect_https"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig configures the bearer token validator. An empty secret rejects
// every token.
type AuthConfig struct {
	Secret   string `koanf:"secret"`
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`
}

type DocsConfig struct {
	Title          string `koanf:"title"`
	Version        string `koanf:"version"`
	Description    string `koanf:"description"`
	TermsOfService string `koanf:"terms_of_service"`
	ViewerTitle    string `koanf:"viewer_title"`
}

type ProbeConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	// Upstreams are HTTP dependencies checked for readiness, keyed by probe
	// name.
	Upstreams map[string]UpstreamConfig `koanf:"upstreams"`
}

// UpstreamConfig describes one HTTP readiness dependency. With Report set the
// upstream must answer with a Healthy readiness report of its own.
type UpstreamConfig struct {
	URL    string `koanf:"url"`
	Report bool   `koanf:"report"`
}

// MongoConfig enables a readiness probe against MongoDB when URI is set.
type MongoConfig struct {
	URI string `koanf:"uri"`
}

// DatabaseConfig enables a readiness probe against a database/sql driver
// when Driver is set.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type TracingConfig struct {
	// Exporter is "none" or "stdout".
	Exporter    string `koanf:"exporter"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"environment":                "production",
	"server.addr":                ":8080",
	"server.https_port":          0,
	"server.redirect_https":      true,
	"server.shutdown_timeout":    "15s",
	"server.read_header_timeout": "10s",
	"log.level":                  "info",
	"log.format":                 "json",
	"docs.title":                 "KMD Logic STS Bridge",
	"docs.version":               "v1",
	"docs.description":           "A simple example ASP.NET Core Web API",
	"docs.terms_of_service":      "https://example.com/terms",
	"docs.viewer_title":          "Momentum External Api",
	"probe.timeout":              "2s",
	"tracing.exporter":           "none",
	"tracing.service_name":       "stsgateway",
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() *Config {
	k, err := withDefaults()
	if err != nil {
		panic(err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Load reads .env (when present), the YAML file at path (when present) and
// STS_ variables over the built-in defaults. The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "config: load .env")
	}

	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.Wrapf(err, "config: default %s", key)
		}
	}
	return k, nil
}

func load(path string) (*Config, error) {
	k, err := withDefaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}

	if environment := os.Getenv(EnvironmentVariable); environment != "" {
		if err := k.Set("environment", environment); err != nil {
			return nil, errors.Wrap(err, "config: environment")
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, "config: read environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	return &cfg, nil
}

// IsDevelopment reports whether the diagnostic page should be mounted.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, Development)
}

// RedirectPort is the https port plaintext requests are sent to, or 0.
func (c *Config) RedirectPort() int {
	if !c.Server.RedirectHTTPS {
		return 0
	}
	return c.Server.HTTPSPort
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
	exporters  = []string{"none", "stdout"}
	dbDrivers  = []string{"sqlite"}
)

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Server.Addr) == "":
		return errors.New("config: server.addr is required")
	case c.Server.HTTPSPort < 0 || c.Server.HTTPSPort > 65535:
		return errors.Newf("config: server.https_port %d out of range", c.Server.HTTPSPort)
	case c.Server.ShutdownTimeout <= 0:
		return errors.New("config: server.shutdown_timeout must be positive")
	case c.Server.ReadHeaderTimeout <= 0:
		return errors.New("config: server.read_header_timeout must be positive")
	case !slices.Contains(logLevels, strings.ToLower(c.Log.Level)):
		return errors.Newf("config: log.level %q is not one of %v", c.Log.Level, logLevels)
	case !slices.Contains(logFormats, strings.ToLower(c.Log.Format)):
		return errors.Newf("config: log.format %q is not one of %v", c.Log.Format, logFormats)
	case c.Probe.Timeout <= 0:
		return errors.New("config: probe.timeout must be positive")
	case !slices.Contains(exporters, strings.ToLower(c.Tracing.Exporter)):
		return errors.Newf("config: tracing.exporter %q is not one of %v", c.Tracing.Exporter, exporters)
	case c.Database.Driver != "" && !slices.Contains(dbDrivers, c.Database.Driver):
		return errors.Newf("config: database.driver %q is not supported", c.Database.Driver)
	case c.Database.Driver != "" && c.Database.DSN == "":
		return errors.New("config: database.dsn is required when database.driver is set")
	case strings.TrimSpace(c.Docs.Title) == "" || strings.TrimSpace(c.Docs.Version) == "":
		return errors.New("config: docs.title and docs.version are required")
	}
	for name, upstream := range c.Probe.Upstreams {
		u, err := url.Parse(upstream.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Newf("config: probe.upstreams.%s.url %q is not an http(s) URL", name, upstream.URL)
		}
	}
	return nil
}
