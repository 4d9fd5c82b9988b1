// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"io/fs"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sigil-dev/quarry/internal/policy"
	"github.com/sigil-dev/quarry/internal/secrets"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// EnvPrefix prefixes every environment override (QUARRY_WAREHOUSE_DSN).
const EnvPrefix = "QUARRY"

// Transport modes.
const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// Config is the top-level quarry configuration.
type Config struct {
	Transport   TransportConfig   `mapstructure:"transport"`
	Warehouse   WarehouseConfig   `mapstructure:"warehouse"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Lifecycle   LifecycleConfig   `mapstructure:"lifecycle"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// TransportConfig selects how calls arrive.
type TransportConfig struct {
	Mode           string   `mapstructure:"mode"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Path           string   `mapstructure:"path"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// ListenAddr joins host and port.
func (t TransportConfig) ListenAddr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// WarehouseConfig locates the data warehouse.
type WarehouseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// PingTimeout bounds each connection attempt made at startup.
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// VectorStoreConfig configures the similarity-search service. An empty Name
// leaves vector operations disabled.
type VectorStoreConfig struct {
	Name       string         `mapstructure:"name"`
	Backend    string         `mapstructure:"backend"`
	Endpoint   string         `mapstructure:"endpoint"`
	Username   string         `mapstructure:"username"`
	Password   string         `mapstructure:"password"`
	DBPath     string         `mapstructure:"db_path"`
	Dimensions int            `mapstructure:"dimensions"`
	Embedder   EmbedderConfig `mapstructure:"embedder"`
	// ConnectTimeout bounds the one initial connection attempt.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// EmbedderConfig selects the embedder for the local vector store.
type EmbedderConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// DefinitionsConfig points at declarative operation definitions.
type DefinitionsConfig struct {
	Dir string `mapstructure:"dir"`
}

// DispatchConfig bounds each call and sets the operation policy. Zero
// CallTimeout disables the timeout.
type DispatchConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// Allow and Deny are operation name globs ("dba_*"). Deny wins; an
	// empty Allow permits everything not denied.
	Allow []string `mapstructure:"allow"`
	Deny  []string `mapstructure:"deny"`
	// ResultScan is off, flag, redact or block.
	ResultScan string `mapstructure:"result_scan"`
}

// LifecycleConfig controls process-level behavior.
type LifecycleConfig struct {
	LivenessMarker string `mapstructure:"liveness_marker"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// aliases maps config keys to the deployment variables the server has
// historically been configured with. QUARRY_* always wins.
var aliases = map[string]string{
	"transport.mode":   "MCP_TRANSPORT",
	"transport.host":   "MCP_HOST",
	"transport.port":   "MCP_PORT",
	"transport.path":   "MCP_PATH",
	"warehouse.dsn":    "DATABASE_URI",
	"vectorstore.name": "VS_NAME",
}

// SetDefaults registers the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("transport.mode", ModeStdio)
	v.SetDefault("transport.host", "localhost")
	v.SetDefault("transport.port", 8001)
	v.SetDefault("transport.path", "/mcp/")
	v.SetDefault("transport.cors_origins", []string{})
	v.SetDefault("transport.rate_limit_rps", 0)
	v.SetDefault("transport.rate_limit_burst", 20)
	v.SetDefault("warehouse.driver", "sqlite3")
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("warehouse.ping_timeout", 30*time.Second)
	v.SetDefault("vectorstore.name", "")
	v.SetDefault("vectorstore.backend", "http")
	v.SetDefault("vectorstore.endpoint", "")
	v.SetDefault("vectorstore.username", "")
	v.SetDefault("vectorstore.password", "")
	v.SetDefault("vectorstore.db_path", "quarry-vectors.db")
	v.SetDefault("vectorstore.dimensions", 384)
	v.SetDefault("vectorstore.connect_timeout", 30*time.Second)
	v.SetDefault("vectorstore.embedder.provider", "hash")
	v.SetDefault("vectorstore.embedder.model", "")
	v.SetDefault("vectorstore.embedder.api_key", "")
	v.SetDefault("vectorstore.embedder.endpoint", "")
	v.SetDefault("definitions.dir", ".")
	v.SetDefault("dispatch.call_timeout", 5*time.Minute)
	v.SetDefault("dispatch.allow", []string{})
	v.SetDefault("dispatch.deny", []string{})
	v.SetDefault("dispatch.result_scan", "flag")
	v.SetDefault("lifecycle.liveness_marker", "/tmp/.alive")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.dir", "logs")
}

// SetupEnv enables QUARRY_* overrides and binds the deployment aliases.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range aliases {
		native := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// BindEnv only fails on an empty key.
		_ = v.BindEnv(key, native, alias)
	}
}

// LoadDotEnv loads variables from the named .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return quarryerr.Wrapf(err, quarryerr.CodeConfigParseInvalidFormat, "loading %s", p)
		}
	}
	return nil
}

// FromViper resolves keyring references held in v, decodes it and validates
// the result.
func FromViper(v *viper.Viper, store secrets.Store) (*Config, error) {
	if store != nil {
		if err := secrets.ResolveViper(v, store); err != nil {
			return nil, quarryerr.Wrap(err, quarryerr.CodeConfigValidateInvalidValue, "resolving secrets")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeConfigParseInvalidFormat, "decoding config")
	}
	if cfg.Transport.Mode == "streamable-http" {
		cfg.Transport.Mode = ModeHTTP
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, quarryerr.Errorf(quarryerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from path (optional) with defaults and
// environment overrides applied. It is the non-CLI entry point.
func Load(path string, store secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, quarryerr.Wrapf(err, quarryerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}
	return FromViper(v, store)
}

// Validate checks the configuration for logical errors. It returns every
// problem found rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateTransport()...)
	errs = append(errs, c.validateWarehouse()...)
	errs = append(errs, c.validateVectorStore()...)
	errs = append(errs, c.validateDispatch()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func invalid(format string, args ...any) error {
	return quarryerr.Errorf(quarryerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateTransport() []error {
	var errs []error

	switch c.Transport.Mode {
	case ModeStdio, ModeHTTP:
	default:
		errs = append(errs, invalid("transport.mode must be one of [stdio, http], got %q", c.Transport.Mode))
	}

	if c.Transport.Mode == ModeHTTP {
		if c.Transport.Port < 1 || c.Transport.Port > 65535 {
			errs = append(errs, invalid("transport.port must be between 1 and 65535, got %d", c.Transport.Port))
		}
		if !strings.HasPrefix(c.Transport.Path, "/") {
			errs = append(errs, invalid("transport.path must start with /, got %q", c.Transport.Path))
		}
	}

	if c.Transport.RateLimitRPS < 0 {
		errs = append(errs, invalid("transport.rate_limit_rps must not be negative, got %g", c.Transport.RateLimitRPS))
	}
	if c.Transport.RateLimitRPS > 0 && c.Transport.RateLimitBurst <= 0 {
		errs = append(errs, invalid("transport.rate_limit_burst must be positive when rate_limit_rps is set, got %d", c.Transport.RateLimitBurst))
	}
	return errs
}

func (c *Config) validateWarehouse() []error {
	var errs []error
	if c.Warehouse.Driver == "" {
		errs = append(errs, invalid("warehouse.driver must not be empty"))
	}
	if c.Warehouse.PingTimeout < 0 {
		errs = append(errs, invalid("warehouse.ping_timeout must not be negative, got %s", c.Warehouse.PingTimeout))
	}
	return errs
}

func (c *Config) validateVectorStore() []error {
	vs := c.VectorStore
	if vs.Name == "" {
		return nil
	}

	var errs []error
	if vs.ConnectTimeout < 0 {
		errs = append(errs, invalid("vectorstore.connect_timeout must not be negative, got %s", vs.ConnectTimeout))
	}
	switch vs.Backend {
	case "http":
		if vs.Endpoint == "" {
			errs = append(errs, invalid("vectorstore.endpoint is required for the http backend"))
		}
	case "sqlite-vec":
		if vs.DBPath == "" {
			errs = append(errs, invalid("vectorstore.db_path is required for the sqlite-vec backend"))
		}
		if vs.Dimensions <= 0 {
			errs = append(errs, invalid("vectorstore.dimensions must be greater than 0, got %d", vs.Dimensions))
		}
		if !slices.Contains([]string{"", "hash", "openai", "google"}, vs.Embedder.Provider) {
			errs = append(errs, invalid("vectorstore.embedder.provider must be one of [hash, openai, google], got %q", vs.Embedder.Provider))
		}
	default:
		errs = append(errs, invalid("vectorstore.backend must be one of [http, sqlite-vec], got %q", vs.Backend))
	}
	return errs
}

func (c *Config) validateDispatch() []error {
	var errs []error
	if c.Dispatch.CallTimeout < 0 {
		errs = append(errs, invalid("dispatch.call_timeout must not be negative, got %s", c.Dispatch.CallTimeout))
	}
	if _, err := policy.NewAccess(c.Dispatch.Allow, c.Dispatch.Deny); err != nil {
		errs = append(errs, invalid("dispatch.allow/deny: %v", err))
	}
	if _, err := policy.ParseMode(c.Dispatch.ResultScan); err != nil {
		errs = append(errs, invalid("dispatch.result_scan: %v", err))
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}
	return errs
}
