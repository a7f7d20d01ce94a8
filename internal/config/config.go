// Package config handles application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/internal/syncer"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Tokenizer settings
	Scan ScanConfig `mapstructure:"scan" yaml:"scan"`

	// Scan ledger database
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`

	// HTTP API settings
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Remote source access
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Scheduled rescans
	Sync SyncConfig `mapstructure:"sync" yaml:"sync"`

	// Logging
	Log LogConfig `mapstructure:"log" yaml:"log"`

	file string
}

// File returns the path of the file the config was read from, or "" when
// only defaults and the environment applied.
func (c *Config) File() string {
	return c.file
}

type ScanConfig struct {
	Dialect  string `mapstructure:"dialect" yaml:"dialect"`
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
}

type LedgerConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

type APIConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer" yaml:"issuer"`
	Audience     string        `mapstructure:"audience" yaml:"audience"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

type SourceConfig struct {
	S3Region    string        `mapstructure:"s3_region" yaml:"s3_region"`
	S3Endpoint  string        `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey string        `mapstructure:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string        `mapstructure:"s3_secret_key" yaml:"s3_secret_key"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
}

type SyncConfig struct {
	Schedule string   `mapstructure:"schedule" yaml:"schedule"`
	Paths    []string `mapstructure:"paths" yaml:"paths"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Dialect:  string(lexer.DialectGeneric),
			Encoding: lexer.DefaultEncoding,
		},
		Ledger: LedgerConfig{
			MaxConnections: 4,
			ConnectTimeout: 10 * time.Second,
		},
		API: APIConfig{
			ListenAddr:   ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 16 << 20, // 16MB
		},
		Source: SourceConfig{
			S3Region:    "us-east-1",
			HTTPTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Schedule: "@every 15m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDir is the per-user configuration directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sqlextras"
	}
	return filepath.Join(home, ".sqlextras")
}

// DefaultPath is where init and config set write the configuration.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// settings flattens the config into dotted viper keys.
func (c *Config) settings() map[string]interface{} {
	return map[string]interface{}{
		"scan.dialect":           c.Scan.Dialect,
		"scan.encoding":          c.Scan.Encoding,
		"ledger.url":             c.Ledger.URL,
		"ledger.max_connections": c.Ledger.MaxConnections,
		"ledger.connect_timeout": c.Ledger.ConnectTimeout,
		"api.listen_addr":        c.API.ListenAddr,
		"api.jwt_secret":         c.API.JWTSecret,
		"api.issuer":             c.API.Issuer,
		"api.audience":           c.API.Audience,
		"api.read_timeout":       c.API.ReadTimeout,
		"api.write_timeout":      c.API.WriteTimeout,
		"api.max_body_bytes":     c.API.MaxBodyBytes,
		"source.s3_region":       c.Source.S3Region,
		"source.s3_endpoint":     c.Source.S3Endpoint,
		"source.s3_access_key":   c.Source.S3AccessKey,
		"source.s3_secret_key":   c.Source.S3SecretKey,
		"source.http_timeout":    c.Source.HTTPTimeout,
		"sync.schedule":          c.Sync.Schedule,
		"sync.paths":             c.Sync.Paths,
		"log.level":              c.Log.Level,
		"log.format":             c.Log.Format,
	}
}

// Redacted flattens the config into dotted keys for display, with secrets
// masked and durations spelled out.
func (c *Config) Redacted() map[string]interface{} {
	out := c.settings()
	for key, value := range out {
		if d, ok := value.(time.Duration); ok {
			out[key] = d.String()
		}
	}
	for _, key := range []string{"api.jwt_secret", "source.s3_secret_key"} {
		if out[key] != "" {
			out[key] = "****"
		}
	}
	out["ledger.url"] = RedactURL(c.Ledger.URL)
	return out
}

// RedactURL masks the password of a connection URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	return u.Redacted()
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	s := DefaultConfig().settings()
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load loads configuration from file, env vars, and flags
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath("/etc/sqlextras")
	}

	// Environment variables
	v.SetEnvPrefix("sqlextras")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()

	return &cfg, nil
}

// loadEnvFile exports the variables of a dotenv file when it exists. Variables
// already set in the environment win.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Save writes the config to a file
func (c *Config) Save(path string) error {
	v := viper.New()
	for key, value := range c.settings() {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

// Set updates one key in the config file at path, creating the file when it
// does not exist yet.
func Set(path, key, value string) error {
	known := false
	for _, k := range Keys() {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
	}

	cfg, err := Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	v := viper.New()
	for k, val := range cfg.settings() {
		v.Set(k, val)
	}
	if key == "sync.paths" {
		v.Set(key, SplitList(value))
	} else {
		v.Set(key, value)
	}

	var updated Config
	if err := v.Unmarshal(&updated); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	return updated.Save(path)
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if _, err := lexer.ParseDialect(c.Scan.Dialect); err != nil {
		return fmt.Errorf("%w: scan.dialect: %v", ErrInvalidConfig, err)
	}
	if _, err := lexer.LookupEncoding(c.Scan.Encoding); err != nil {
		return fmt.Errorf("%w: scan.encoding: %v", ErrInvalidConfig, err)
	}
	if c.Ledger.MaxConnections < 1 {
		return fmt.Errorf("%w: ledger.max_connections must be positive", ErrInvalidConfig)
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("%w: api.listen_addr is required", ErrInvalidConfig)
	}
	if c.Sync.Schedule != "" {
		if _, err := syncer.ParseSchedule(c.Sync.Schedule); err != nil {
			return fmt.Errorf("%w: sync.schedule: %v", ErrInvalidConfig, err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("%w: log.format must be text, json or logfmt", ErrInvalidConfig)
	}
	return nil
}

