package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

// APIKeyEnv names the environment variable holding the backend API key
const APIKeyEnv = "LIFT_BACKEND_API_KEY"

type Config struct {
	DBPath         string        `toml:"db_path"`
	Port           int           `toml:"port"`
	MetricsPort    int           `toml:"metrics_port"`
	UserID         string        `toml:"user_id"`
	BackendURL     string        `toml:"backend_url"`
	SyncInterval   time.Duration `toml:"sync_interval"`
	NotifyInterval time.Duration `toml:"notify_interval"`
	NoSync         bool          `toml:"no_sync"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch section(env) {
	case "development":
		return t.Development, nil
	case "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// section maps an env name or alias to its table name
func section(env string) string {
	switch strings.ToLower(env) {
	case "dev", "development":
		return "development"
	case "prod", "production":
		return "production"
	default:
		return ""
	}
}

// File is one env section read from a config file. It remembers which keys
// the section spelled out, so an explicit zero such as port = 0 still counts.
type File struct {
	Config
	keys map[string]bool
}

// IsDefined reports whether the section set the toml key
func (f *File) IsDefined(key string) bool {
	return f.keys[key]
}

// fileKeys maps flag names to the toml keys of the same setting
var fileKeys = map[string]string{
	"db":              "db_path",
	"port":            "port",
	"metrics-port":    "metrics_port",
	"user":            "user_id",
	"backend-url":     "backend_url",
	"sync-interval":   "sync_interval",
	"notify-interval": "notify_interval",
	"no-sync":         "no_sync",
}

// Defaults returns the settings used when neither a file nor a flag sets them
func Defaults() Config {
	return Config{
		DBPath:         "lift.db",
		Port:           8080,
		MetricsPort:    0,
		UserID:         "default",
		SyncInterval:   15 * time.Minute,
		NotifyInterval: 6 * time.Hour,
	}
}

// Load reads the env section of a TOML file. Durations are written as
// strings such as "15m".
func Load(env, path string) (*File, error) {
	var t Toml
	md, err := toml.DecodeFile(path, &t)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%s has no [%s] section", path, strings.ToLower(env))
	}

	file := &File{Config: *cfg, keys: make(map[string]bool)}
	for _, key := range md.Keys() {
		if len(key) == 2 && strings.EqualFold(key[0], section(env)) {
			file.keys[key[1]] = true
		}
	}
	return file, nil
}

// RuntimeConfig holds the resolved configuration for one run
type RuntimeConfig struct {
	Config
	APIKey string
}

// Resolve layers file values over defaults and then flags over both. Only
// keys the file spells out apply, zero or not. changed reports whether a flag
// was set explicitly on the command line. A nil file is skipped.
func Resolve(file *File, flags Config, changed func(name string) bool) *RuntimeConfig {
	cfg := Defaults()
	if file != nil {
		overlay(&cfg, file.Config, func(name string) bool { return file.IsDefined(fileKeys[name]) })
	}
	overlay(&cfg, flags, changed)
	return &RuntimeConfig{
		Config: cfg,
		APIKey: strings.TrimSpace(os.Getenv(APIKeyEnv)),
	}
}

// overlay copies the fields of src whose flag name set accepts into dst
func overlay(dst *Config, src Config, set func(name string) bool) {
	if set("db") {
		dst.DBPath = src.DBPath
	}
	if set("port") {
		dst.Port = src.Port
	}
	if set("metrics-port") {
		dst.MetricsPort = src.MetricsPort
	}
	if set("user") {
		dst.UserID = src.UserID
	}
	if set("backend-url") {
		dst.BackendURL = src.BackendURL
	}
	if set("sync-interval") {
		dst.SyncInterval = src.SyncInterval
	}
	if set("notify-interval") {
		dst.NotifyInterval = src.NotifyInterval
	}
	if set("no-sync") {
		dst.NoSync = src.NoSync
	}
}

// SyncEnabled reports whether the backend should be polled
func (c *RuntimeConfig) SyncEnabled() bool {
	return !c.NoSync && c.BackendURL != ""
}

// Validate checks the resolved settings and reports every problem at once
func (c *RuntimeConfig) Validate() error {
	var errs error
	if c.DBPath == "" {
		errs = multierr.Append(errs, errors.New("db path is required"))
	}
	if c.Port < 0 {
		errs = multierr.Append(errs, fmt.Errorf("port must be >= 0, got %d", c.Port))
	}
	if c.MetricsPort < 0 {
		errs = multierr.Append(errs, fmt.Errorf("metrics port must be >= 0, got %d", c.MetricsPort))
	}
	if c.MetricsPort != 0 && c.MetricsPort == c.Port {
		errs = multierr.Append(errs, fmt.Errorf("metrics port %d collides with the MCP port", c.MetricsPort))
	}
	if strings.TrimSpace(c.UserID) == "" {
		errs = multierr.Append(errs, errors.New("user id is required"))
	}
	if c.SyncInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("sync interval must be positive, got %s", c.SyncInterval))
	}
	if c.NotifyInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("notify interval must be positive, got %s", c.NotifyInterval))
	}
	if c.SyncEnabled() {
		if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("backend url %q is not an absolute URL", c.BackendURL))
		}
		if c.APIKey == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s must be set to sync from %s (or pass --no-sync)", APIKeyEnv, c.BackendURL))
		}
	}
	return errs
}
