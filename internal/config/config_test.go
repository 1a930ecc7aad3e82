package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleToml = `
[development]
db_path = "dev.db"
port = 0
user_id = "alice"
sync_interval = "1m"

[production]
db_path = "/var/lib/lift/lift.db"
port = 9090
metrics_port = 9100
backend_url = "https://api.example.com/v1"
notify_interval = "12h"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleToml), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t)

	dev, err := Load("dev", path)
	require.NoError(t, err)
	assert.Equal(t, "dev.db", dev.DBPath)
	assert.Equal(t, "alice", dev.UserID)
	assert.Equal(t, time.Minute, dev.SyncInterval)
	assert.True(t, dev.IsDefined("port"))
	assert.False(t, dev.IsDefined("metrics_port"))

	prod, err := Load("Production", path)
	require.NoError(t, err)
	assert.Equal(t, 9090, prod.Port)
	assert.Equal(t, 12*time.Hour, prod.NotifyInterval)

	_, err = Load("staging", path)
	assert.ErrorContains(t, err, "unknown env")

	_, err = Load("dev", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_MissingSection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[development]\nport = 1\n"), 0o600))

	_, err := Load("production", path)
	assert.ErrorContains(t, err, "no [production] section")
}

func TestResolve(t *testing.T) {
	path := writeConfig(t)
	prod, err := Load("prod", path)
	require.NoError(t, err)

	t.Setenv(APIKeyEnv, " secret ")

	flags := Config{Port: 7000, UserID: "bob", DBPath: "ignored.db"}
	changed := map[string]bool{"port": true, "user": true}
	cfg := Resolve(prod, flags, func(name string) bool { return changed[name] })

	assert.Equal(t, "/var/lib/lift/lift.db", cfg.DBPath)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 9100, cfg.MetricsPort)
	assert.Equal(t, "bob", cfg.UserID)
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 12*time.Hour, cfg.NotifyInterval)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.True(t, cfg.SyncEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestResolve_ExplicitZeroFlag(t *testing.T) {
	t.Parallel()

	file := &File{Config: Config{Port: 9090}, keys: map[string]bool{"port": true}}
	cfg := Resolve(file, Config{Port: 0}, func(name string) bool { return name == "port" })
	assert.Equal(t, 0, cfg.Port)

	cfg = Resolve(nil, Config{}, func(string) bool { return false })
	assert.Equal(t, Defaults(), cfg.Config)
}

func TestResolve_FileZeroValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		toml  string
		check func(t *testing.T, cfg *RuntimeConfig)
	}{
		{
			name: "port zero selects stdio",
			toml: "[development]\nport = 0\n",
			check: func(t *testing.T, cfg *RuntimeConfig) {
				assert.Equal(t, 0, cfg.Port)
				assert.Equal(t, Defaults().DBPath, cfg.DBPath)
			},
		},
		{
			name: "no_sync false is kept",
			toml: "[development]\nno_sync = false\nbackend_url = \"https://api.example.com\"\n",
			check: func(t *testing.T, cfg *RuntimeConfig) {
				assert.False(t, cfg.NoSync)
				assert.True(t, cfg.SyncEnabled())
			},
		},
		{
			name: "empty user clears the default",
			toml: "[development]\nuser_id = \"\"\n",
			check: func(t *testing.T, cfg *RuntimeConfig) {
				assert.Empty(t, cfg.UserID)
				assert.ErrorContains(t, cfg.Validate(), "user id is required")
			},
		},
		{
			name: "absent keys keep defaults",
			toml: "[development]\nmetrics_port = 9100\n",
			check: func(t *testing.T, cfg *RuntimeConfig) {
				assert.Equal(t, 9100, cfg.MetricsPort)
				assert.Equal(t, Defaults().Port, cfg.Port)
				assert.Equal(t, Defaults().SyncInterval, cfg.SyncInterval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.toml), 0o600))
			file, err := Load("dev", path)
			require.NoError(t, err)

			tt.check(t, Resolve(file, Config{}, func(string) bool { return false }))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *RuntimeConfig {
		return &RuntimeConfig{Config: Defaults()}
	}

	tests := []struct {
		name    string
		mutate  func(c *RuntimeConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*RuntimeConfig) {}},
		{name: "negative port", mutate: func(c *RuntimeConfig) { c.Port = -1 }, wantErr: "port must be >= 0"},
		{name: "empty user", mutate: func(c *RuntimeConfig) { c.UserID = " " }, wantErr: "user id is required"},
		{name: "zero sync interval", mutate: func(c *RuntimeConfig) { c.SyncInterval = 0 }, wantErr: "sync interval must be positive"},
		{name: "metrics port collision", mutate: func(c *RuntimeConfig) { c.MetricsPort = c.Port }, wantErr: "collides"},
		{
			name:    "sync without key",
			mutate:  func(c *RuntimeConfig) { c.BackendURL = "https://api.example.com" },
			wantErr: APIKeyEnv,
		},
		{
			name: "relative backend url",
			mutate: func(c *RuntimeConfig) {
				c.BackendURL = "api.example.com"
				c.APIKey = "k"
			},
			wantErr: "not an absolute URL",
		},
		{
			name: "offline ignores backend",
			mutate: func(c *RuntimeConfig) {
				c.BackendURL = "api.example.com"
				c.NoSync = true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
