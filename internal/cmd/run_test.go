package cmd

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/lift-mcp/internal/config"
)

func TestOpenStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sqlDB, storage, err := openStorage(ctx, filepath.Join(t.TempDir(), "lift.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	var mode string
	require.NoError(t, sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	stats, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Workouts)
}

func TestServeHTTP_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, "test", 0, http.NotFoundHandler())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serveHTTP did not return after cancel")
	}
}

func TestResolveConfig(t *testing.T) {
	// mutates package-level flag state
	t.Setenv(config.APIKeyEnv, "")

	require.NoError(t, rootCmd.ParseFlags([]string{"--port", "0", "--user", "sam", "--db", filepath.Join(t.TempDir(), "x.db")}))
	t.Cleanup(func() {
		rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})

	rtCfg, err := resolveConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, 0, rtCfg.Port)
	assert.Equal(t, "sam", rtCfg.UserID)
	assert.False(t, rtCfg.SyncEnabled())

	require.NoError(t, rootCmd.ParseFlags([]string{"--backend-url", "https://api.example.com"}))
	_, err = resolveConfig(rootCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.APIKeyEnv)
}
