package cmd

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/metrics"
	"github.com/joshdurbin/lift-mcp/internal/workers"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull workout history from the backend once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		rtCfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if !rtCfg.SyncEnabled() {
			return errors.New("sync needs --backend-url and must not be run with --no-sync")
		}

		ctx, cancel := signalContext()
		defer cancel()

		sqlDB, storage, err := openStorage(ctx, rtCfg.DBPath)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		syncer := workers.NewHistorySyncer(
			newSyncService(rtCfg, storage),
			storage,
			analytics.NewRegistry(storage),
			metrics.NewManager(metrics.Namespace, metrics.Subsystem, prometheus.NewRegistry()),
			rtCfg.SyncInterval,
			rtCfg.UserID,
		)
		if err := syncer.SyncOnce(ctx); err != nil {
			return err
		}

		workers.LogDatabaseStats(ctx, storage)
		logging.Info("sync finished")
		return nil
	},
}
