package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshdurbin/lift-mcp/internal/config"
	"github.com/joshdurbin/lift-mcp/internal/logging"
)

var (
	verbosity  int
	configPath string
	configEnv  string
	flagValues config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lift-mcp",
	Short: "Lift MCP Server - workout analytics and streaks via Model Context Protocol",
	Long: `Lift MCP Server keeps your strength workouts in a local SQLite database and
exposes progression, plateau, recovery and streak analytics via the Model
Context Protocol (MCP) for AI assistants.

The server runs with:
- MCP tools to log workouts, cardio and calorie days
- Progressive overload suggestions and plateau detection
- Recovery advice from the last 7 days of training
- Workout and calorie streaks
- Optional periodic history sync from a remote backend

Sync is enabled when --backend-url is set; the API key is read from the
` + config.APIKeyEnv + ` environment variable.

Settings can also come from a TOML file (--config) with [development] and
[production] sections; flags override the file.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on verbosity before any command runs
		logging.Setup(logging.Level(verbosity))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rtCfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return Run(rtCfg)
	},
}

func init() {
	defaults := config.Defaults()
	flags := rootCmd.PersistentFlags()

	// Logging verbosity
	flags.CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v for debug, -vv for trace with HTTP headers)")

	// Config file
	flags.StringVar(&configPath, "config", "", "path to a TOML config file")
	flags.StringVar(&configEnv, "env", "development", "config file section to use (development or production)")

	// Runtime settings as CLI flags
	flags.StringVar(&flagValues.DBPath, "db", defaults.DBPath, "path to SQLite database file")
	flags.IntVarP(&flagValues.Port, "port", "p", defaults.Port, "MCP server port (0 for stdio mode)")
	flags.IntVar(&flagValues.MetricsPort, "metrics-port", defaults.MetricsPort, "dedicated Prometheus metrics port (0 to disable)")
	flags.StringVar(&flagValues.UserID, "user", defaults.UserID, "default user for tools called without user_id")
	flags.StringVar(&flagValues.BackendURL, "backend-url", defaults.BackendURL, "workout history backend to sync from (empty disables sync)")
	flags.DurationVar(&flagValues.SyncInterval, "sync-interval", defaults.SyncInterval, "interval between history syncs")
	flags.DurationVar(&flagValues.NotifyInterval, "notify-interval", defaults.NotifyInterval, "interval between stagnation checks")

	// Offline mode
	flags.BoolVar(&flagValues.NoSync, "no-sync", false, "run MCP server only without backend sync (offline mode)")

	rootCmd.AddCommand(syncCmd)
}

// resolveConfig layers defaults, the optional config file and changed flags
func resolveConfig(cmd *cobra.Command) (*config.RuntimeConfig, error) {
	var file *config.File
	if configPath != "" {
		var err error
		if file, err = config.Load(configEnv, configPath); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	rtCfg := config.Resolve(file, flagValues, cmd.Flags().Changed)
	if err := rtCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return rtCfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
