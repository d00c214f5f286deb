package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-device/internal/app"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-device/internal/platform"
	"github.com/nerrad567/gray-logic-device/internal/storage"
	"github.com/nerrad567/gray-logic-device/migrations"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv overrides the default configuration path.
const configEnv = "GRAYLOGIC_DEVICE_CONFIG"

// newRootCmd builds the command tree. Without a subcommand the device runs.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "graylogic-device",
		Short: "Gray Logic device-management demo firmware",
		Long: `graylogic-device registers a button counter, an LED blink pattern and a
temperature reading with a device-management server over MQTT, then serves
read, write, execute and observe requests until it is unregistered.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevice(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"path to the YAML configuration file (env "+configEnv+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Register with the device-management server and serve requests",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runDevice(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				printBuildInfo(cmd.OutOrStdout(), platform.NewBuildInfo(version, commit, date))
			},
		},
		&cobra.Command{
			Use:   "factory-reset",
			Short: "Erase secure storage without starting the device",
			Long: `factory-reset erases every secure-storage item that was not provisioned at
the factory, including the bootstrapped endpoint name, and clears the delivery
log. The next start bootstraps a fresh identity.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := factoryReset(cmd.Context(), configPath); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✓ secure storage erased")
				return nil
			},
		},
	)

	return root
}

// getConfigPath returns the configuration file path from environment or default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the file and sets up the configured logger.
func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.Init(cfg.Logging, version)
	if err != nil {
		return nil, nil, err
	}
	log.Info("configuration loaded", "path", path)
	return cfg, log, nil
}

// runDevice is the device lifecycle, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown or after the server unregistered the device
func runDevice(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log.Info("starting graylogic-device",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	device := app.New(app.Options{
		Config:    cfg,
		Logger:    log,
		BuildInfo: platform.NewBuildInfo(version, commit, date),
	})
	if err := device.Run(ctx); err != nil {
		return err
	}

	log.Info("graylogic-device stopped")
	return nil
}

// factoryReset erases secure storage while the device is stopped.
func factoryReset(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if err := storage.New(db.DB).FactoryReset(ctx); err != nil {
		var se *storage.StatusError
		if errors.As(err, &se) {
			log.Error("factory reset failed", "status", se.Code, "op", se.Op, "error", err)
		}
		return fmt.Errorf("factory reset: %w", err)
	}

	log.Info("factory reset complete", "database", cfg.Database.Path)
	return nil
}

// printBuildInfo writes the build banner.
func printBuildInfo(w io.Writer, info platform.BuildInfo) {
	label := color.New(color.FgCyan)
	rows := []struct{ name, value string }{
		{"version", info.Version},
		{"commit", info.Commit},
		{"built", info.BuildDate},
		{"go", info.GoVersion},
		{"target", info.Target},
	}
	color.New(color.Bold).Fprintln(w, "graylogic-device")
	for _, r := range rows {
		label.Fprintf(w, "  %-8s", r.name)
		fmt.Fprintln(w, r.value)
	}
}
