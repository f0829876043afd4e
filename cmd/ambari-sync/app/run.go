package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	syncapp "github.com/tqrg-bot/ambari-sync/internal/app"
	"github.com/tqrg-bot/ambari-sync/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sync engine",
	Long: `Start the sync engine against an Ambari cluster.

The engine requires a configuration file (--config) that specifies:
- The Ambari server URL, cluster name and credentials
- Task intervals and the host table page size
- The push channel and the control API address

Flags override the matching configuration values.`,
	RunE: runSync,
}

// Kubernetes-friendly shutdown time
const defaultGracefulTimeout = 30 * time.Second

func init() {
	runCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	runCmd.Flags().String("address", "", "Control API address, overrides control.address")
	runCmd.Flags().String("status-file", "", "Path of the task status file, overrides statusFile")
	runCmd.Flags().String("route", "/main/dashboard", "Initial UI route")
	runCmd.Flags().Bool("view-only", false, "Run without write access; scheduled updates stay disabled")

	for _, name := range []string{"config", "address", "status-file", "route", "view-only"} {
		if err := viper.BindPFlag(name, runCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
			os.Exit(1)
		}
	}

	// Mark config as required
	if err := runCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

// runOptions translates flag values into app options; empty values keep the configuration
func runOptions(cfg *config.Config) []syncapp.SyncAppOptions {
	opts := []syncapp.SyncAppOptions{
		syncapp.WithConfig(cfg),
		syncapp.WithViewOnly(viper.GetBool("view-only")),
	}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, syncapp.WithAddress(address))
	}
	if statusFile := viper.GetString("status-file"); statusFile != "" {
		opts = append(opts, syncapp.WithStatusFile(statusFile))
	}
	if route := viper.GetString("route"); route != "" {
		opts = append(opts, syncapp.WithRoute(route))
	}
	return opts
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"server", cfg.Server.BaseURL,
		"cluster", cfg.Server.Cluster)

	app, err := syncapp.NewSyncApp(ctx, runOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create sync app: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case err := <-errChan:
		if stopErr := app.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop sync app", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	if err := app.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return waitStopped(errChan, defaultGracefulTimeout)
}

func waitStopped(errChan <-chan error, timeout time.Duration) error {
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("sync app did not stop within %s", timeout)
	}
}
