package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tqrg-bot/ambari-sync/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(config.WithConfigPath(args[0]))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Valid configuration\n")
		fmt.Fprintf(out, "  Server: %s%s\n", cfg.Server.BaseURL, cfg.Server.GetAPIPrefix())
		fmt.Fprintf(out, "  Cluster: %s\n", cfg.Server.Cluster)
		if cfg.PushEnabled() {
			fmt.Fprintf(out, "  Push: %s\n", cfg.GetPushURL())
		} else {
			fmt.Fprintf(out, "  Push: disabled\n")
		}
		return nil
	},
}
