package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetsync/internal/control"
)

var pathConfigCmd = &cobra.Command{
	Use:   "path-config",
	Short: "Show how output paths are resolved",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := control.New(appCfg, control.Options{})
		defer func() {
			_ = svc.Close()
		}()

		_, err := fmt.Fprintln(cmd.OutOrStdout(), svc.Resolver.ConfigurationSummary())
		return err
	},
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show current quota usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := control.New(appCfg, control.Options{})
		defer func() {
			_ = svc.Close()
		}()

		_, err := fmt.Fprintln(cmd.OutOrStdout(), svc.Tracker.Summary())
		return err
	},
}

func init() {
	rootCmd.AddCommand(pathConfigCmd)
	rootCmd.AddCommand(quotaCmd)
}
