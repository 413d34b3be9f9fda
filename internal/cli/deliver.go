package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetsync/internal/control"
	"github.com/vietddude/sheetsync/internal/delivery"
)

var (
	deliverOutput string
	deliverTarget string
	deliverVars   map[string]string
)

var deliverCmd = &cobra.Command{
	Use:   "deliver [file]",
	Short: "Deliver a generated report to the configured destination",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeliver,
}

func init() {
	deliverCmd.Flags().StringVarP(&deliverOutput, "output", "o", "", "output filename override")
	deliverCmd.Flags().StringVar(&deliverTarget, "target", "", "explicit destination path, skips resolution")
	deliverCmd.Flags().StringToStringVar(&deliverVars, "var", nil, "extra template variable (key=value)")
	rootCmd.AddCommand(deliverCmd)
}

func runDeliver(cmd *cobra.Command, args []string) error {
	svc := control.New(appCfg, control.Options{})
	defer func() {
		_ = svc.Close()
	}()

	out := svc.Deliverer.DeliverFile(cmd.Context(), args[0], delivery.Request{
		Override: deliverOutput,
		Vars:     deliverVars,
		Target:   deliverTarget,
	})
	if !out.Success {
		return fmt.Errorf("delivery %s failed: %w", out.ID, out.Err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", out.Route, out.Path)
	if out.BackedUp {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", delivery.RouteBackup, out.BackupPath)
	}
	return nil
}
