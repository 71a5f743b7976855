package cmd

import (
	"fmt"

	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write every staged change to the hardware",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(&ipc.Request{Op: ipc.OpApply})
		if err != nil {
			printFailedReport(cmd, resp)
			return fmt.Errorf("apply failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, resp.Report)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderReport(resp.Report))
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the writes the next apply would perform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(&ipc.Request{Op: ipc.OpPlan})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, resp.Plan)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderPlan(resp.Plan))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(planCmd)
}
