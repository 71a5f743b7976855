package cmd

import (
	"errors"
	"fmt"

	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show overlays, managers and displays",
	Long:  `Show the overlay pool, the overlay managers and the display outputs of the running driver.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(&ipc.Request{Op: ipc.OpStatus})
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(false, "omapdss is not running"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get driver status: %w", err)
		}
		if resp.Status == nil {
			return fmt.Errorf("driver returned no status")
		}

		if jsonOutput {
			return printJSON(cmd, resp.Status)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderStatus(*resp.Status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
