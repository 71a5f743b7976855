package cmd

import (
	"fmt"

	"github.com/bnema/omapdss/internal/driver"
	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var (
	connectFB      int
	connectOverlay int
	applyNow       bool
)

var connectCmd = &cobra.Command{
	Use:   "connect [display]",
	Short: "Show a framebuffer on a display",
	Long: `Stage an overlay that scans a framebuffer out to a display and apply it.
Without a display argument an interactive form is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <display>",
	Short: "Release the overlay driving a display",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(&ipc.Request{Op: ipc.OpDisconnect, Display: args[0], Apply: applyNow})
		if err != nil {
			printFailedReport(cmd, resp)
			return fmt.Errorf("failed to disconnect %s: %w", args[0], err)
		}
		return printOutcome(cmd, resp, fmt.Sprintf("%s disconnected", args[0]), !applyNow)
	},
}

var freeCmd = &cobra.Command{
	Use:   "free",
	Short: "Print the first free overlay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(&ipc.Request{Op: ipc.OpFreeOverlay})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, map[string]int{"overlay": resp.Overlay})
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Overlay)
		return nil
	},
}

func init() {
	connectCmd.Flags().IntVar(&connectFB, "fb", 0, "Framebuffer index")
	connectCmd.Flags().IntVar(&connectOverlay, "overlay", -1, "Overlay index, -1 for the first free one")
	connectCmd.Flags().BoolVar(&applyNow, "apply", true, "Apply immediately instead of only staging")
	disconnectCmd.Flags().BoolVar(&applyNow, "apply", true, "Apply immediately instead of only staging")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(freeCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	req := &ipc.Request{
		Op:          ipc.OpConnect,
		Framebuffer: connectFB,
		Overlay:     connectOverlay,
		Apply:       applyNow,
	}

	if len(args) == 1 {
		req.Display = args[0]
	} else {
		resp, err := send(&ipc.Request{Op: ipc.OpStatus})
		if err != nil {
			return err
		}
		if resp.Status == nil {
			return fmt.Errorf("driver returned no status")
		}
		choice, err := ui.SelectConnect(*resp.Status)
		if err != nil {
			return err
		}
		req.Display = choice.Display
		req.Framebuffer = choice.Framebuffer
		req.Overlay = choice.Overlay
		req.Apply = choice.Apply
	}

	resp, err := send(req)
	if err != nil {
		printFailedReport(cmd, resp)
		return fmt.Errorf("failed to connect fb%d to %s: %w", req.Framebuffer, req.Display, err)
	}
	return printOutcome(cmd, resp, fmt.Sprintf("fb%d on %s through overlay%d", req.Framebuffer, req.Display, resp.Overlay), !req.Apply)
}

// printOutcome prints a staged or applied change
func printOutcome(cmd *cobra.Command, resp *ipc.Response, msg string, staged bool) error {
	if jsonOutput {
		return printJSON(cmd, resp)
	}

	out := cmd.OutOrStdout()
	if staged {
		msg += " (staged, run 'omapdss apply')"
	}
	if resp.Report == nil {
		fmt.Fprintln(out, ui.FormatResult(true, msg))
		return nil
	}
	fmt.Fprintln(out, ui.FormatResult(resp.Report.OK(), msg))
	fmt.Fprintln(out, ui.RenderReport(resp.Report))
	return reportErr(resp.Report)
}

// printFailedReport shows what an apply that failed on the device did
func printFailedReport(cmd *cobra.Command, resp *ipc.Response) {
	if resp == nil || resp.Report == nil || jsonOutput {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderReport(resp.Report))
}

func reportErr(r *driver.Report) error {
	if r == nil || r.OK() {
		return nil
	}
	failed := 0
	for _, res := range r.Results {
		if len(res.Errors) > 0 {
			failed++
		}
	}
	return fmt.Errorf("%d overlay(s) failed to apply", failed)
}
