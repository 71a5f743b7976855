package cmd

import (
	"fmt"
	"strconv"

	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/output"
	"github.com/bnema/omapdss/internal/timing"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var modeCmd = &cobra.Command{
	Use:   "mode <display> [timings]",
	Short: "Set a display mode",
	Long: `Set the mode of a display and size the framebuffer to it. Timings use the
DSS format "clock,width/hfp/hbp/hsw,height/vfp/vbp/vsw" with the pixel clock
in kHz. Without timings, or with "native", the display's native mode is used.`,
	Example: `  omapdss mode lcd
  omapdss mode lcd native
  omapdss mode tv 74250,1280/110/220/40,720/5/20/5`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &ipc.Request{Op: ipc.OpSetMode, Display: args[0]}
		if len(args) == 2 && args[1] != "native" {
			m, err := timing.ParseTimings(args[1])
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}
			req.Mode = m.Timings()
		}

		resp, err := send(req)
		if err != nil {
			return fmt.Errorf("failed to set mode on %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd, resp.Geometry)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.FormatResult(true, "mode set on "+args[0]))
		if g := resp.Geometry; g != nil {
			fmt.Fprintln(out, ui.FormatKeyValue("visible", fmt.Sprintf("%dx%d", g.Width, g.Height)))
			fmt.Fprintln(out, ui.FormatKeyValue("virtual", fmt.Sprintf("%dx%d", g.VirtualWidth, g.VirtualHeight)))
			fmt.Fprintln(out, ui.FormatKeyValue("stride", fmt.Sprintf("%d px", g.Stride)))
		}
		return nil
	},
}

var dpmsCmd = &cobra.Command{
	Use:       "dpms <display> <on|standby|suspend|off>",
	Short:     "Change the power level of a display",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "standby", "suspend", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := output.ParsePower(args[1])
		if err != nil {
			return err
		}

		resp, err := send(&ipc.Request{Op: ipc.OpDPMS, Display: args[0], Power: level.String()})
		if err != nil {
			printFailedReport(cmd, resp)
			return fmt.Errorf("failed to power %s %s: %w", args[0], level, err)
		}
		return printOutcome(cmd, resp, fmt.Sprintf("%s powered %s", args[0], level), false)
	},
}

var resizeCmd = &cobra.Command{
	Use:   "resize <width> <height>",
	Short: "Set the virtual screen size",
	Long:  `Set the virtual framebuffer size used by the next mode set.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		width, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid width %q", args[0])
		}
		height, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid height %q", args[1])
		}

		if _, err := send(&ipc.Request{Op: ipc.OpResize, Width: width, Height: height}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, fmt.Sprintf("virtual screen %dx%d", width, height)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(dpmsCmd)
	rootCmd.AddCommand(resizeCmd)
}
