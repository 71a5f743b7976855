package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/omapdss/internal/config"
	"github.com/bnema/omapdss/internal/driver"
	"github.com/bnema/omapdss/internal/logger"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var (
	probeSimulate bool
	probeWrite    bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Discover the DSS objects without a running driver",
	Long: `Open the framebuffer and discover overlays, managers and displays, then
print what was found together with the sysfs writes the initialisation
performs. Writes are only recorded unless --write is given.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().BoolVar(&probeSimulate, "simulate", false, "Probe an in-memory OMAP4 board")
	probeCmd.Flags().BoolVar(&probeWrite, "write", false, "Perform the initialisation writes")
	rootCmd.AddCommand(probeCmd)
}

// probeResult is the JSON form of a probe
type probeResult struct {
	Status driver.Status `json:"status"`
	Writes []string      `json:"writes"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	drv, err := driver.Open(config.Get(), driver.Options{
		Simulate: probeSimulate,
		DryRun:   !probeWrite,
		Trace:    probeWrite,
		Logger:   logger.Logger,
	})
	if err != nil {
		return err
	}
	defer drv.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go drv.Run(ctx)

	st, err := drv.Status(ctx)
	if err != nil {
		return err
	}

	var writes []string
	if rec := drv.Recorder(); rec != nil {
		for _, w := range rec.Writes() {
			writes = append(writes, w.String())
		}
	}

	if jsonOutput {
		return printJSON(cmd, probeResult{Status: st, Writes: writes})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.RenderStatus(st))
	fmt.Fprintln(out)
	verb := "would write"
	if probeWrite {
		verb = "wrote"
	}
	fmt.Fprintln(out, ui.SubheaderStyle.Render(fmt.Sprintf("Initialisation %s %d attribute(s)", verb, len(writes))))
	fmt.Fprintln(out, ui.RenderPlan(writes))
	return nil
}
