package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/omapdss/internal/config"
	"github.com/bnema/omapdss/internal/driver"
	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveSimulate bool
	serveTrace    bool
	serveDryRun   bool
	fbDevice      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the display driver",
	Long: `Open the framebuffer, reset every DSS overlay and serve control requests
on the unix socket until interrupted. Root is required on real hardware.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSimulate, "simulate", false, "Run against an in-memory OMAP4 board")
	serveCmd.Flags().BoolVar(&serveTrace, "trace", false, "Log every sysfs write")
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "Record sysfs writes without performing them")
	serveCmd.Flags().StringVar(&fbDevice, "fb", "", "Framebuffer device node")

	if err := viper.BindPFlag("device.fb", serveCmd.Flags().Lookup("fb")); err != nil {
		logger.Warnf("Failed to bind fb flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if !serveSimulate && os.Geteuid() != 0 {
		logger.Warn("Not running as root, sysfs writes will likely fail")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	if socketPath != "" {
		c := *cfg
		c.IPC.SocketPath = socketPath
		cfg = &c
	}

	return serve(ctx, cfg, driver.Options{
		Simulate: serveSimulate,
		Trace:    serveTrace,
		DryRun:   serveDryRun,
		Logger:   logger.Logger,
	}, nil)
}

// serve runs the driver and its control socket until ctx is done. ready, when
// set, is called with the socket path once requests are accepted.
func serve(ctx context.Context, cfg *config.Config, opts driver.Options, ready func(string)) error {
	drv, err := driver.Open(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to open display driver: %w", err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			logger.Errorf("Failed to close framebuffer: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- drv.Run(ctx)
	}()

	srv, err := ipc.NewSocketServer(cfg.IPC.SocketPath, ipc.NewDriverHandler(drv))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start control socket: %w", err)
	}
	defer srv.Stop()

	st, err := drv.Status(ctx)
	if err != nil {
		return err
	}
	logger.Info("Display driver ready",
		"fb", st.FBID,
		"controller", st.Controller,
		"overlays", len(st.Overlays),
		"managers", len(st.Managers),
		"displays", len(st.Displays),
		"socket", srv.SocketPath())

	if ready != nil {
		ready(srv.SocketPath())
	}

	<-ctx.Done()
	logger.Info("Shutting down display driver")
	cancel()
	return <-loopDone
}
