package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/omapdss/internal/config"
	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configFile string
	socketPath string
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:   "omapdss",
		Short: "omapdss - OMAP display subsystem control",
		Long: `omapdss drives the OMAP framebuffer and its DSS overlays through sysfs.
The serve command owns the hardware; the other commands talk to it over a
unix socket to route framebuffers to displays, change modes and power
displays on and off.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: search /etc/omapdss, ~/.config/omapdss, .)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control socket path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine readable JSON")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		config.SetConfigPath(configFile)
	}
	if err := config.Init(); err != nil {
		return err
	}

	if level := config.Get().Logging.LogLevel; level != "" {
		if err := logger.SetLevel(level); err != nil {
			return err
		}
	}
	return nil
}

// newClient connects to the running driver
func newClient() (*ipc.Client, error) {
	cfg := config.Get()
	path := socketPath
	if path == "" {
		path = cfg.IPC.SocketPath
	}
	return ipc.NewClient(path, time.Duration(cfg.IPC.TimeoutMS)*time.Millisecond)
}

// send performs one request against the running driver
func send(req *ipc.Request) (*ipc.Response, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return client.Send(req)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
