package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/omapdss/internal/config"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage omapdss configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if jsonOutput {
			return printJSON(cmd, cfg)
		}

		lines := []string{
			ui.HeaderStyle.Render("Current Configuration"),
			ui.FormatKeyValue("file", config.GetConfigPath()),
			"",
			ui.SubheaderStyle.Render("[device]"),
			ui.FormatKeyValue("fb", cfg.Device.FB),
			ui.FormatKeyValue("dss_root", cfg.Device.DSSRoot),
			ui.FormatKeyValue("fb_root", cfg.Device.FBRoot),
			ui.FormatKeyValue("ctrl_name", cfg.Device.CtrlNamePath),
			ui.FormatKeyValue("allowed_ids", strings.Join(cfg.Device.AllowedIDs, ", ")),
			"",
			ui.SubheaderStyle.Render("[pool]"),
			ui.FormatKeyValue("limits", fmt.Sprintf("%d fb, %d overlays, %d managers, %d displays",
				cfg.Pool.MaxFramebuffers, cfg.Pool.MaxOverlays, cfg.Pool.MaxManagers, cfg.Pool.MaxDisplays)),
			ui.FormatKeyValue("name_match", cfg.Pool.NameMatch),
			"",
			ui.SubheaderStyle.Render("[screen]"),
			ui.FormatKeyValue("min", fmt.Sprintf("%dx%d", cfg.Screen.MinWidth, cfg.Screen.MinHeight)),
			ui.FormatKeyValue("max", fmt.Sprintf("%dx%d", cfg.Screen.MaxWidth, cfg.Screen.MaxHeight)),
			"",
			ui.SubheaderStyle.Render("[ipc]"),
			ui.FormatKeyValue("socket", orDefault(cfg.IPC.SocketPath, "per-user default")),
			ui.FormatKeyValue("timeout", fmt.Sprintf("%d ms", cfg.IPC.TimeoutMS)),
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatWarning(fmt.Sprintf("%s already exists, use --force to overwrite", path)))
			return nil
		}

		if err := config.SaveAs(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, "Configuration written to "+path))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
