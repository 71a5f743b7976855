package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/omapdss/internal/driver"
	"github.com/bnema/omapdss/internal/ipc"
	"github.com/bnema/omapdss/internal/ui"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the overlay pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return ui.Watch(statusFetcher(client), watchInterval)
	},
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", time.Second, "Refresh interval")
	rootCmd.AddCommand(watchCmd)
}

// statusFetcher adapts the client to the watch view
func statusFetcher(client *ipc.Client) ui.FetchFunc {
	return func(ctx context.Context) (driver.Status, error) {
		resp, err := client.Send(&ipc.Request{Op: ipc.OpStatus})
		if err != nil {
			return driver.Status{}, err
		}
		if resp.Status == nil {
			return driver.Status{}, fmt.Errorf("driver returned no status")
		}
		return *resp.Status, nil
	}
}
