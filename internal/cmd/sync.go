package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one catalog synchronization and print its summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		if a.sync == nil {
			return errors.New("ERP_BASE_URL is not set")
		}

		res, err := a.sync.SyncAll(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if res != nil {
			_ = enc.Encode(res)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
