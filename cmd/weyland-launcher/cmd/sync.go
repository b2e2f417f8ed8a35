package cmd

import (
	"github.com/spf13/cobra"

	"github.com/weyland-labs/weyland-launcher/internal/service/charsync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the auxiliary character-content sync",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := charsync.New(a.cfg, a.runner, a.sink).Run(ctx)
		if err != nil {
			return err
		}

		cmd.Println(result.Message)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(syncCmd)
}
