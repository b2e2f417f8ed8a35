package cmd

import (
	"github.com/spf13/cobra"

	"github.com/weyland-labs/weyland-launcher/internal/repository/state"
	"github.com/weyland-labs/weyland-launcher/internal/service/update"
)

var (
	// pinExact detaches onto the remote commit instead of tracking the
	// branch.
	pinExact bool

	pinCmd = &cobra.Command{
		Use:   "pin <ref>",
		Short: "Check the vendored application out at a branch, tag or commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			controller := update.NewController(a.cfg, a.runner, a.sink)

			if err = controller.Pin(ctx, args[0], pinExact); err != nil {
				return err
			}

			a.saveRecord(ctx, func(record *state.Record) {
				record.PinnedRef = args[0]
			})

			cmd.Printf("Checked out %s.\n", args[0])

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	pinCmd.Flags().BoolVar(&pinExact, "exact", false, "detach onto the remote commit instead of creating a tracking branch")

	rootCmd.AddCommand(pinCmd)
}
