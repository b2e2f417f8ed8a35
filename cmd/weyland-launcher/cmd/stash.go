package cmd

import (
	"github.com/spf13/cobra"

	"github.com/weyland-labs/weyland-launcher/internal/service/update"
)

var (
	// stashRevert restores the stashed changes onto the working tree.
	stashRevert bool

	// stashDiscard drops the stashed changes.
	stashDiscard bool

	stashCmd = &cobra.Command{
		Use:   "stash",
		Short: "Finalize a stash left behind by an overwrite update",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			controller := update.NewController(a.cfg, a.runner, a.sink)

			pending, err := controller.DetectPendingStash(ctx)
			if err != nil {
				return err
			}

			if !pending {
				cmd.Println("No stashed changes to finalize.")

				return nil
			}

			if err = controller.FinalizeStash(ctx, stashRevert); err != nil {
				return err
			}

			if stashRevert {
				cmd.Println("Stashed changes restored.")
			} else {
				cmd.Println("Stashed changes discarded.")
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	stashCmd.Flags().BoolVar(&stashRevert, "revert", false, "restore the stashed changes onto the working tree")
	stashCmd.Flags().BoolVar(&stashDiscard, "discard", false, "drop the stashed changes")
	stashCmd.MarkFlagsMutuallyExclusive("revert", "discard")
	stashCmd.MarkFlagsOneRequired("revert", "discard")

	rootCmd.AddCommand(stashCmd)
}
