package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weyland-labs/weyland-launcher/internal/repository/state"
	"github.com/weyland-labs/weyland-launcher/internal/service/update"
)

var (
	// updateOverwrite enables the stash + force-reset path.
	updateOverwrite bool

	// updateDiscardLocal drops stashed local changes instead of
	// reapplying them after an overwrite update.
	updateDiscardLocal bool

	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update the vendored application checkout from its remote",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			controller := update.NewController(a.cfg, a.runner, a.sink)

			outcome, err := controller.Run(ctx, updateOverwrite)
			if err != nil {
				return err
			}

			a.saveRecord(ctx, func(record *state.Record) {
				record.LastUpdateStatus = string(outcome.Status)
				record.LastUpdateTime = time.Now()
			})

			cmd.Printf("%s: %s\n", outcome.Status, outcome.Message)

			if outcome.LogPath != "" {
				cmd.Printf("Diagnostic log: %s\n", outcome.LogPath)
			}

			if outcome.StashUsed {
				if err = controller.FinalizeStash(ctx, !updateDiscardLocal); err != nil {
					if errors.Is(err, update.ErrStashConflict) {
						cmd.Println("Your local changes could not be reapplied cleanly; resolve the stash manually.")
					}

					return err
				}
			}

			switch outcome.Status {
			case update.StatusNeedsRetry:
				cmd.Println("Run again with --overwrite to discard local divergence and retry.")
			case update.StatusFailed:
				return fmt.Errorf("update failed: %s", outcome.Message)
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	updateCmd.Flags().BoolVar(&updateOverwrite, "overwrite", false, "stash local changes and force the checkout onto the remote ref")
	updateCmd.Flags().BoolVar(&updateDiscardLocal, "discard-local", false, "after an overwrite update, drop stashed local changes instead of reapplying them")

	rootCmd.AddCommand(updateCmd)
}
