package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weyland-labs/weyland-launcher/internal/service/charsync"
	"github.com/weyland-labs/weyland-launcher/internal/service/server"
)

var (
	// startForce skips the dependency install for this session.
	startForce bool

	// startSkipSync leaves the character-content sync out of the startup
	// sequence.
	startSkipSync bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the bundled web application and supervise it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if !startSkipSync {
				if result, syncErr := charsync.New(a.cfg, a.runner, a.sink).Run(ctx); syncErr == nil && !result.Success {
					cmd.Println(result.Message)
				}
			}

			supervisor := server.NewSupervisor(a.cfg, a.runner, a.sink)

			if err = supervisor.Start(ctx, startForce); err != nil {
				return err
			}

			if _, url := supervisor.State().Ready(); url != "" {
				cmd.Printf("Serving on %s, press Ctrl+C to stop.\n", url)
			}

			<-ctx.Done()

			// The signal context is spent; teardown gets a fresh one.
			supervisor.Shutdown(context.Background())

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	startCmd.Flags().BoolVar(&startForce, "force", false, "skip the dependency install for this session")
	startCmd.Flags().BoolVar(&startSkipSync, "skip-sync", false, "do not run the character-content sync before starting")

	rootCmd.AddCommand(startCmd)
}
