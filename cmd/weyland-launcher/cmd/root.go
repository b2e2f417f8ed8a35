package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/logger"
	"github.com/weyland-labs/weyland-launcher/internal/repository/state"
	"github.com/weyland-labs/weyland-launcher/internal/sink"
	"github.com/weyland-labs/weyland-launcher/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel is the minimum level printed to the console.
	logLevel string

	// rootCmd represents the base command shared by every launcher operation.
	rootCmd = &cobra.Command{
		Use:   "weyland-launcher",
		Short: "Update, sync and supervise the bundled web application",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level: %s", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		SilenceUsage: true,
	}
)

// Execute runs the weyland-launcher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")
}

// signalContext is the base context for every operation: it ends on the
// usual termination signals so subprocess work can unwind.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// app bundles the wiring shared by the launcher operations.
type app struct {
	cfg    *config.Config
	sink   *sink.Sink
	runner execx.Runner
}

// newApp loads the configuration and opens the log sink. Sink events are
// mirrored to the console logger, the CLI's stand-in for a UI surface.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	snk, err := sink.New(cfg.LogsDir, emitToConsole)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}

	return &app{
		cfg:    cfg,
		sink:   snk,
		runner: execx.NewRunner(),
	}, nil
}

func (a *app) close() {
	_ = a.sink.Close()
}

// saveRecord updates the persisted session record best-effort; a launcher
// that cannot remember its last run still has to finish the current one.
func (a *app) saveRecord(ctx context.Context, mutate func(*state.Record)) {
	repo := state.NewFileRepository(config.DefaultStateFilename)

	record, err := repo.Load(ctx)
	if err != nil {
		record = &state.Record{}
	}

	mutate(record)

	if err = repo.Save(ctx, record); err != nil {
		logger.WarnKV(ctx, "Could not persist the session record", "error", err)
	}
}

func emitToConsole(event sink.Event) {
	ctx := context.Background()

	switch event.Kind {
	case sink.EventServerReady:
		logger.InfoKV(ctx, "Server is ready", "url", event.URL)
	default:
		logger.Info(ctx, event.Line)
	}
}
