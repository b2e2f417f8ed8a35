package charsync

import (
	"context"
	"fmt"
	"os"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/logger"
	"github.com/weyland-labs/weyland-launcher/internal/sink"
)

// syncScript is the downloader shipped inside the application directory.
const syncScript = "character-downloader.js"

// Result reports one sync attempt to the caller.
type Result struct {
	// Success is true only for a zero exit.
	Success bool
	// Message is the human-readable summary for the UI.
	Message string
}

// Runner executes the character sync subprocess.
type Runner struct {
	appDir  string
	url     string
	enabled bool

	exec execx.Runner
	sink *sink.Sink
}

// New builds a sync runner from the launcher configuration.
func New(cfg *config.Config, exec execx.Runner, snk *sink.Sink) *Runner {
	return &Runner{
		appDir:  cfg.AppDir,
		url:     cfg.CharacterSyncURL,
		enabled: cfg.CharacterSyncEnabled,
		exec:    exec,
		sink:    snk,
	}
}

// Run performs one sync attempt. Launch failures and non-zero exits both
// come back as an unsuccessful Result; only a missing application
// directory is an error, since nothing can run without it.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx = logger.WithName(ctx, "charsync")

	if !r.enabled {
		return &Result{Success: false, Message: "Character sync is disabled."}, nil
	}

	if r.url == "" {
		return &Result{Success: false, Message: "Character sync URL is not configured."}, nil
	}

	if _, err := os.Stat(r.appDir); err != nil {
		return nil, fmt.Errorf("application directory does not exist: %s", r.appDir)
	}

	r.sink.Log("Checking for character updates...")

	res, err := r.exec.Stream(ctx, execx.Command{
		Name: "node",
		Args: []string{syncScript, r.url, "-u"},
		Dir:  r.appDir,
		Env: []string{
			"NODE_ENV=production",
			"NO_BROWSER=1",
			"BROWSER=none",
		},
	}, r.sink.Append)
	if err != nil {
		logger.WarnKV(ctx, "Character sync did not start", "error", err)

		return &Result{
			Success: false,
			Message: fmt.Sprintf("Character sync failed to start: %v", err),
		}, nil
	}

	if res.ExitCode != 0 {
		return &Result{
			Success: false,
			Message: "Character update failed. Check logs for details.",
		}, nil
	}

	return &Result{Success: true, Message: "Character update completed."}, nil
}
