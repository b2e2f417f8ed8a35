package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/logger"
	"github.com/weyland-labs/weyland-launcher/internal/sink"
)

// Status classifies the result of one update attempt.
type Status string

const (
	// StatusUpToDate means the checkout already matches the remote.
	StatusUpToDate Status = "upToDate"
	// StatusSuccess means new commits were merged cleanly.
	StatusSuccess Status = "success"
	// StatusNeedsRetry means the merge conflicted and the user should
	// decide whether to retry with the overwrite path.
	StatusNeedsRetry Status = "needsRetry"
	// StatusFailed means the attempt failed for a non-conflict reason.
	StatusFailed Status = "failed"
)

// Outcome is the result of one update attempt, consumed by the UI.
type Outcome struct {
	// Status is the classified result.
	Status Status
	// Message is the human-readable summary.
	Message string
	// LogPath points at the diagnostic log, set on NeedsRetry/Failed.
	LogPath string
	// Diff is a compact summary of the tree divergence, when captured.
	Diff string
	// LogContents mirrors what was written to the diagnostic log.
	LogContents string
	// StashUsed reports that local changes were stashed during this attempt.
	StashUsed bool
}

// DiagnosticLogName is the update log written inside the application directory.
// Each failed attempt overwrites the previous log.
const DiagnosticLogName = "WTUpdate.log"

var (
	// ErrVendorDirMissing indicates the vendor checkout does not exist.
	ErrVendorDirMissing = errors.New("vendor directory does not exist")
	// ErrStashConflict indicates the stash could not be restored cleanly.
	ErrStashConflict = errors.New("restoring stashed changes failed")
	// ErrCheckoutFailed indicates a pin checkout did not complete.
	ErrCheckoutFailed = errors.New("checkout failed")
)

// Controller owns the vendor repository state for one launcher session.
type Controller struct {
	repoDir      string
	appDir       string
	remoteRef    string
	allowPull    bool
	updateScript string

	runner execx.Runner
	sink   *sink.Sink

	// mu guards stashPending. The UI serializes update/finalize calls,
	// but the flag is cheap to protect and must never tear.
	mu           sync.Mutex
	stashPending bool
}

// NewController builds a controller for the configured vendor checkout.
func NewController(cfg *config.Config, runner execx.Runner, snk *sink.Sink) *Controller {
	return &Controller{
		repoDir:      cfg.VendorDir,
		appDir:       cfg.AppDir,
		remoteRef:    cfg.RemoteRef,
		allowPull:    cfg.AllowInAppPull,
		updateScript: cfg.UpdateScript,
		runner:       runner,
		sink:         snk,
	}
}

// StashPending reports whether this session created a stash that has not
// been finalized yet.
func (c *Controller) StashPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stashPending
}

func (c *Controller) setStashPending(pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stashPending = pending
}

// DetectPendingStash adopts a stash left behind by an earlier session. A
// fresh controller knows nothing about the repository's stash list, so
// callers that outlive a single process use this before finalizing.
func (c *Controller) DetectPendingStash(ctx context.Context) (bool, error) {
	res, err := c.git(ctx, "stash", "list")
	if err != nil {
		return false, fmt.Errorf("list stash entries: %w", err)
	}

	if res.ExitCode != 0 {
		return false, fmt.Errorf("list stash entries: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	pending := strings.TrimSpace(res.Output) != ""
	if pending {
		c.setStashPending(true)
	}

	return pending, nil
}

// git runs one git command inside the vendor checkout.
func (c *Controller) git(ctx context.Context, args ...string) (*execx.Result, error) {
	return c.runner.Run(ctx, execx.Command{
		Name: "git",
		Args: args,
		Dir:  c.repoDir,
	})
}

// Run performs one update attempt.
//
// With attemptOverwrite the controller stashes local changes, forces the
// working tree onto the remote ref and only then pulls; the stash always
// completes before anything destructive happens.
func (c *Controller) Run(ctx context.Context, attemptOverwrite bool) (*Outcome, error) {
	ctx = logger.WithName(ctx, "update")

	if _, err := os.Stat(c.repoDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVendorDirMissing, c.repoDir)
	}

	if !c.allowPull {
		return c.refusePull(ctx), nil
	}

	stashUsed := false

	if attemptOverwrite {
		// One stash per session: stacking a second entry would make a
		// later pop restore the wrong snapshot.
		if c.StashPending() {
			message := "A stash from this session is still pending. Finalize it before forcing another update."
			c.sink.Log(message)

			return &Outcome{Status: StatusFailed, Message: message}, nil
		}

		c.sink.Log("Stashing local changes before forcing the update...")

		res, err := c.git(ctx, "stash")
		if err != nil {
			return nil, err
		}

		if res.ExitCode != 0 {
			return &Outcome{
				Status:  StatusFailed,
				Message: failureMessage("git stash failed", res.Output),
			}, nil
		}

		c.setStashPending(true)

		stashUsed = true

		// Local divergence is discarded on purpose; the stash above is
		// the only copy of those changes until finalize runs.
		reset, err := c.git(ctx, "reset", "--hard", c.remoteRef)
		if err != nil {
			return nil, err
		}

		if reset.ExitCode != 0 {
			return c.failedOutcome(ctx, StatusFailed, stashUsed,
				"Forcing the working tree onto "+c.remoteRef+" failed.", reset.Output)
		}
	} else {
		c.sink.Log("Attempting to update the vendored application...")
	}

	pull, err := c.git(ctx, "pull")
	if err != nil {
		return nil, err
	}

	status := classifyPull(pull.ExitCode, pull.Output)
	switch status {
	case StatusUpToDate:
		message := "The vendored application is up to date."
		c.sink.Log(message)

		return &Outcome{Status: StatusUpToDate, Message: message, StashUsed: stashUsed}, nil
	case StatusSuccess:
		message := "The vendored application updated successfully."
		c.sink.Log(message)

		return &Outcome{Status: StatusSuccess, Message: message, StashUsed: stashUsed}, nil
	case StatusNeedsRetry:
		return c.failedOutcome(ctx, StatusNeedsRetry, stashUsed,
			"The update hit a merge conflict. Retry with overwrite to discard local changes.", pull.Output)
	default:
		return c.failedOutcome(ctx, StatusFailed, stashUsed,
			"There was an error updating the vendored application.", pull.Output)
	}
}

// refusePull reports that in-app pulls are disabled by policy.
func (c *Controller) refusePull(ctx context.Context) *Outcome {
	message := "Skipping vendor update: in-app git pull is disabled by policy."
	if c.updateScript != "" {
		message += fmt.Sprintf(" Use %s to update manually.", c.updateScript)
	}

	logger.Info(ctx, message)
	c.sink.Log(message)

	return &Outcome{Status: StatusUpToDate, Message: message}
}

// failedOutcome captures a diff summary, persists the diagnostic log and
// builds the NeedsRetry/Failed outcome.
func (c *Controller) failedOutcome(
	ctx context.Context,
	status Status,
	stashUsed bool,
	message, pullOutput string,
) (*Outcome, error) {
	c.sink.Log("There was an error updating the vendored application...")
	c.sink.Log("Generating log file " + DiagnosticLogName + "...")

	// Best effort: a failing diff must not mask the original failure.
	diffText := ""

	if diff, err := c.git(ctx, "diff", "--compact-summary"); err == nil {
		diffText = diff.Output
	} else {
		logger.WarnKV(ctx, "Diff summary unavailable", "error", err)
	}

	logPath := filepath.Join(c.appDir, DiagnosticLogName)

	logContents, err := writeDiagnosticLog(logPath, pullOutput, diffText)
	if err != nil {
		return nil, fmt.Errorf("write diagnostic log: %w", err)
	}

	combined := strings.TrimSpace(pullOutput)
	if trimmedDiff := strings.TrimSpace(diffText); trimmedDiff != "" {
		if combined != "" {
			combined += "\n\n"
		}

		combined += trimmedDiff
	}

	return &Outcome{
		Status:      status,
		Message:     message,
		LogPath:     logPath,
		Diff:        combined,
		LogContents: logContents,
		StashUsed:   stashUsed,
	}, nil
}

// FinalizeStash resolves a stash created by a previous overwrite attempt.
// With revert the stash is restored onto the working tree; otherwise it is
// discarded. The pending flag is cleared in every case, including errors,
// so finalize is idempotent.
func (c *Controller) FinalizeStash(ctx context.Context, revert bool) error {
	ctx = logger.WithName(ctx, "update")

	if !c.StashPending() {
		logger.Debug(ctx, "No stash pending, nothing to finalize")
		return nil
	}

	defer c.setStashPending(false)

	if _, err := os.Stat(c.repoDir); err != nil {
		return fmt.Errorf("%w: %s", ErrVendorDirMissing, c.repoDir)
	}

	args := []string{"stash", "clear"}
	if revert {
		args = []string{"stash", "pop"}
		c.sink.Log("Reverting differing files post update...")
	} else {
		c.sink.Log("Discarding stashed changes...")
	}

	res, err := c.git(ctx, args...)
	if err != nil {
		return err
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s", ErrStashConflict, failureMessage("git exited non-zero", res.Output))
	}

	return nil
}

// classifyPull maps a git pull result onto an update status.
// Conflict wording wins over the exit code, so a conflicted merge is
// NeedsRetry whether or not git reported failure.
func classifyPull(exitCode int, output string) Status {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "conflict"),
		strings.Contains(lower, "would be overwritten by merge"),
		strings.Contains(lower, "needs merge"):
		return StatusNeedsRetry
	case exitCode != 0:
		return StatusFailed
	case strings.Contains(lower, "already up to date"),
		strings.Contains(lower, "already up-to-date"):
		return StatusUpToDate
	default:
		return StatusSuccess
	}
}

// writeDiagnosticLog persists the raw pull output and the diff summary,
// overwriting any prior log from this vendor directory.
func writeDiagnosticLog(path, pullOutput, diffText string) (string, error) {
	var b strings.Builder

	b.WriteString("git pull output:\n")

	if trimmed := strings.TrimSpace(pullOutput); trimmed == "" {
		b.WriteString("(no output)")
	} else {
		b.WriteString(trimmed)
	}

	b.WriteString("\n\nGit diff --compact-summary:\n")

	if trimmed := strings.TrimSpace(diffText); trimmed == "" {
		b.WriteString("No differences.\n")
	} else {
		b.WriteString(trimmed)
		b.WriteString("\n")
	}

	contents := b.String()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return "", err
	}

	return contents, nil
}

// failureMessage folds captured output into a short failure description.
func failureMessage(prefix, output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return prefix
	}

	return prefix + ": " + trimmed
}
