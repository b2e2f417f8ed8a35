package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/logger"
)

// installFlags keep npm quiet and production-only.
var installFlags = []string{"--no-audit", "--no-fund", "--loglevel=error", "--no-progress", "--omit=dev"}

// ErrInstallFailed indicates every install strategy exited non-zero.
var ErrInstallFailed = errors.New("npm install failed")

// ensureNode verifies the node binary is reachable before anything spawns.
func (s *Supervisor) ensureNode(ctx context.Context) error {
	res, err := s.runner.Run(ctx, execx.Command{Name: "node", Args: []string{"--version"}})
	if err != nil {
		return fmt.Errorf("node is not available: %w", err)
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("node is not available: exit code %d", res.ExitCode)
	}

	logger.InfoKV(ctx, "Found node", "version", strings.TrimSpace(res.Output))

	return nil
}

// installIfNeeded applies the configured install policy, honoring the
// session-scoped skip set by a forced start.
func (s *Supervisor) installIfNeeded(ctx context.Context) error {
	if s.installSkipped() {
		logger.Info(ctx, "Dependency install skipped for this session")

		return nil
	}

	need, reason := shouldInstall(s.cfg.NpmPolicy, s.cfg.AppDir)
	if !need {
		logger.InfoKV(ctx, "Dependencies are current", "reason", reason)

		return nil
	}

	logger.InfoKV(ctx, "Installing dependencies", "reason", reason)
	s.sink.Log("Installing application dependencies. This may take a few minutes...")

	if err := s.runInstall(ctx); err != nil {
		return err
	}

	s.sink.Log("Dependencies installed.")

	return nil
}

// shouldInstall decides whether an install run is due and why.
//
// Under the auto policy an install runs when node_modules is missing or
// older than package.json or package-lock.json.
func shouldInstall(policy string, appDir string) (bool, string) {
	switch policy {
	case config.NpmPolicyAlways:
		return true, "policy is always"
	case config.NpmPolicyNever:
		return false, "policy is never"
	}

	modules, err := os.Stat(filepath.Join(appDir, "node_modules"))
	if err != nil {
		return true, "node_modules is missing"
	}

	for _, manifest := range []string{"package.json", "package-lock.json"} {
		info, err := os.Stat(filepath.Join(appDir, manifest))
		if err != nil {
			continue
		}

		if info.ModTime().After(modules.ModTime()) {
			return true, manifest + " is newer than node_modules"
		}
	}

	return false, "node_modules is up to date"
}

// runInstall executes the configured npm mode. A ci run that fails falls
// back to a plain install, since ci refuses to work without a usable
// lockfile.
func (s *Supervisor) runInstall(ctx context.Context) error {
	npm, npmArgs, err := locateNpm(ctx, s.runner, s.cfg.NpmBin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	mode := s.cfg.NpmMode
	if mode == "" {
		mode = config.NpmModeInstall
	}

	if mode == config.NpmModeCI {
		res, runErr := s.install(ctx, npm, npmArgs, "ci")
		if runErr == nil && res.ExitCode == 0 {
			return nil
		}

		logger.Warn(ctx, "npm ci failed, falling back to npm install")
	}

	res, runErr := s.install(ctx, npm, npmArgs, "install")
	if runErr != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, runErr)
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("%w: exit code %d", ErrInstallFailed, res.ExitCode)
	}

	return nil
}

func (s *Supervisor) install(ctx context.Context, npm string, npmArgs []string, subcommand string) (*execx.Result, error) {
	args := append(append([]string(nil), npmArgs...), subcommand)
	args = append(args, installFlags...)

	return s.runner.Stream(ctx, execx.Command{
		Name: npm,
		Args: args,
		Dir:  s.cfg.AppDir,
		Env:  []string{"NODE_ENV=production"},
	}, s.sink.Append)
}

// locateNpm finds an npm entry point. The configured binary wins, then the
// NPM_BIN environment override, then the npm on PATH, and as a last resort
// the npm-cli.js script that ships with node itself, run through node.
func locateNpm(ctx context.Context, runner execx.Runner, configured string) (string, []string, error) {
	if configured != "" {
		return configured, nil, nil
	}

	if bin := os.Getenv("NPM_BIN"); bin != "" {
		return bin, nil, nil
	}

	candidates := []string{"npm"}
	if runtime.GOOS == "windows" {
		candidates = []string{"npm.cmd", "npm"}
	}

	for _, candidate := range candidates {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, nil, nil
		}
	}

	res, err := runner.Run(ctx, execx.Command{
		Name: "node",
		Args: []string{"-p", "require.resolve('npm/bin/npm-cli.js')"},
	})
	if err != nil || res.ExitCode != 0 {
		return "", nil, errors.New("npm not found on PATH and node could not resolve npm-cli.js")
	}

	script := strings.TrimSpace(res.Output)
	if script == "" {
		return "", nil, errors.New("node resolved an empty npm-cli.js path")
	}

	logger.InfoKV(ctx, "Using npm via node", "script", script)

	return "node", []string{script}, nil
}
