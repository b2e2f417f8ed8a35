package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/service/update"
	"github.com/weyland-labs/weyland-launcher/internal/sink"
)

// git runs one git command in dir with a pinned identity, failing the test
// on a non-zero exit.
func git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	full := append([]string{
		"-c", "user.name=Integration Test",
		"-c", "user.email=integration@example.com",
	}, args...)

	cmd := exec.Command("git", full...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)

	return string(out)
}

func commitFile(t *testing.T, dir, name, contents, message string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o600))
	git(t, dir, "add", name)
	git(t, dir, "commit", "-m", message)
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(contents)
}

// TestUpdateController_AgainstRealGit drives the full update workflow
// against an actual git binary: clean pull, no-op pull, conflicted pull,
// and the stash + force-reset recovery path.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestUpdateController_AgainstRealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	// Keep the host's git configuration out of the test.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	ctx := context.Background()

	origin := t.TempDir()
	git(t, origin, "init", "-b", "main")
	commitFile(t, origin, "file.txt", "one\n", "initial")

	vendor := filepath.Join(t.TempDir(), "checkout")
	git(t, filepath.Dir(vendor), "clone", origin, vendor)

	snk, err := sink.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = snk.Close() })

	cfg := &config.Config{
		VendorDir:      vendor,
		AppDir:         vendor,
		RemoteRef:      "origin/main",
		AllowInAppPull: true,
	}
	require.NoError(t, config.Validate(cfg))

	controller := update.NewController(cfg, execx.NewRunner(), snk)

	// Remote advanced, clean tree: a plain pull fast-forwards.
	commitFile(t, origin, "file.txt", "two\n", "second")

	outcome, err := controller.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, update.StatusSuccess, outcome.Status)
	require.False(t, outcome.StashUsed)
	require.Equal(t, "two\n", readFile(t, filepath.Join(vendor, "file.txt")))

	// Nothing new: the same pull is a no-op.
	outcome, err = controller.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, update.StatusUpToDate, outcome.Status)

	// Local divergence on a file the remote also changed: the merge is
	// refused and the caller is asked to retry with overwrite.
	require.NoError(t, os.WriteFile(filepath.Join(vendor, "file.txt"), []byte("local edit\n"), 0o600))
	commitFile(t, origin, "file.txt", "three\n", "third")

	outcome, err = controller.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, update.StatusNeedsRetry, outcome.Status)
	require.NotEmpty(t, outcome.LogPath)
	require.FileExists(t, outcome.LogPath)

	// Overwrite: local edit is stashed, the tree is forced onto the
	// remote tip that the failed pull already fetched.
	outcome, err = controller.Run(ctx, true)
	require.NoError(t, err)
	require.Equal(t, update.StatusUpToDate, outcome.Status)
	require.True(t, outcome.StashUsed)
	require.True(t, controller.StashPending())
	require.Equal(t, "three\n", readFile(t, filepath.Join(vendor, "file.txt")))

	// Discard the stash; the repository ends the session clean.
	require.NoError(t, controller.FinalizeStash(ctx, false))
	require.False(t, controller.StashPending())
	require.Empty(t, strings.TrimSpace(git(t, vendor, "stash", "list")))
}

// TestPin_AgainstRealGit checks out a tag, a commit and a branch through
// the classification chain using an actual git binary.
func TestPin_AgainstRealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	ctx := context.Background()

	origin := t.TempDir()
	git(t, origin, "init", "-b", "main")
	commitFile(t, origin, "file.txt", "one\n", "initial")
	git(t, origin, "tag", "1.0.0")
	commitFile(t, origin, "file.txt", "two\n", "second")

	vendor := filepath.Join(t.TempDir(), "checkout")
	git(t, filepath.Dir(vendor), "clone", origin, vendor)

	snk, err := sink.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = snk.Close() })

	cfg := &config.Config{
		VendorDir:      vendor,
		AppDir:         vendor,
		RemoteRef:      "origin/main",
		AllowInAppPull: true,
	}
	require.NoError(t, config.Validate(cfg))

	controller := update.NewController(cfg, execx.NewRunner(), snk)

	require.NoError(t, controller.Pin(ctx, "tags/1.0.0", false))
	require.Equal(t, "one\n", readFile(t, filepath.Join(vendor, "file.txt")))

	sha := strings.TrimSpace(git(t, vendor, "rev-parse", "origin/main"))

	require.NoError(t, controller.Pin(ctx, sha, false))
	require.Equal(t, "two\n", readFile(t, filepath.Join(vendor, "file.txt")))

	require.NoError(t, controller.Pin(ctx, "main", false))
	require.Equal(t, "main", strings.TrimSpace(git(t, vendor, "rev-parse", "--abbrev-ref", "HEAD")))
}
