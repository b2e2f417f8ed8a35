package update

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/weyland-labs/weyland-launcher/internal/logger"
)

// RefKind classifies a user-supplied ref for manual pinning.
type RefKind int

const (
	// RefBranch is a branch name, with any origin/ prefix stripped.
	RefBranch RefKind = iota
	// RefTag is a tag name, recognized by a tags/ prefix.
	RefTag
	// RefCommit is a full or abbreviated commit hash.
	RefCommit
)

// shaPattern matches short and long hex object names.
var shaPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// ClassifyRef decides what a pin target refers to and returns the
// normalized name. Precedence is hash pattern, then tags/ prefix, then
// origin/ prefix, then literal branch name. A branch literally named like
// a hex string is misclassified as a commit; that ambiguity is accepted.
func ClassifyRef(ref string) (RefKind, string) {
	ref = strings.TrimSpace(ref)

	switch {
	case shaPattern.MatchString(ref):
		return RefCommit, ref
	case strings.HasPrefix(ref, "tags/"):
		return RefTag, strings.TrimPrefix(ref, "tags/")
	case strings.HasPrefix(ref, "origin/"):
		return RefBranch, strings.TrimPrefix(ref, "origin/")
	default:
		return RefBranch, ref
	}
}

// Pin checks the vendor checkout out at an explicit ref.
//
// Branches either become a local tracking branch reset to the remote, or,
// with exact, the tree detaches directly onto the remote commit.
func (c *Controller) Pin(ctx context.Context, ref string, exact bool) error {
	ctx = logger.WithName(ctx, "pin")

	if _, err := os.Stat(c.repoDir); err != nil {
		return fmt.Errorf("%w: %s", ErrVendorDirMissing, c.repoDir)
	}

	kind, name := ClassifyRef(ref)

	fetch, err := c.git(ctx, "fetch", "origin", "--tags")
	if err != nil {
		return err
	}

	if fetch.ExitCode != 0 {
		return fmt.Errorf("%w: %s", ErrCheckoutFailed, failureMessage("git fetch failed", fetch.Output))
	}

	var args []string

	switch kind {
	case RefCommit:
		logger.InfoKV(ctx, "Pinning to commit", "commit", name)

		args = []string{"checkout", "--detach", name}
	case RefTag:
		logger.InfoKV(ctx, "Pinning to tag", "tag", name)

		args = []string{"checkout", "--detach", "tags/" + name}
	default:
		if exact {
			logger.InfoKV(ctx, "Pinning to remote branch commit", "branch", name)

			args = []string{"checkout", "--detach", "origin/" + name}
		} else {
			logger.InfoKV(ctx, "Pinning to tracking branch", "branch", name)

			args = []string{"checkout", "-B", name, "origin/" + name}
		}
	}

	res, err := c.git(ctx, args...)
	if err != nil {
		return err
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s", ErrCheckoutFailed, failureMessage("git checkout failed", res.Output))
	}

	c.sink.Log("Vendor checkout pinned to " + ref + ".")

	return nil
}
