package update

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClassifyRef covers the precedence order: hash, tags/ prefix,
// origin/ prefix, then literal branch name.
func TestClassifyRef(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ref      string
		wantKind RefKind
		wantName string
	}{
		{"1a2b3c4", RefCommit, "1a2b3c4"},
		{"0123456789abcdef0123456789abcdef01234567", RefCommit, "0123456789abcdef0123456789abcdef01234567"},
		{"tags/v1.12.0", RefTag, "v1.12.0"},
		{"origin/nightly", RefBranch, "nightly"},
		{"release", RefBranch, "release"},
		// Too short for a hash, falls through to branch.
		{"abc123", RefBranch, "abc123"},
		// A branch named like a hash is misclassified on purpose.
		{"deadbeef", RefCommit, "deadbeef"},
	}

	for _, tc := range cases {
		kind, name := ClassifyRef(tc.ref)
		require.Equal(t, tc.wantKind, kind, tc.ref)
		require.Equal(t, tc.wantName, name, tc.ref)
	}
}

// TestPinBranch verifies the tracking-branch checkout sequence.
func TestPinBranch(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()

	c, _ := newTestController(t, runner)

	require.NoError(t, c.Pin(context.Background(), "origin/nightly", false))
	require.Equal(t, []string{
		"fetch origin --tags",
		"checkout -B nightly origin/nightly",
	}, runner.calls)
}

// TestPinBranchExact verifies the detached checkout used for exact pins.
func TestPinBranchExact(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()

	c, _ := newTestController(t, runner)

	require.NoError(t, c.Pin(context.Background(), "origin/nightly", true))
	require.Contains(t, runner.calls, "checkout --detach origin/nightly")
}

// TestPinTagAndCommit verifies tag and commit checkouts detach.
func TestPinTagAndCommit(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()

	c, _ := newTestController(t, runner)

	require.NoError(t, c.Pin(context.Background(), "tags/v1.12.0", false))
	require.Contains(t, runner.calls, "checkout --detach tags/v1.12.0")

	require.NoError(t, c.Pin(context.Background(), "5d6e7f8", false))
	require.Contains(t, runner.calls, "checkout --detach 5d6e7f8")
}

// TestPinCheckoutFailure surfaces the captured git output.
func TestPinCheckoutFailure(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.script("checkout -B nightly origin/nightly", 1, "error: pathspec 'origin/nightly' did not match\n")

	c, _ := newTestController(t, runner)

	err := c.Pin(context.Background(), "origin/nightly", false)
	require.ErrorIs(t, err, ErrCheckoutFailed)
	require.Contains(t, err.Error(), "pathspec")
}
