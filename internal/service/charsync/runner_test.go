package charsync

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/sink"
)

// fakeRunner returns a scripted result and replays output via the callback.
type fakeRunner struct {
	result *execx.Result
	err    error
	called bool
	cmd    execx.Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd execx.Command) (*execx.Result, error) {
	return f.Stream(ctx, cmd, nil)
}

func (f *fakeRunner) Stream(_ context.Context, cmd execx.Command, onLine func(string)) (*execx.Result, error) {
	f.called = true
	f.cmd = cmd

	if f.err != nil {
		return nil, f.err
	}

	if onLine != nil {
		for _, line := range strings.Split(strings.TrimRight(f.result.Output, "\n"), "\n") {
			if line != "" {
				onLine(line)
			}
		}
	}

	return f.result, nil
}

func newTestRunner(t *testing.T, fake *fakeRunner, enabled bool, url string) (*Runner, *[]sink.Event) {
	t.Helper()

	var events []sink.Event

	snk, err := sink.New(t.TempDir(), func(e sink.Event) { events = append(events, e) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = snk.Close() })

	cfg := &config.Config{
		AppDir:               t.TempDir(),
		CharacterSyncEnabled: enabled,
		CharacterSyncURL:     url,
	}
	require.NoError(t, config.Validate(cfg))

	return New(cfg, fake, snk), &events
}

// TestRunStreamsOutputAndSucceeds verifies a zero exit maps to success and
// each output line reaches the sink as it arrives.
func TestRunStreamsOutputAndSucceeds(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{result: &execx.Result{ExitCode: 0, Output: "downloading a\ndownloading b\n"}}

	r, events := newTestRunner(t, fake, true, "https://example.com/content")

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "Character update completed.", res.Message)

	var lines []string

	for _, e := range *events {
		if e.Kind == sink.EventLog {
			lines = append(lines, e.Line)
		}
	}

	require.Contains(t, lines, "downloading a")
	require.Contains(t, lines, "downloading b")
	require.Equal(t, "node", fake.cmd.Name)
	require.Equal(t, []string{syncScript, "https://example.com/content", "-u"}, fake.cmd.Args)
}

// TestRunNonZeroExitIsNonFatal verifies a failing sync comes back as an
// unsuccessful result, not an error.
func TestRunNonZeroExitIsNonFatal(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{result: &execx.Result{ExitCode: 2, Output: "mega: quota exceeded\n"}}

	r, _ := newTestRunner(t, fake, true, "https://example.com/content")

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Message, "failed")
}

// TestRunLaunchFailureIsNonFatal verifies a missing tool is reported, not raised.
func TestRunLaunchFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{err: execx.ErrLaunch}

	r, _ := newTestRunner(t, fake, true, "https://example.com/content")

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.Success)
}

// TestRunDisabledOrUnconfigured verifies the guard paths spawn nothing.
func TestRunDisabledOrUnconfigured(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{result: &execx.Result{ExitCode: 0}}

	r, _ := newTestRunner(t, fake, false, "https://example.com/content")

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.False(t, fake.called)

	fake = &fakeRunner{result: &execx.Result{ExitCode: 0}}

	r, _ = newTestRunner(t, fake, true, "")

	res, err = r.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.False(t, fake.called)
}
