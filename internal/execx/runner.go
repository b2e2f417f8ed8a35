package execx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrLaunch indicates the program could not be started at all:
// a missing executable or an invalid working directory.
var ErrLaunch = errors.New("unable to launch command")

// Command describes one external tool invocation.
type Command struct {
	// Name is the program to run, resolved via PATH unless absolute.
	Name string
	// Args is the ordered argument list.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the launcher's environment.
	Env []string
}

// Result is the outcome of a completed invocation.
type Result struct {
	// ExitCode is the program's exit status.
	ExitCode int
	// Output is the merged stdout and stderr text.
	Output string
}

// Runner executes external commands to completion.
type Runner interface {
	// Run executes the command and captures its combined output.
	Run(ctx context.Context, cmd Command) (*Result, error)
	// Stream executes the command, invoking onLine for every merged
	// output line as it arrives, and still returns the full capture.
	Stream(ctx context.Context, cmd Command, onLine func(string)) (*Result, error)
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return &execRunner{}
}

// Run executes the command and waits for completion.
func (r *execRunner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = environ(c.Env)

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, c.Name, err)
		}
	}

	return &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   string(output),
	}, nil
}

// Stream executes the command forwarding merged output line by line.
func (r *execRunner) Stream(ctx context.Context, c Command, onLine func(string)) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = environ(c.Env)

	// One pipe carries both streams so line order matches arrival order.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()

		return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, c.Name, err)
	}

	waitCh := make(chan error, 1)

	go func() {
		waitErr := cmd.Wait()
		_ = pw.Close()
		waitCh <- waitErr
	}()

	var captured strings.Builder

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		captured.WriteString(line)
		captured.WriteByte('\n')

		if onLine != nil {
			onLine(line)
		}
	}

	// A scan failure (an oversized line, for instance) leaves the pipe
	// unread; keep draining it or the child blocks on write and never
	// exits.
	scanErr := scanner.Err()
	if scanErr != nil {
		_, _ = io.Copy(io.Discard, pr)
	}

	waitErr := <-waitCh
	if scanErr != nil {
		return nil, fmt.Errorf("read output of %s: %w", c.Name, scanErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrLaunch, c.Name, waitErr)
		}
	}

	return &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   captured.String(),
	}, nil
}

// environ merges extra variables over the current process environment.
func environ(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}

	return append(os.Environ(), extra...)
}
