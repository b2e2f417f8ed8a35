package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weyland-labs/weyland-launcher/internal/config"
	"github.com/weyland-labs/weyland-launcher/internal/execx"
	"github.com/weyland-labs/weyland-launcher/internal/logger"
	"github.com/weyland-labs/weyland-launcher/internal/sink"
)

// serverEntryPoint is the script the vendored application starts from.
const serverEntryPoint = "server.js"

const (
	// healthProbeAttempts bounds the readiness poll.
	healthProbeAttempts = 30
	// healthProbeBaseDelay is the wait before the second attempt.
	healthProbeBaseDelay = 500 * time.Millisecond
	// healthProbeDelayStep grows the wait a little on every attempt.
	healthProbeDelayStep = 100 * time.Millisecond
)

var (
	// ErrEntryPointMissing indicates the application directory holds no
	// server entry point. No subprocess is spawned in that case.
	ErrEntryPointMissing = errors.New("server entry point not found")
	// ErrHealthTimeout indicates the probe exhausted its attempts.
	ErrHealthTimeout = errors.New("server health check timed out")
	// errStartAborted reports a shutdown that arrived mid-start.
	errStartAborted = errors.New("server start aborted by shutdown")
)

// Supervisor owns the lifecycle of the bundled server process.
type Supervisor struct {
	cfg    *config.Config
	runner execx.Runner
	sink   *sink.Sink
	state  *State
	client *http.Client

	// probe knobs, overridable in tests.
	probeAttempts  int
	probeBaseDelay time.Duration
	probeDelayStep time.Duration

	// mu guards skipInstall, the session-scoped "never reinstall" override.
	mu          sync.Mutex
	skipInstall bool
}

// NewSupervisor builds a supervisor over a fresh State.
func NewSupervisor(cfg *config.Config, runner execx.Runner, snk *sink.Sink) *Supervisor {
	return &Supervisor{
		cfg:            cfg,
		runner:         runner,
		sink:           snk,
		state:          NewState(),
		client:         &http.Client{Timeout: 5 * time.Second},
		probeAttempts:  healthProbeAttempts,
		probeBaseDelay: healthProbeBaseDelay,
		probeDelayStep: healthProbeDelayStep,
	}
}

// State exposes the shared server state for status queries.
func (s *Supervisor) State() *State {
	return s.state
}

// Start walks Preparing, Installing, Starting and Probing, returning once
// the server answered its health probe. With force the install step is
// skipped for the rest of the session, regardless of policy.
func (s *Supervisor) Start(ctx context.Context, force bool) error {
	ctx = logger.WithName(ctx, "server")

	if force {
		s.setSkipInstall(true)
		s.sink.Log("Skipping npm install after previous failure at user request.")
	}

	if err := s.state.BeginStart(); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.sink.Log("The vendored application is already running.")
			return nil
		}

		return err
	}

	defer s.state.FinishStart()

	// Preparing.
	appDir := s.cfg.AppDir
	if _, err := os.Stat(filepath.Join(appDir, serverEntryPoint)); err != nil {
		return fmt.Errorf("%w: %s", ErrEntryPointMissing, filepath.Join(appDir, serverEntryPoint))
	}

	if err := s.ensureNode(ctx); err != nil {
		return err
	}

	// Installing.
	if err := s.installIfNeeded(ctx); err != nil {
		return err
	}

	// Starting.
	port, err := resolvePort(appDir, s.cfg.ServerHost, s.cfg.ServerPort)
	if err != nil {
		return err
	}

	args := normalizeServerArgs(s.cfg.ServerArgs, s.cfg.ServerHost, port)

	s.sink.Log("Starting the vendored application...")
	logger.InfoKV(ctx, "Spawning server", "host", s.cfg.ServerHost, "port", port)

	cmd := exec.Command("node", append([]string{serverEntryPoint}, args...)...)
	cmd.Dir = appDir
	cmd.Env = append(os.Environ(), nodeEnv(port)...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("%w: node: %v", execx.ErrLaunch, err)
	}

	pgid := processGroupID(cmd)
	done := make(chan struct{})

	if !s.state.Adopt(cmd, pgid, done) {
		// Shutdown won the race; the child must not survive it.
		killTree(cmd, pgid)
		_ = cmd.Wait()
		close(done)

		return errStartAborted
	}

	// The readers live as long as the child, not as long as this request.
	var readers errgroup.Group

	readers.Go(func() error { return s.forward(stdout) })
	readers.Go(func() error { return s.forward(stderr) })

	go func() {
		_ = readers.Wait()
		_ = cmd.Wait()
		s.state.Release(cmd)
		close(done)
	}()

	// Probing.
	url := fmt.Sprintf("http://%s:%d/", s.cfg.ServerHost, port)

	if err = s.waitForHealth(ctx, url); err != nil {
		s.sink.Log(fmt.Sprintf("Failed to verify server health at %s. Please check the logs.", url))
		s.Shutdown(ctx)

		return err
	}

	s.announceReady(cmd, url)

	return nil
}

// announceReady flips the readiness flag and tells the UI, unless a
// shutdown already took the child while the probe was finishing.
func (s *Supervisor) announceReady(cmd *exec.Cmd, url string) bool {
	if !s.state.MarkReady(cmd, url) {
		return false
	}

	s.sink.Log("The vendored application is now active at " + url + ".")
	s.sink.ServerReady(url)

	return true
}

// Shutdown terminates the supervised child and its process tree, if any.
// Safe to call from any state, including while a start is in flight.
func (s *Supervisor) Shutdown(ctx context.Context) {
	ctx = logger.WithName(ctx, "server")

	cmd, pgid, done := s.state.Take()
	if cmd == nil {
		return
	}

	logger.Info(ctx, "Terminating the server process tree")
	s.sink.Log("Stopping the vendored application...")

	if done == nil {
		reaped := make(chan struct{})

		go func() {
			_ = cmd.Wait()
			close(reaped)
		}()

		done = reaped
	}

	terminateTree(cmd, pgid, done)
}

// Restart is a shutdown followed by a fresh start.
func (s *Supervisor) Restart(ctx context.Context, force bool) error {
	s.Shutdown(ctx)

	return s.Start(ctx, force)
}

// forward copies child output line by line into the log sink.
func (s *Supervisor) forward(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		s.sink.Append(scanner.Text())
	}

	return scanner.Err()
}

// waitForHealth polls the health URL until it answers with a 2xx status.
// Connection refused simply means the server is not listening yet.
func (s *Supervisor) waitForHealth(ctx context.Context, url string) error {
	for attempt := 0; attempt < s.probeAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("build health request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err == nil {
			healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
			_ = resp.Body.Close()

			if healthy {
				return nil
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := s.probeBaseDelay + time.Duration(attempt)*s.probeDelayStep

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w after %d attempts: %s", ErrHealthTimeout, s.probeAttempts, url)
}

func (s *Supervisor) setSkipInstall(skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.skipInstall = skip
}

func (s *Supervisor) installSkipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.skipInstall
}

// nodeEnv is the environment the vendored application runs with. The
// browser-launch suppression keeps the child from opening its own window.
func nodeEnv(port int) []string {
	env := []string{
		"NODE_ENV=production",
		"NO_BROWSER=1",
		"BROWSER=none",
	}

	if port > 0 {
		env = append(env,
			fmt.Sprintf("PORT=%d", port),
			fmt.Sprintf("ST_PORT=%d", port),
		)
	}

	return env
}

// normalizeServerArgs appends the listen and no-open flags unless the
// configured arguments already carry them.
func normalizeServerArgs(configured []string, host string, port int) []string {
	args := append([]string(nil), configured...)

	if !containsArg(args, "--listen") {
		args = append(args, "--listen", "true")
	}

	if !containsArg(args, "--listen-host") {
		args = append(args, "--listen-host", host)
	}

	if !containsArg(args, "--listen-port") {
		args = append(args, "--listen-port", fmt.Sprintf("%d", port))
	}

	if !containsArg(args, "--no-open") {
		args = append(args, "--no-open")
	}

	return args
}

func containsArg(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}

	return false
}
