package server

import (
	"errors"
	"os/exec"
	"sync"
)

var (
	// ErrAlreadyRunning reports a start request while a child is alive.
	// Callers treat it as benign: the server they asked for exists.
	ErrAlreadyRunning = errors.New("server is already running")
	// ErrStartInProgress rejects a second start while one is in flight,
	// preventing duplicate children.
	ErrStartInProgress = errors.New("server start already in progress")
)

// State is the shared record of the supervised child process.
// All fields are guarded by mu; the zero value is ready to use.
type State struct {
	mu sync.Mutex

	// child is the live process, at most one at a time.
	child *exec.Cmd
	// pgid is the child's process group on platforms that support it.
	pgid int
	// done is closed once the child has been reaped.
	done chan struct{}
	// starting marks a start request between BeginStart and FinishStart.
	starting bool
	// closing is set when shutdown arrives while a start is in flight.
	closing bool
	// ready is true only after a health probe succeeded against child.
	ready bool
	// url is the resolved server URL, set together with ready.
	url string
}

// NewState returns an empty server state.
func NewState() *State {
	return &State{}
}

// Running reports whether a live child is recorded.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.child != nil
}

// Ready returns the readiness flag and the URL it was set for.
func (s *State) Ready() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready, s.url
}

// BeginStart claims the start slot. It fails when a child is already
// alive or another start is still in flight.
func (s *State) BeginStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child != nil {
		return ErrAlreadyRunning
	}

	if s.starting {
		return ErrStartInProgress
	}

	s.starting = true
	s.closing = false

	return nil
}

// FinishStart releases the start slot.
func (s *State) FinishStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.starting = false
}

// Adopt records a freshly spawned child. It refuses when a shutdown
// arrived while the start was in flight; the caller must then kill the
// child it just spawned.
func (s *State) Adopt(cmd *exec.Cmd, pgid int, done chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}

	s.child = cmd
	s.pgid = pgid
	s.done = done

	return true
}

// MarkReady sets the readiness flag, but only if the given process is
// still the recorded child. A probe that outlived its process must not
// mark a successor ready.
func (s *State) MarkReady(cmd *exec.Cmd, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child != cmd {
		return false
	}

	s.ready = true
	s.url = url

	return true
}

// Release clears the state after the child exited on its own. It is a
// no-op when the recorded child has already been replaced or taken.
func (s *State) Release(cmd *exec.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child != cmd {
		return
	}

	s.child = nil
	s.pgid = 0
	s.done = nil
	s.ready = false
	s.url = ""
}

// Take removes and returns the live child for termination. When a start
// is still in flight it flips closing, so the starter's Adopt fails and
// the mid-flight child cannot outlive this shutdown.
func (s *State) Take() (*exec.Cmd, int, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.starting {
		s.closing = true
	}

	cmd, pgid, done := s.child, s.pgid, s.done
	s.child = nil
	s.pgid = 0
	s.done = nil
	s.ready = false
	s.url = ""

	return cmd, pgid, done
}
