package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// EventKind discriminates events delivered to the presentation layer.
type EventKind string

const (
	// EventLog carries one diagnostic line for the UI log view.
	EventLog EventKind = "log"
	// EventServerReady carries the URL of the now-healthy server.
	EventServerReady EventKind = "server-ready"
)

// Event is a single notification for the presentation layer.
type Event struct {
	// Kind tells the receiver how to interpret the event.
	Kind EventKind
	// Line is the log line for EventLog events.
	Line string
	// URL is the server URL for EventServerReady events.
	URL string
}

// EmitFunc receives events in emission order.
type EmitFunc func(Event)

// logFilePattern produces one server log file per calendar day.
const logFilePattern = "server-%Y%m%d.log"

// dailyRotation rotates the log file once per day.
const dailyRotation = 24 * time.Hour

// Sink is the append target for a single launcher run.
type Sink struct {
	// mu serializes file writes and event emission.
	mu sync.Mutex
	// out is the date-stamped daily log file.
	out *rotatelogs.RotateLogs
	// emit forwards events to the presentation layer.
	emit EmitFunc
}

// New creates a sink writing under logsDir and emitting through emit.
// A nil emit drops events, which keeps non-interactive callers simple.
func New(logsDir string, emit EmitFunc) (*Sink, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	out, err := rotatelogs.New(
		filepath.Join(logsDir, logFilePattern),
		rotatelogs.WithClock(rotatelogs.Local),
		rotatelogs.WithRotationTime(dailyRotation),
	)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}

	if emit == nil {
		emit = func(Event) {}
	}

	return &Sink{out: out, emit: emit}, nil
}

// Append writes one line to the daily log file and emits it as a log event.
func (s *Sink) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.out.Write([]byte(line + "\n"))
	s.emit(Event{Kind: EventLog, Line: line})
}

// Log emits a log event without touching the log file.
// Used for launcher progress messages that belong to the UI only.
func (s *Sink) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emit(Event{Kind: EventLog, Line: line})
}

// ServerReady announces the resolved server URL to the presentation layer.
func (s *Sink) ServerReady(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emit(Event{Kind: EventServerReady, URL: url})
}

// Close releases the underlying log file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.out.Close()
}
