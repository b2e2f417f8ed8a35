package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// readServerLog returns the contents of the single daily log file under dir.
func readServerLog(t *testing.T, dir string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "server-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	contents, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	return string(contents)
}

// TestAppendWritesFileAndEmits verifies a line lands in the daily file and
// in the event stream.
func TestAppendWritesFileAndEmits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var events []Event

	s, err := New(dir, func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	defer s.Close()

	s.Append("server listening")
	s.Log("progress only")
	s.ServerReady("http://127.0.0.1:8000/")

	contents := readServerLog(t, dir)
	require.Contains(t, contents, "server listening\n")
	require.NotContains(t, contents, "progress only")

	require.Len(t, events, 3)
	require.Equal(t, EventLog, events[0].Kind)
	require.Equal(t, "server listening", events[0].Line)
	require.Equal(t, EventLog, events[1].Kind)
	require.Equal(t, EventServerReady, events[2].Kind)
	require.Equal(t, "http://127.0.0.1:8000/", events[2].URL)
}

// TestConcurrentAppendsDoNotInterleave hammers Append from many goroutines
// and checks every written line survives intact.
func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := New(dir, nil)
	require.NoError(t, err)

	defer s.Close()

	const (
		writers = 8
		perLine = 200
	)

	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for i := 0; i < perLine; i++ {
				s.Append(fmt.Sprintf("writer-%d line-%d suffix", w, i))
			}
		}(w)
	}

	wg.Wait()

	lines := strings.Split(strings.TrimRight(readServerLog(t, dir), "\n"), "\n")
	require.Len(t, lines, writers*perLine)

	for _, line := range lines {
		require.Regexp(t, `^writer-\d+ line-\d+ suffix$`, line)
	}
}

// TestNilEmitter ensures a sink without an emitter still appends safely.
func TestNilEmitter(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	defer s.Close()

	s.Append("quiet line")
	s.Log("dropped")
	s.ServerReady("http://localhost/")
}
