package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weyland-labs/weyland-launcher/internal/config"
)

// Record is what the launcher remembers between invocations: the last
// update attempt and any ref the checkout was pinned to.
type Record struct {
	// LastUpdateStatus is the classification of the most recent update
	// attempt (upToDate, success, needsRetry, failed).
	LastUpdateStatus string `yaml:"last_update_status,omitempty"`
	// LastUpdateTime is when that attempt finished.
	LastUpdateTime time.Time `yaml:"last_update_time,omitempty"`
	// PinnedRef is the ref the vendor checkout was last pinned to, empty
	// when it follows the configured remote ref.
	PinnedRef string `yaml:"pinned_ref,omitempty"`
}

// Repository defines persistence operations for the launcher record.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// FileRepository persists the record to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// ErrNotFound is returned when the record file does not exist yet.
var ErrNotFound = errors.New("launcher record not found")

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read record file: %w", err)
	}

	var record Record
	if err = yaml.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode record file: %w", err)
	}

	return &record, nil
}

// Save writes the record to disk.
func (r *FileRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}

	return nil
}
