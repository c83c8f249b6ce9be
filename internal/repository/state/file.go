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

	"github.com/oshokin/deploy-manager/internal/config"
	"github.com/oshokin/deploy-manager/internal/domain/deployment"
)

// Snapshot is what survives a supervisor restart.
type Snapshot struct {
	// Current is the build running when the snapshot was taken, nil if none.
	Current *deployment.Metadata
	// Blocklist maps failed versions to the end of their blocklisting.
	Blocklist map[string]time.Time
}

// Repository defines persistence operations for the deployment state.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the snapshot to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// stateRecord is the on-disk layout.
type stateRecord struct {
	Current   *metadataRecord      `yaml:"current,omitempty"`
	Blocklist map[string]time.Time `yaml:"blocklist,omitempty"`
	SavedAt   time.Time            `yaml:"saved_at"`
}

type metadataRecord struct {
	Version          string `yaml:"version"`
	RepositoryID     string `yaml:"repository_id,omitempty"`
	ArtifactLocation string `yaml:"artifact_location,omitempty"`
	ProcessID        int    `yaml:"process_id,omitempty"`
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var record stateRecord
	if err = yaml.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromRecord(&record), nil
}

// Save writes the snapshot to disk.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(toRecord(snapshot))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd // Conventional directory mode.
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromRecord converts the on-disk record into a Snapshot.
func fromRecord(record *stateRecord) *Snapshot {
	snapshot := &Snapshot{
		Blocklist: make(map[string]time.Time, len(record.Blocklist)),
	}

	for version, until := range record.Blocklist {
		snapshot.Blocklist[version] = until
	}

	if m := record.Current; m != nil && m.Version != "" {
		snapshot.Current = &deployment.Metadata{
			Version:          m.Version,
			RepositoryID:     m.RepositoryID,
			ArtifactLocation: m.ArtifactLocation,
			ProcessID:        m.ProcessID,
		}
	}

	return snapshot
}

// toRecord converts a Snapshot into its on-disk record.
func toRecord(snapshot *Snapshot) *stateRecord {
	record := &stateRecord{
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}

	if snapshot == nil {
		return record
	}

	record.Blocklist = snapshot.Blocklist

	if m := snapshot.Current; m != nil {
		record.Current = &metadataRecord{
			Version:          m.Version,
			RepositoryID:     m.RepositoryID,
			ArtifactLocation: m.ArtifactLocation,
			ProcessID:        m.ProcessID,
		}
	}

	return record
}
