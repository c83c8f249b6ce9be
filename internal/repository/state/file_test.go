package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal state.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "nested", "state.yaml")
	repo := NewFileRepository(file)

	until := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	want := &Snapshot{
		Current: &deployment.Metadata{
			Version:          "2.3.1",
			RepositoryID:     "central",
			ArtifactLocation: "/opt/payload/payload-app-2.3.1.jar",
			ProcessID:        4242,
		},
		Blocklist: map[string]time.Time{"2.4.0": until},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Current, got.Current)
	require.Len(t, got.Blocklist, 1)
	require.True(t, until.Equal(got.Blocklist["2.4.0"]))

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestFileRepository_EmptySnapshot ensures an absent current build stays absent.
func TestFileRepository_EmptySnapshot(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.yaml"))

	require.NoError(t, repo.Save(context.Background(), &Snapshot{}))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, got.Current)
	require.Empty(t, got.Blocklist)
}

// TestFileRepository_Malformed reports decode errors.
func TestFileRepository_Malformed(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(file, []byte("current: [unterminated"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
