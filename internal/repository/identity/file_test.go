package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_RoundTrip verifies saving and loading an identity.
func TestFileRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "identity.json")
	repository := NewFileRepository(path)

	// Nothing stored yet.
	_, err := repository.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	saved := Generate()
	require.NoError(t, repository.Save(context.Background(), saved))

	loaded, err := repository.Load(context.Background())

	require.NoError(t, err)
	require.Equal(t, saved.DeviceID, loaded.DeviceID)
	require.Equal(t, saved.Hostname, loaded.Hostname)
}

// TestLoadOrCreate verifies first-run generation and subsequent stability.
func TestLoadOrCreate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "identity.json")
	repository := NewFileRepository(path)

	first, err := LoadOrCreate(context.Background(), repository)

	require.NoError(t, err)
	require.NotEmpty(t, first.DeviceID)

	// The same identity survives a restart.
	second, err := LoadOrCreate(context.Background(), repository)

	require.NoError(t, err)
	require.Equal(t, first.DeviceID, second.DeviceID)
}

// TestGenerate verifies generated identities are unique and timestamped.
func TestGenerate(t *testing.T) {
	t.Parallel()

	a := Generate()
	b := Generate()

	require.NotEqual(t, a.DeviceID, b.DeviceID)
	require.False(t, a.CreatedAt.IsZero())
}
