package cursor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestShouldRunNoFile tests that a missing cursor file means a sync is due
func TestShouldRunNoFile(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.True(t, store.ShouldRun(time.Now().UTC()))
}

// TestShouldRunRecentAttempt tests that a freshly written cursor throttles the next run
func TestShouldRunRecentAttempt(t *testing.T) {
	store := NewStore(t.TempDir())
	now := time.Now().UTC()
	require.NoError(t, store.Save(now))

	assert.False(t, store.ShouldRun(now))
	assert.False(t, store.ShouldRun(now.Add(23*time.Hour)))
}

// TestShouldRunOldAttempt tests that the throttle is based on the file
// modification time, not the stored value
func TestShouldRunOldAttempt(t *testing.T) {
	store := NewStore(t.TempDir())
	now := time.Now().UTC()
	require.NoError(t, store.Save(now))

	stale := now.Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(), stale, stale))

	assert.True(t, store.ShouldRun(now))
}

// TestLoadRoundTrip tests that Save followed by Load preserves the timestamp
func TestLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	now := time.Date(2026, 8, 25, 10, 30, 0, 123456789, time.UTC)
	require.NoError(t, store.Save(now))

	loaded, ok := store.Load()
	require.True(t, ok)
	assert.True(t, loaded.Equal(now), "expected %v, got %v", now, loaded)
}

// TestLoadMissingFile tests that an absent cursor is reported as absence
func TestLoadMissingFile(t *testing.T) {
	store := NewStore(t.TempDir())
	_, ok := store.Load()
	assert.False(t, ok)
}

// TestLoadUnparsableContent tests that a corrupt cursor is treated as
// absence rather than an error
func TestLoadUnparsableContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not-a-number"), 0644))

	store := NewStore(dir)
	_, ok := store.Load()
	assert.False(t, ok)
}

// TestSaveOverwrites tests that Save replaces any previous value wholesale
func TestSaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	first := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	loaded, ok := store.Load()
	require.True(t, ok)
	assert.True(t, loaded.Equal(second))
}
