package dump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDumpFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("-- dump"), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func TestCleanupKeepsNewestDumps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oldest := writeDumpFile(t, dir, "autoria_dump_20260101_120000.sql", 96*time.Hour)
	older := writeDumpFile(t, dir, "autoria_dump_20260102_120000.sql", 72*time.Hour)
	newer := writeDumpFile(t, dir, "autoria_dump_20260103_120000.sql", 48*time.Hour)
	newest := writeDumpFile(t, dir, "autoria_dump_20260104_120000.sql", 24*time.Hour)

	m := New(Config{Dir: dir, Keep: 2}, nil)
	removed, err := m.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoFileExists(t, oldest)
	assert.NoFileExists(t, older)
	assert.FileExists(t, newer)
	assert.FileExists(t, newest)
}

func TestCleanupIgnoresUnrelatedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep me"), 0o644))
	kept := writeDumpFile(t, dir, "autoria_dump_20260101_120000.sql", time.Hour)

	m := New(Config{Dir: dir, Keep: 1}, nil)
	removed, err := m.Cleanup()
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.FileExists(t, unrelated)
	assert.FileExists(t, kept)
}

func TestCleanupMissingDirIsNotAnError(t *testing.T) {
	t.Parallel()

	m := New(Config{Dir: filepath.Join(t.TempDir(), "missing"), Keep: 3}, nil)
	removed, err := m.Cleanup()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
