package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0644))
}

func TestArchiveCompleted(t *testing.T) {
	root := t.TempDir()
	a := NewArchiver(filepath.Join(root, "archive"), filepath.Join(root, "temp"), zap.NewNop())

	ts := filepath.Join(root, "incoming", "jan.pdf")
	inv := filepath.Join(root, "temp", "invoice_1.pdf")
	merged := filepath.Join(root, "temp", "merged_01_2026.pdf")
	for _, p := range []string{ts, inv, merged} {
		writeFile(t, p)
	}

	dir, err := a.ArchiveCompleted(2026, 1, map[string]string{
		"timesheet.pdf": ts,
		"invoice.pdf":   inv,
		"merged.pdf":    merged,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "archive", "2026-01"), dir)

	for _, name := range []string{"timesheet.pdf", "invoice.pdf", "merged.pdf"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, ts)
}

func TestArchiveCompleted_MissingSourceSkipped(t *testing.T) {
	root := t.TempDir()
	a := NewArchiver(filepath.Join(root, "archive"), filepath.Join(root, "temp"), zap.NewNop())

	dir, err := a.ArchiveCompleted(2026, 2, map[string]string{
		"timesheet.pdf": filepath.Join(root, "missing.pdf"),
		"invoice.pdf":   "",
	})
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestArchiveCancelled(t *testing.T) {
	root := t.TempDir()
	a := NewArchiver(filepath.Join(root, "archive"), filepath.Join(root, "temp"), zap.NewNop())

	ts := filepath.Join(root, "incoming", "jan.pdf")
	writeFile(t, ts)

	now := time.Date(2026, 1, 20, 14, 30, 5, 0, time.UTC)
	dir, err := a.ArchiveCancelled(now, []string{ts, ""})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "archive", "cancelled", "20260120_143005"), dir)
	assert.FileExists(t, filepath.Join(dir, "jan.pdf"))
}

func TestCleanTemp(t *testing.T) {
	root := t.TempDir()
	temp := filepath.Join(root, "temp")
	a := NewArchiver(filepath.Join(root, "archive"), temp, zap.NewNop())

	writeFile(t, filepath.Join(temp, "invoice_1.pdf"))
	writeFile(t, filepath.Join(temp, "approval.pdf"))

	require.NoError(t, a.CleanTemp())
	entries, err := os.ReadDir(temp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Idempotent, including when the directory is gone
	require.NoError(t, os.RemoveAll(temp))
	assert.NoError(t, a.CleanTemp())
}
