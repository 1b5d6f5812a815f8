package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Archiver moves workflow artifacts out of the working directories once an
// instance completes or is cancelled, and purges temp files on reset.
type Archiver struct {
	archiveDir string
	tempDir    string
	logger     *zap.Logger
}

// NewArchiver creates an archiver rooted at archiveDir
func NewArchiver(archiveDir, tempDir string, logger *zap.Logger) *Archiver {
	return &Archiver{archiveDir: archiveDir, tempDir: tempDir, logger: logger}
}

// ArchiveCompleted moves the named artifacts into archive/YYYY-MM/.
// Missing sources are skipped; the month folder is created as needed.
func (a *Archiver) ArchiveCompleted(year, month int, files map[string]string) (string, error) {
	dir := filepath.Join(a.archiveDir, fmt.Sprintf("%04d-%02d", year, month))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	for name, src := range files {
		if src == "" {
			continue
		}
		if err := a.moveFile(src, filepath.Join(dir, name)); err != nil {
			return "", err
		}
	}

	return dir, nil
}

// ArchiveCancelled moves partial artifacts into archive/cancelled/<timestamp>/
func (a *Archiver) ArchiveCancelled(now time.Time, paths []string) (string, error) {
	dir := filepath.Join(a.archiveDir, "cancelled", now.Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cancelled directory: %w", err)
	}

	for _, src := range paths {
		if src == "" {
			continue
		}
		if err := a.moveFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return "", err
		}
	}

	return dir, nil
}

// CleanTemp removes every file in the temp directory; idempotent
func (a *Archiver) CleanTemp() error {
	entries, err := os.ReadDir(a.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read temp directory: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(a.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			a.logger.Warn("Failed to remove temp artifact",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	return nil
}

// moveFile renames src to dst, falling back to copy+remove across devices.
// A missing source is skipped, not an error: cancel may run before any
// artifact exists.
func (a *Archiver) moveFile(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if err := os.Rename(src, dst); err == nil {
		a.logger.Info("Archived file", zap.String("from", src), zap.String("to", dst))
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		a.logger.Warn("Failed to remove source after copy", zap.String("path", src), zap.Error(err))
	}

	a.logger.Info("Archived file", zap.String("from", src), zap.String("to", dst))
	return nil
}
