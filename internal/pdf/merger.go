package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// Merger concatenates PDF documents page-for-page in input order
type Merger struct {
	logger *zap.Logger
}

// NewMerger creates a new merger
func NewMerger(logger *zap.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge concatenates the input PDFs, in order, into outPath.
// Fails before writing anything if any input is missing.
func (m *Merger) Merge(inPaths []string, outPath string) error {
	if len(inPaths) == 0 {
		return fmt.Errorf("at least one input PDF is required")
	}

	for _, p := range inPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("input PDF not found: %s: %w", p, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := api.MergeCreateFile(inPaths, outPath, false, nil); err != nil {
		return fmt.Errorf("failed to merge PDFs: %w", err)
	}

	m.logger.Info("Merged PDFs",
		zap.Int("inputs", len(inPaths)),
		zap.String("output", outPath))

	return nil
}
