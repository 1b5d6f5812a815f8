package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultRenderTimeout bounds a single HTML-to-PDF conversion
const DefaultRenderTimeout = 30 * time.Second

// Renderer converts HTML documents to PDF via headless Chromium
type Renderer struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewRenderer creates a renderer with the given per-conversion timeout
func NewRenderer(timeout time.Duration, logger *zap.Logger) *Renderer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &Renderer{timeout: timeout, logger: logger}
}

// RenderHTML writes html as a PDF to outPath
func (r *Renderer) RenderHTML(ctx context.Context, html string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdfBuf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to render HTML to PDF: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outPath, pdfBuf, 0644); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	r.logger.Info("Rendered HTML to PDF",
		zap.String("output", outPath),
		zap.Int("size_bytes", len(pdfBuf)))

	return nil
}
