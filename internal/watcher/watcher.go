package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/event"
)

// Sink receives events produced by the watcher
type Sink interface {
	Enqueue(evt event.Event)
}

// Watcher observes the incoming folder for new timesheet PDFs. Writes are
// debounced per file so a slow copy produces a single event once it settles.
type Watcher struct {
	dir      string
	debounce time.Duration
	sink     Sink
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher over dir; the directory is created if missing
func New(dir string, debounce time.Duration, sink Sink, logger *zap.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		sink:     sink,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run watches until the context is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("Folder watcher started",
		zap.String("dir", w.dir),
		zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			w.cancelTimers()
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && isPDF(ev.Name) {
				w.schedule(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// schedule (re)arms the per-file debounce timer; each subsequent write while
// the file is still being copied pushes the event further out.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if _, err := os.Stat(path); err != nil {
			w.logger.Warn("Timesheet vanished before debounce elapsed", zap.String("path", path))
			return
		}

		w.logger.Info("New timesheet detected", zap.String("path", path))
		w.sink.Enqueue(event.NewNewTimesheet(path))
	})
}

func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
