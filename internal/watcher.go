package internal

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher ingests files as they appear under a source tree. A file is
// ingested once it has seen no create or write event for the settle delay.
type Watcher struct {
	watcher  *fsnotify.Watcher
	ingestor *Ingestor
	destRoot string
	settle   time.Duration
	logger   *slog.Logger
	onResult func(Result)

	sem     chan struct{}
	mu      sync.Mutex
	pending map[string]*pendingFile
	wg      sync.WaitGroup
}

type pendingFile struct {
	timer *time.Timer
}

// NewWatcher creates a watcher that ingests into destRoot with at most
// workers files in flight. onResult may be nil.
func NewWatcher(ingestor *Ingestor, destRoot string, settle time.Duration, workers int, logger *slog.Logger, onResult func(Result)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Watcher{
		watcher:  fsWatcher,
		ingestor: ingestor,
		destRoot: destRoot,
		settle:   settle,
		logger:   orDiscard(logger),
		onResult: onResult,
		sem:      make(chan struct{}, workers),
		pending:  make(map[string]*pendingFile),
	}, nil
}

// Run watches sourceRoot until ctx is done, then waits for in-flight files.
func (w *Watcher) Run(ctx context.Context, sourceRoot string) error {
	defer w.watcher.Close()

	if err := w.addRecursive(ctx, sourceRoot, false); err != nil {
		return fmt.Errorf("watch %s: %w", sourceRoot, err)
	}
	w.logger.Info(fmt.Sprintf("Watching %s", sourceRoot))

	for {
		select {
		case <-ctx.Done():
			w.stop()
			w.logger.Info("Watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.stop()
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stop()
				return nil
			}
			w.logger.Warn(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if w.ignored(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files may land in a new directory before it is watched.
			if err := w.addRecursive(ctx, event.Name, true); err != nil {
				w.logger.Warn(fmt.Sprintf("Failed to watch %s: %v", event.Name, err))
			}
			return
		}
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// addRecursive watches root and its subdirectories. With schedule set, files
// already present are queued too.
func (w *Watcher) addRecursive(ctx context.Context, root string, schedule bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if schedule && d.Type().IsRegular() {
			w.schedule(ctx, path)
		}
		return nil
	})
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(w.settle)
		return
	}

	p := &pendingFile{}
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.fire(ctx, path, p)
	})
	w.pending[path] = p
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		delete(w.pending, path)
		w.wg.Done()
	}
}

func (w *Watcher) fire(ctx context.Context, path string, p *pendingFile) {
	w.mu.Lock()
	if w.pending[path] == p {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-w.sem }()

	r := w.ingestor.Ingest(ctx, path, w.destRoot)
	if w.onResult != nil {
		w.onResult(r)
	}
}

// stop drops files still settling and waits for running ingests.
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// ignored reports paths the watcher must not react to: the destination tree
// and temp files.
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".tmp") {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dest, err := filepath.Abs(w.destRoot)
	if err != nil {
		return false
	}
	return abs == dest || strings.HasPrefix(abs, dest+string(filepath.Separator))
}
