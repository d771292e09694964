package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers is the size of the ingest worker set.
	DefaultWorkers = 4

	lockFileName = ".mediasort.lock"
)

// Observer is notified as a batch progresses. Finished is called from
// worker goroutines.
type Observer interface {
	Started(total int)
	Finished(r Result)
}

// Summary aggregates the results of one batch.
type Summary struct {
	Source             string
	Destination        string
	Total              int
	Copied             int
	SkippedDuplicate   int
	SkippedUnsupported int
	Failed             int
	BytesCopied        int64
	Duration           time.Duration
	Errors             *ErrorStats
	Results            []Result

	mu sync.Mutex
}

func newSummary(source, dest string) *Summary {
	return &Summary{Source: source, Destination: dest, Errors: NewErrorStats()}
}

func (s *Summary) add(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusCopied:
		s.Copied++
		s.BytesCopied += r.Bytes
	case StatusSkippedDuplicate:
		s.SkippedDuplicate++
	case StatusSkippedUnsupported:
		s.SkippedUnsupported++
	case StatusFailed:
		s.Failed++
		if r.Err != nil {
			s.Errors.Add(r.Err)
		}
		return
	}
	s.Errors.ResetConsecutive()
}

// Coordinator runs an Ingestor over every file of a source tree with a
// bounded number of workers.
type Coordinator struct {
	ingestor *Ingestor
	workers  int
	logger   *slog.Logger
	metrics  *Metrics
	observer Observer
	// locked means the caller already holds the destination lock.
	locked bool
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) { c.observer = o }
}

// WithHeldLock tells Run that the caller holds the destination lock from
// LockDestination and keeps it past the run.
func WithHeldLock() CoordinatorOption {
	return func(c *Coordinator) { c.locked = true }
}

func NewCoordinator(ingestor *Ingestor, workers int, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	if workers < 1 {
		workers = DefaultWorkers
	}
	c := &Coordinator{ingestor: ingestor, workers: workers, logger: orDiscard(logger)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run ingests every file under sourceRoot into destRoot and waits for all of
// them. Per-file failures are part of the Summary; the returned error is
// always a *BatchError and means no file was processed.
func (c *Coordinator) Run(ctx context.Context, sourceRoot, destRoot string) (*Summary, error) {
	start := time.Now()
	c.logger.Info(fmt.Sprintf("Processing directory: %s", sourceRoot))
	c.logger.Info(fmt.Sprintf("Target directory: %s", destRoot))

	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, c.abort("create destination", err)
	}

	if !c.locked {
		unlock, err := LockDestination(destRoot)
		if err != nil {
			return nil, c.abort("lock destination", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				c.logger.Warn(fmt.Sprintf("Failed to release destination lock: %v", err))
			}
		}()
	}

	if info, err := os.Stat(sourceRoot); err != nil {
		return nil, c.abort("scan source", err)
	} else if !info.IsDir() {
		return nil, c.abort("scan source", fmt.Errorf("%s is not a directory", sourceRoot))
	}

	paths, err := Enumerate(sourceRoot, destRoot)
	if err != nil {
		return nil, c.abort("scan source", err)
	}
	c.logger.Info(fmt.Sprintf("Found %d files to process", len(paths)))

	summary := newSummary(sourceRoot, destRoot)
	summary.Total = len(paths)
	if c.observer != nil {
		c.observer.Started(len(paths))
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, path := range paths {
		if ctx.Err() != nil {
			// Not dispatched; reported so the log still covers every file.
			c.record(summary, c.ingestor.fail(path, ctx.Err(), time.Now()))
			continue
		}
		g.Go(func() error {
			c.record(summary, c.ingestor.Ingest(ctx, path, destRoot))
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start)
	if c.metrics != nil {
		c.metrics.RunFinished(summary.Duration)
	}
	if systemic, reason := summary.Errors.Systemic(); systemic {
		c.logger.Warn(reason)
	}
	c.logger.Info("Processing completed",
		"copied", summary.Copied,
		"duplicates", summary.SkippedDuplicate,
		"unsupported", summary.SkippedUnsupported,
		"failed", summary.Failed,
		"duration", summary.Duration.Round(time.Millisecond).String(),
	)
	return summary, nil
}

// LockDestination takes the cross-process lock on destRoot, creating the
// directory if needed. It fails with ErrLocked while another run holds it.
func LockDestination(destRoot string) (unlock func() error, err error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(destRoot, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrLocked
	}
	return lock.Unlock, nil
}

func (c *Coordinator) record(summary *Summary, r Result) {
	summary.add(r)
	if c.metrics != nil {
		c.metrics.Observe(r)
	}
	if c.observer != nil {
		c.observer.Finished(r)
	}
}

func (c *Coordinator) abort(op string, err error) error {
	c.logger.Error(fmt.Sprintf("Failed to process directory: %s: %v", op, err))
	return &BatchError{Op: op, Err: err}
}
