package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// ResultStatus is the outcome of ingesting one file.
type ResultStatus int

const (
	StatusCopied ResultStatus = iota
	StatusSkippedDuplicate
	StatusSkippedUnsupported
	StatusFailed
)

func (s ResultStatus) String() string {
	switch s {
	case StatusCopied:
		return "copied"
	case StatusSkippedDuplicate:
		return "skipped_duplicate"
	case StatusSkippedUnsupported:
		return "skipped_unsupported"
	default:
		return "failed"
	}
}

// Result describes what happened to one source file. Dest is the new file
// for StatusCopied and the existing file for StatusSkippedDuplicate.
type Result struct {
	Status   ResultStatus
	Source   string
	Dest     string
	Capture  Capture
	Bytes    int64
	Duration time.Duration
	Err      *ProcessError
}

const publishAttempts = 3

// Ingestor classifies, dates, places and copies single files.
type Ingestor struct {
	classifier     *Classifier
	extractor      *Extractor
	planner        *Planner
	detector       *DuplicateDetector
	locks          *pathLocks
	skipDuplicates bool
	logger         *slog.Logger
}

// IngestorOption customizes an Ingestor.
type IngestorOption func(*Ingestor)

// WithUniqueNames disables duplicate detection: every file gets a fresh
// suffixed name when its base name is taken.
func WithUniqueNames() IngestorOption {
	return func(in *Ingestor) { in.skipDuplicates = false }
}

func NewIngestor(classifier *Classifier, extractor *Extractor, detector *DuplicateDetector, logger *slog.Logger, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		classifier:     classifier,
		extractor:      extractor,
		planner:        NewPlanner(),
		detector:       detector,
		locks:          newPathLocks(),
		skipDuplicates: true,
		logger:         orDiscard(logger),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest processes the file at path into destRoot. It never panics and never
// returns an error; failures are reported as StatusFailed.
func (in *Ingestor) Ingest(ctx context.Context, path, destRoot string) Result {
	start := time.Now()
	file, err := in.classifier.Stat(path)
	if err != nil {
		return in.fail(path, err, start)
	}
	return in.IngestFile(ctx, file, destRoot)
}

// IngestFile processes an already classified file.
func (in *Ingestor) IngestFile(ctx context.Context, file MediaFile, destRoot string) (res Result) {
	start := time.Now()
	if file.Kind == KindUnsupported {
		in.logger.Debug(fmt.Sprintf("Skipping unsupported file type: %s", file.Path))
		return Result{Status: StatusSkippedUnsupported, Source: file.Path, Duration: time.Since(start)}
	}
	if err := ctx.Err(); err != nil {
		return in.fail(file.Path, err, start)
	}

	defer func() {
		if r := recover(); r != nil {
			in.logger.Error(fmt.Sprintf("Panic while processing %s", file.Path), "stack", string(debug.Stack()))
			res = in.fail(file.Path, fmt.Errorf("panic: %v", r), start)
		}
	}()

	// A started file is finished even if the run is canceled meanwhile.
	ctx = context.WithoutCancel(ctx)

	capture := in.extractor.Extract(ctx, file)
	base, err := in.planner.Plan(capture.Time, file.Ext, destRoot, SkipDuplicates)
	if err != nil {
		return in.fail(file.Path, err, start)
	}

	// Every candidate name derives from base, so one lock covers them all.
	unlock := in.locks.Lock(base)
	defer unlock()

	for attempt := 1; ; attempt++ {
		dest, existing, err := in.resolve(capture, file, base, destRoot)
		if err != nil {
			return in.fail(file.Path, err, start)
		}
		if existing {
			in.logger.Info(fmt.Sprintf("Skipped duplicate: %s (existing: %s)", file.Path, dest))
			return Result{Status: StatusSkippedDuplicate, Source: file.Path, Dest: dest, Capture: capture, Duration: time.Since(start)}
		}

		n, err := copyFileAtomic(file, dest)
		if errors.Is(err, ErrDestinationExists) && attempt < publishAttempts {
			in.logger.Warn(fmt.Sprintf("Destination %s appeared during copy, retrying", dest))
			continue
		}
		if err != nil {
			return in.fail(file.Path, fmt.Errorf("failed to copy file %s to %s: %w", file.Path, dest, err), start)
		}

		in.logger.Info(fmt.Sprintf("Processed: %s -> %s", file.Path, dest), "source", capture.Source)
		return Result{Status: StatusCopied, Source: file.Path, Dest: dest, Capture: capture, Bytes: n, Duration: time.Since(start)}
	}
}

// resolve picks the destination under the held base lock. With duplicate
// detection on, candidates base, base (1), ... are walked in order: an
// identical one ends the walk as a duplicate, the first free one receives
// the copy.
func (in *Ingestor) resolve(capture Capture, file MediaFile, base, destRoot string) (string, bool, error) {
	if !in.skipDuplicates {
		dest, err := in.planner.Plan(capture.Time, file.Ext, destRoot, UniqueSuffix)
		return dest, false, err
	}

	for n := 0; ; n++ {
		candidate := SuffixedPath(base, n)
		ok, err := pathExists(candidate)
		if err != nil {
			return "", false, fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		if !ok {
			if n > 0 {
				in.logger.Info(fmt.Sprintf("Name conflict for %s, using %s", file.Path, filepath.Base(candidate)))
			}
			return candidate, false, nil
		}
		if in.detector.Identical(file.Path, candidate) {
			return candidate, true, nil
		}
	}
}

func (in *Ingestor) fail(path string, err error, start time.Time) Result {
	procErr := CategorizeError(path, err)
	in.logger.Error(fmt.Sprintf("Failed to process %s: %v", path, err),
		"category", string(procErr.Category),
		"severity", string(procErr.Severity),
		"suggestion", procErr.Suggestion,
	)
	return Result{Status: StatusFailed, Source: path, Err: procErr, Duration: time.Since(start)}
}

// copyFileAtomic copies file into a hidden temp file next to dest, restores
// mode and modification time, then publishes it under dest without ever
// replacing an existing file. The temp file never survives.
func copyFileAtomic(file MediaFile, dest string) (int64, error) {
	in, err := os.Open(file.Path)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmp := out.Name()
	defer os.Remove(tmp)

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmp, file.Mode.Perm()); err != nil {
		return 0, err
	}
	if err := os.Chtimes(tmp, time.Time{}, file.ModTime); err != nil {
		return 0, err
	}

	if err := os.Link(tmp, dest); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrDestinationExists
		}
		// No hard links on this filesystem (exFAT, some network mounts).
		if ok, _ := pathExists(dest); ok {
			return 0, ErrDestinationExists
		}
		if err := os.Rename(tmp, dest); err != nil {
			return 0, err
		}
	}
	return n, nil
}
