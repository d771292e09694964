package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ScanReport previews what an import of a source tree would work with.
type ScanReport struct {
	FolderPath  string
	TotalFiles  int
	TotalSize   int64
	ByKind      map[Kind]int
	ByExtension map[string]int
	BySource    map[string]int // capture time source: exif, ffprobe, exiftool, mtime
	Earliest    time.Time
	Latest      time.Time
	Failed      int
	Duration    time.Duration

	mu sync.Mutex
}

// AnalyzeFolder classifies and dates every file under folder without writing
// anything.
func AnalyzeFolder(ctx context.Context, folder string, p *Pipeline, workers int) (*ScanReport, error) {
	start := time.Now()
	paths, err := Enumerate(folder)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		FolderPath:  folder,
		TotalFiles:  len(paths),
		ByKind:      make(map[Kind]int),
		ByExtension: make(map[string]int),
		BySource:    make(map[string]int),
	}

	if workers < 1 {
		workers = DefaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := p.Classifier.Stat(path)
			if err != nil {
				report.addFailure()
				return nil
			}
			var capture Capture
			if file.Kind != KindUnsupported {
				capture = p.Extractor.Extract(gctx, file)
			}
			report.add(file, capture)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	report.Duration = time.Since(start)
	return report, nil
}

// Media returns the number of supported files.
func (r *ScanReport) Media() int {
	return r.ByKind[KindImage] + r.ByKind[KindVideo]
}

func (r *ScanReport) add(file MediaFile, capture Capture) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.TotalSize += file.Size
	r.ByKind[file.Kind]++
	if file.Kind == KindUnsupported {
		return
	}
	r.ByExtension[file.Ext]++
	r.BySource[capture.Source]++
	if r.Earliest.IsZero() || capture.Time.Before(r.Earliest) {
		r.Earliest = capture.Time
	}
	if capture.Time.After(r.Latest) {
		r.Latest = capture.Time
	}
}

func (r *ScanReport) addFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
}
