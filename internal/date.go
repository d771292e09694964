package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	exifLayout = "2006:01:02 15:04:05"

	sourceModTime = "mtime"
)

// Capture is the best-effort capture time of a file and the strategy that
// produced it.
type Capture struct {
	Time   time.Time
	Source string
}

// DateStrategy is one step of the capture time chain. A strategy that has no
// answer returns ok == false; a non-nil error is a recoverable metadata
// failure and the chain moves on.
type DateStrategy interface {
	Name() string
	Supports(kind Kind) bool
	CaptureTime(ctx context.Context, file MediaFile) (t time.Time, ok bool, err error)
}

// Extractor runs the strategies in order and always ends with the
// modification time, so Extract never fails.
type Extractor struct {
	strategies []DateStrategy
	logger     *slog.Logger
}

func NewExtractor(logger *slog.Logger, strategies ...DateStrategy) *Extractor {
	chain := make([]DateStrategy, 0, len(strategies)+1)
	chain = append(chain, strategies...)
	chain = append(chain, modTimeStrategy{})
	return &Extractor{strategies: chain, logger: orDiscard(logger)}
}

func (e *Extractor) Extract(ctx context.Context, file MediaFile) Capture {
	for _, s := range e.strategies {
		if !s.Supports(file.Kind) {
			continue
		}
		t, ok, err := captureTime(ctx, s, file)
		if err != nil {
			e.logger.Warn(fmt.Sprintf("Failed to get %s date from %s: %v", s.Name(), file.Path, err))
			continue
		}
		if ok && !t.IsZero() {
			c := Capture{Time: t.Truncate(time.Second), Source: s.Name()}
			e.logger.Debug(fmt.Sprintf("Capture time for %s: %s", file.Path, c.Time.Format(time.DateTime)), "source", c.Source)
			return c
		}
	}
	return Capture{Time: file.ModTime.Truncate(time.Second), Source: sourceModTime}
}

// captureTime runs one strategy, turning a panic in a metadata decoder into
// an error so the chain can move on.
func captureTime(ctx context.Context, s DateStrategy, file MediaFile) (t time.Time, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, ok, err = time.Time{}, false, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.CaptureTime(ctx, file)
}

// exifStrategy reads EXIF DateTimeOriginal.
type exifStrategy struct{}

func NewExifStrategy() DateStrategy { return exifStrategy{} }

func (exifStrategy) Name() string { return "exif" }

func (exifStrategy) Supports(kind Kind) bool { return kind == KindImage }

func (exifStrategy) CaptureTime(_ context.Context, file MediaFile) (time.Time, bool, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return time.Time{}, false, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return time.Time{}, false, fmt.Errorf("decode exif: %w", err)
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		var missing exif.TagNotPresentError
		if errors.As(err, &missing) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	value, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := parseExifTime(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// parseExifTime parses "YYYY:MM:DD HH:MM:SS" as local wall-clock time.
func parseExifTime(value string) (time.Time, error) {
	value = strings.TrimSpace(strings.TrimRight(value, "\x00"))
	return time.ParseInLocation(exifLayout, value, time.Local)
}

type modTimeStrategy struct{}

func (modTimeStrategy) Name() string { return sourceModTime }

func (modTimeStrategy) Supports(Kind) bool { return true }

func (modTimeStrategy) CaptureTime(_ context.Context, file MediaFile) (time.Time, bool, error) {
	return file.ModTime, true, nil
}
