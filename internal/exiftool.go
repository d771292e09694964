package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"
)

// Tags tried in order, per kind.
var exiftoolTags = map[Kind][]string{
	KindImage: {"DateTimeOriginal", "CreateDate"},
	KindVideo: {"CreateDate", "MediaCreateDate", "TrackCreateDate"},
}

// ExiftoolStrategy reads capture dates through a long-running exiftool
// process. It covers formats goexif cannot parse (HEIC, most RAW files).
type ExiftoolStrategy struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

func NewExiftoolStrategy(binary string) (*ExiftoolStrategy, error) {
	var opts []func(*exiftool.Exiftool) error
	if binary != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binary))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolStrategy{et: et}, nil
}

func (s *ExiftoolStrategy) Name() string { return "exiftool" }

func (s *ExiftoolStrategy) Supports(kind Kind) bool {
	_, ok := exiftoolTags[kind]
	return ok
}

func (s *ExiftoolStrategy) CaptureTime(_ context.Context, file MediaFile) (time.Time, bool, error) {
	s.mu.Lock()
	infos := s.et.ExtractMetadata(file.Path)
	s.mu.Unlock()

	if len(infos) == 0 {
		return time.Time{}, false, nil
	}
	info := infos[0]
	if info.Err != nil {
		return time.Time{}, false, info.Err
	}

	for _, key := range exiftoolTags[file.Kind] {
		value, err := info.GetString(key)
		if err != nil {
			if errors.Is(err, exiftool.ErrKeyNotFound) {
				continue
			}
			return time.Time{}, false, err
		}
		if t, err := parseExiftoolTime(value); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (s *ExiftoolStrategy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.et.Close()
}

// parseExiftoolTime parses the leading "YYYY:MM:DD HH:MM:SS" of an exiftool
// date, ignoring any sub-second or zone suffix.
func parseExiftoolTime(value string) (time.Time, error) {
	if len(value) < len(exifLayout) {
		return time.Time{}, fmt.Errorf("short exiftool date %q", value)
	}
	return parseExifTime(value[:len(exifLayout)])
}
