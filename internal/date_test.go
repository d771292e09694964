package internal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExtract_ExifDateTimeOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeFile(t, path, exifBlob(t, "2023:07:04 09:15:30"), localTime(2024, 1, 1, 0, 0, 0))

	file, err := NewClassifier(testImageExt, testVideoExt).Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	capture := NewExtractor(nil, NewExifStrategy()).Extract(context.Background(), file)

	if capture.Source != "exif" {
		t.Errorf("Expected exif source, got %s", capture.Source)
	}
	if want := localTime(2023, 7, 4, 9, 15, 30); !capture.Time.Equal(want) {
		t.Errorf("Expected %v, got %v", want, capture.Time)
	}
}

func TestExtract_FallsBackToModTime(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg without exif", plainJPEG(t)},
		{"truncated jpeg", []byte{0xFF, 0xD8, 0xFF, 0xD9}},
		{"corrupted", []byte("this is not a jpeg at all")},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "photo.jpg")
			mtime := time.Date(2021, 5, 6, 7, 8, 9, 500_000_000, time.Local)
			writeFile(t, path, tt.data, mtime)

			var logs bytes.Buffer
			file, err := NewClassifier(testImageExt, testVideoExt).Stat(path)
			if err != nil {
				t.Fatalf("Stat failed: %v", err)
			}
			capture := NewExtractor(NewLogger(&logs, nil), NewExifStrategy()).Extract(context.Background(), file)

			if capture.Source != sourceModTime {
				t.Errorf("Expected mtime source, got %s", capture.Source)
			}
			if want := localTime(2021, 5, 6, 7, 8, 9); !capture.Time.Equal(want) {
				t.Errorf("Expected %v truncated to the second, got %v", want, capture.Time)
			}
			if !strings.Contains(logs.String(), "Failed to get exif date") {
				t.Errorf("Expected metadata warning in log, got: %s", logs.String())
			}
		})
	}
}

func plainJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

type fixedStrategy struct {
	name  string
	kind  Kind
	t     time.Time
	ok    bool
	err   error
	calls int
}

func (s *fixedStrategy) Name() string            { return s.name }
func (s *fixedStrategy) Supports(kind Kind) bool { return kind == s.kind }
func (s *fixedStrategy) CaptureTime(context.Context, MediaFile) (time.Time, bool, error) {
	s.calls++
	return s.t, s.ok, s.err
}

func TestExtract_ChainOrder(t *testing.T) {
	failing := &fixedStrategy{name: "first", kind: KindVideo, err: errors.New("boom")}
	missing := &fixedStrategy{name: "second", kind: KindVideo}
	other := &fixedStrategy{name: "images", kind: KindImage, ok: true, t: localTime(2000, 1, 1, 0, 0, 0)}
	hit := &fixedStrategy{name: "third", kind: KindVideo, ok: true, t: localTime(2019, 2, 3, 4, 5, 6)}

	file := MediaFile{Path: "/src/clip.mp4", Ext: ".mp4", Kind: KindVideo, ModTime: localTime(2024, 1, 1, 0, 0, 0)}
	capture := NewExtractor(nil, failing, missing, other, hit).Extract(context.Background(), file)

	if capture.Source != "third" {
		t.Errorf("Expected third strategy, got %s", capture.Source)
	}
	if !capture.Time.Equal(hit.t) {
		t.Errorf("Expected %v, got %v", hit.t, capture.Time)
	}
	if failing.calls != 1 || missing.calls != 1 {
		t.Errorf("Expected earlier strategies to run once, got %d and %d", failing.calls, missing.calls)
	}
	if other.calls != 0 {
		t.Error("Image strategy must not run for a video")
	}
}

func TestExtract_PanicFallsThrough(t *testing.T) {
	var logs bytes.Buffer
	next := &fixedStrategy{name: "next", kind: KindImage, ok: true, t: localTime(2017, 6, 5, 4, 3, 2)}
	file := MediaFile{Path: "/src/a.jpg", Ext: ".jpg", Kind: KindImage, ModTime: localTime(2024, 1, 1, 0, 0, 0)}

	capture := NewExtractor(NewLogger(&logs, nil), panicStrategy{}, next).Extract(context.Background(), file)

	if capture.Source != "next" || !capture.Time.Equal(next.t) {
		t.Errorf("Expected next strategy result, got %s %v", capture.Source, capture.Time)
	}
	if !strings.Contains(logs.String(), "Failed to get panic date from /src/a.jpg: panic: decoder bug") {
		t.Errorf("Expected panic warning, got: %s", logs.String())
	}
}

func TestParseExifTime(t *testing.T) {
	got, err := parseExifTime("2023:07:04 09:15:30\x00")
	if err != nil {
		t.Fatalf("parseExifTime failed: %v", err)
	}
	if want := localTime(2023, 7, 4, 9, 15, 30); !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if _, err := parseExifTime("0000:00:00 00:00:00"); err == nil {
		t.Error("Expected error for zeroed EXIF date")
	}
}

func TestParseCreationTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2018-12-31T12:34:56.000000Z", localTime(2018, 12, 31, 12, 34, 56), false},
		{"2018-12-31T12:34:56Z", localTime(2018, 12, 31, 12, 34, 56), false},
		{"2018-12-31T12:34:56", localTime(2018, 12, 31, 12, 34, 56), false},
		{"2018-12-31 12:34:56", localTime(2018, 12, 31, 12, 34, 56), false},
		{" 2020-02-29T23:59:59.999Z\n", localTime(2020, 2, 29, 23, 59, 59), false},
		{"yesterday", time.Time{}, true},
		{"2018-13-31T12:34:56Z", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCreationTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCreationTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseCreationTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFFprobeStrategy(t *testing.T) {
	file := MediaFile{Path: "/src/clip.mov", Ext: ".mov", Kind: KindVideo, ModTime: localTime(2024, 1, 1, 0, 0, 0)}

	tests := []struct {
		name   string
		out    string
		err    error
		source string
		want   time.Time
	}{
		{"creation_time", "2018-12-31T12:34:56.000000Z\n", nil, "ffprobe", localTime(2018, 12, 31, 12, 34, 56)},
		{"no tag", "\n", nil, sourceModTime, localTime(2024, 1, 1, 0, 0, 0)},
		{"garbage", "not a date\n", nil, sourceModTime, localTime(2024, 1, 1, 0, 0, 0)},
		{"not installed", "", exec.ErrNotFound, sourceModTime, localTime(2024, 1, 1, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotName string
			var gotArgs []string
			run := func(_ context.Context, name string, args ...string) ([]byte, error) {
				gotName, gotArgs = name, args
				return []byte(tt.out), tt.err
			}

			capture := NewExtractor(nil, NewFFprobeStrategy("/opt/ffprobe", run)).Extract(context.Background(), file)

			if capture.Source != tt.source {
				t.Errorf("Expected source %s, got %s", tt.source, capture.Source)
			}
			if !capture.Time.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, capture.Time)
			}
			if gotName != "/opt/ffprobe" {
				t.Errorf("Expected configured binary, got %s", gotName)
			}
			if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != file.Path {
				t.Errorf("Expected file path as last argument, got %v", gotArgs)
			}
		})
	}
}

func TestFFprobeStrategy_ImagesNotProbed(t *testing.T) {
	called := false
	run := func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	}
	s := NewFFprobeStrategy("", run)
	if s.Supports(KindImage) {
		t.Error("ffprobe should only handle videos")
	}
	NewExtractor(nil, s).Extract(context.Background(), MediaFile{Kind: KindImage, ModTime: time.Now()})
	if called {
		t.Error("ffprobe ran for an image")
	}
}

func TestParseExiftoolTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2023:07:04 09:15:30", localTime(2023, 7, 4, 9, 15, 30), false},
		{"2023:07:04 09:15:30.123+02:00", localTime(2023, 7, 4, 9, 15, 30), false},
		{"2023:07:04", time.Time{}, true},
		{"0000:00:00 00:00:00", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseExiftoolTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseExiftoolTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseExiftoolTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExiftoolStrategy(t *testing.T) {
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
	s, err := NewExiftoolStrategy("")
	if err != nil {
		t.Fatalf("NewExiftoolStrategy failed: %v", err)
	}
	defer s.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeFile(t, path, []byte("not an image"), localTime(2024, 1, 1, 0, 0, 0))

	file := MediaFile{Path: path, Ext: ".jpg", Kind: KindImage, ModTime: localTime(2024, 1, 1, 0, 0, 0)}
	capture := NewExtractor(nil, s).Extract(context.Background(), file)
	if capture.Source != sourceModTime {
		t.Errorf("Expected mtime fallback for a file without tags, got %s", capture.Source)
	}
}
