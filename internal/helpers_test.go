package internal

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var (
	testImageExt = []string{".jpg", ".jpeg", ".png", ".heic"}
	testVideoExt = []string{".mp4", ".mov"}
)

// writeFile creates path with data and sets its modification time.
func writeFile(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Failed to set mtime on %s: %v", path, err)
		}
	}
}

// exifBlob returns a minimal little-endian TIFF structure whose Exif IFD
// carries DateTimeOriginal. goexif decodes it like the APP1 payload of a JPEG.
func exifBlob(t *testing.T, dateTimeOriginal string) []byte {
	t.Helper()
	if len(dateTimeOriginal) != 19 {
		t.Fatalf("DateTimeOriginal must be 19 chars, got %q", dateTimeOriginal)
	}
	var b bytes.Buffer
	le := binary.LittleEndian
	w := func(v any) {
		if err := binary.Write(&b, le, v); err != nil {
			t.Fatalf("binary.Write: %v", err)
		}
	}

	b.WriteString("II*\x00")
	w(uint32(8)) // IFD0

	// IFD0: ExifIFDPointer -> 26
	w(uint16(1))
	w(uint16(0x8769))
	w(uint16(4)) // LONG
	w(uint32(1))
	w(uint32(26))
	w(uint32(0))

	// Exif IFD: DateTimeOriginal at 44
	w(uint16(1))
	w(uint16(0x9003))
	w(uint16(2)) // ASCII
	w(uint32(20))
	w(uint32(44))
	w(uint32(0))

	b.WriteString(dateTimeOriginal)
	b.WriteByte(0)
	return b.Bytes()
}

func newTestIngestor(t *testing.T, strategies ...DateStrategy) *Ingestor {
	t.Helper()
	if len(strategies) == 0 {
		strategies = []DateStrategy{NewExifStrategy()}
	}
	return NewIngestor(
		NewClassifier(testImageExt, testVideoExt),
		NewExtractor(nil, strategies...),
		NewDuplicateDetector(nil),
		nil,
	)
}

func localTime(year int, month time.Month, day, hour, minute, sec int) time.Time {
	return time.Date(year, month, day, hour, minute, sec, 0, time.Local)
}
