package internal

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// DuplicateDetector compares files by size, then by SHA-256 digest.
type DuplicateDetector struct {
	logger *slog.Logger
}

func NewDuplicateDetector(logger *slog.Logger) *DuplicateDetector {
	return &DuplicateDetector{logger: orDiscard(logger)}
}

// Identical reports whether a and b have the same content. Comparison
// errors count as "not identical" so the caller copies instead of skipping.
func (d *DuplicateDetector) Identical(a, b string) bool {
	same, err := sameContent(a, b)
	if err != nil {
		d.logger.Warn(fmt.Sprintf("Failed to compare %s with %s: %v", a, b, err))
		return false
	}
	return same
}

func sameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if !ai.Mode().IsRegular() || !bi.Mode().IsRegular() {
		return false, nil
	}
	if ai.Size() != bi.Size() {
		return false, nil
	}

	ha, err := fileHash(a)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", a, err)
	}
	hb, err := fileHash(b)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", b, err)
	}
	return ha == hb, nil
}

// fileHash computes SHA256 hash of a file content
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
