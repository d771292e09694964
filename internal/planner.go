package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const nameLayout = "2006-01-02_15-04-05"

// NamingMode selects how Plan treats an occupied base filename.
type NamingMode int

const (
	// SkipDuplicates always returns the base name; the caller decides what an
	// existing file means.
	SkipDuplicates NamingMode = iota
	// UniqueSuffix returns the first unused of "name", "name (1)", "name (2)"...
	UniqueSuffix
)

// Planner computes destination paths from capture times.
type Planner struct {
	dirMode fs.FileMode
}

func NewPlanner() *Planner {
	return &Planner{dirMode: 0o755}
}

// TargetDir returns root/YYYY/MM/DD for t.
func TargetDir(root string, t time.Time) string {
	return filepath.Join(root, t.Format("2006"), t.Format("01"), t.Format("02"))
}

// BaseName returns YYYY-MM-DD_HH-MM-SS with the lowercased extension.
func BaseName(t time.Time, ext string) string {
	return t.Format(nameLayout) + strings.ToLower(ext)
}

// SuffixedPath returns base for n == 0 and "stem (n).ext" otherwise.
func SuffixedPath(base string, n int) string {
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(base, ext), n, ext)
}

// Plan creates the target directory and returns the destination path for t.
func (p *Planner) Plan(t time.Time, ext, root string, mode NamingMode) (string, error) {
	dir := TargetDir(root, t)
	if err := os.MkdirAll(dir, p.dirMode); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	base := filepath.Join(dir, BaseName(t, ext))
	if mode == SkipDuplicates {
		return base, nil
	}
	for n := 0; ; n++ {
		candidate := SuffixedPath(base, n)
		ok, err := pathExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		if !ok {
			return candidate, nil
		}
	}
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// pathLocks serializes work on a destination path across workers. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *pathLocks) Lock(key string) func() {
	l.mu.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &pathLock{}
		l.locks[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *pathLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
