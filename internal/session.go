package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const logTimestampLayout = "20060102_150405"

// Session owns the per-run processing log. Its logger is handed to every
// component of the run and is valid until Close.
type Session struct {
	ID        string    // Run ID, logged on the start and finish lines
	Started   time.Time // Run start, embedded in the log file name
	SourceDir string    // Source directory the log is named after
	LogPath   string    // Full path to the run log
	Logger    *slog.Logger

	logFile *os.File
}

// LogFileName builds mediasort_<safe dir name>_<YYYYMMDD_HHMMSS>.log, where
// every character of the source directory's base name that is not a letter
// or digit becomes "_".
func LogFileName(sourceDir string, at time.Time) string {
	name := filepath.Base(filepath.Clean(sourceDir))
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
	return fmt.Sprintf("mediasort_%s_%s.log", safe, at.Format(logTimestampLayout))
}

// NewSession creates logDir if needed and opens a fresh append-only log for
// the run. Lines are also copied to console when it is not nil.
func NewSession(logDir, sourceDir string, level slog.Leveler, console io.Writer) (*Session, error) {
	if logDir == "" {
		logDir = "."
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	started := time.Now()
	logPath := filepath.Join(logDir, LogFileName(sourceDir, started))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	var w io.Writer = logFile
	if console != nil {
		w = io.MultiWriter(logFile, console)
	}

	return &Session{
		ID:        uuid.NewString(),
		Started:   started,
		SourceDir: sourceDir,
		LogPath:   logPath,
		Logger:    NewLogger(w, level),
		logFile:   logFile,
	}, nil
}

// Close flushes and closes the run log.
func (s *Session) Close() error {
	if s.logFile == nil {
		return nil
	}
	if err := s.logFile.Sync(); err != nil {
		s.logFile.Close()
		return err
	}
	return s.logFile.Close()
}
