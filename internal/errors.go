package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"syscall"
)

var (
	// ErrDestinationExists is returned when the final name was taken between
	// the existence check and publishing the copy.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrLocked is returned when another run holds the destination lock.
	ErrLocked = errors.New("destination is locked by another run")
	// ErrNotRegular is returned for directories, devices and other non-files.
	ErrNotRegular = errors.New("not a regular file")
)

// BatchError is a setup failure that stops a run before any file is processed.
type BatchError struct {
	Op  string
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryIO          ErrorCategory = "io_error"           // File system, permissions, disk space
	ErrorCategoryMetadata    ErrorCategory = "metadata_error"     // EXIF/metadata extraction failed
	ErrorCategoryCompare     ErrorCategory = "compare_error"      // Duplicate comparison failed
	ErrorCategoryUnsupported ErrorCategory = "unsupported_format" // Unrecognized file format
	ErrorCategoryCanceled    ErrorCategory = "canceled"           // Run stopped before the file was handled
	ErrorCategoryUnknown     ErrorCategory = "unknown_error"      // Unexpected errors
)

// ErrorSeverity indicates how critical the error is
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // System-level issues (disk full, permissions)
	ErrorSeverityError    ErrorSeverity = "error"    // File-level issues (corruption, unreadable)
	ErrorSeverityWarning  ErrorSeverity = "warning"  // Recoverable issues
)

// ProcessError represents a categorized error during file processing
type ProcessError struct {
	FilePath    string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Suggestion  string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error { return e.OriginalErr }

// CategorizeError analyzes an error and returns a ProcessError with category and severity
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}

	procErr := &ProcessError{
		FilePath:    filePath,
		OriginalErr: err,
	}
	// Only the root cause is matched by text; wrapped messages carry paths.
	errStr := strings.ToLower(rootCause(err).Error())

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		procErr.Category = ErrorCategoryCanceled
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Run was interrupted - run the import again to pick up remaining files"

	case errors.Is(err, syscall.ENOSPC) || strings.Contains(errStr, "no space left"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Free up disk space on the destination drive and retry the import"

	case errors.Is(err, fs.ErrPermission) || strings.Contains(errStr, "permission denied"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Check file permissions on both source and destination directories"

	case errors.Is(err, syscall.EROFS) || strings.Contains(errStr, "read-only file system"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Destination filesystem is read-only - check mount options"

	case errors.Is(err, syscall.EMFILE) || strings.Contains(errStr, "too many open files"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "System file descriptor limit reached - lower workers or raise ulimit"

	case errors.Is(err, ErrDestinationExists):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Destination changed during the import - check for other tools writing there"

	case strings.Contains(errStr, "input/output error"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "I/O error - check disk health with SMART tools"

	case errors.Is(err, fs.ErrNotExist) || strings.Contains(errStr, "no such file"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Source file disappeared during import - check if external drive disconnected"

	case strings.Contains(errStr, "compare"):
		procErr.Category = ErrorCategoryCompare
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Existing destination file could not be read - verify the destination drive"

	case strings.Contains(errStr, "exif") || strings.Contains(errStr, "metadata"):
		procErr.Category = ErrorCategoryMetadata
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Metadata could not be extracted - enable use_exiftool for better coverage"

	case errors.Is(err, ErrNotRegular) || strings.Contains(errStr, "unsupported"):
		procErr.Category = ErrorCategoryUnsupported
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "File is not a supported media file - it was skipped"

	default:
		procErr.Category = ErrorCategoryUnknown
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Unexpected error - check the run log for details"
	}

	return procErr
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

const recentErrors = 5

// ErrorStats tracks error statistics during a run. It is not safe for
// concurrent use; Summary guards it.
type ErrorStats struct {
	Total       int
	Critical    int
	Errors      int
	Warnings    int
	ByCategory  map[ErrorCategory]int
	LastErrors  []*ProcessError // Last 5 errors for quick diagnosis
	Consecutive int             // Consecutive failures without a success in between
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
		LastErrors: make([]*ProcessError, 0, recentErrors),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	s.Total++
	s.Consecutive++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	if len(s.LastErrors) >= recentErrors {
		s.LastErrors = s.LastErrors[1:]
	}
	s.LastErrors = append(s.LastErrors, err)
}

func (s *ErrorStats) ResetConsecutive() {
	s.Consecutive = 0
}

// Systemic reports whether the failure pattern points at an environment
// problem rather than individual bad files. Runs are never aborted on it;
// the reason is logged.
func (s *ErrorStats) Systemic() (bool, string) {
	if s.Critical > 0 {
		return true, "Critical system error detected - check disk space and permissions"
	}
	if s.Consecutive >= 10 {
		return true, "10 consecutive errors detected - likely systemic issue (disk full, permissions, etc.)"
	}
	return false, ""
}

// GenerateReport creates a human-readable error report
func (s *ErrorStats) GenerateReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("\nRun encountered %d errors:\n\n", s.Total))

	if s.Critical > 0 {
		report.WriteString(fmt.Sprintf("  Critical: %d (system-level issues)\n", s.Critical))
	}
	if s.Errors > 0 {
		report.WriteString(fmt.Sprintf("  Errors:   %d (file-level issues)\n", s.Errors))
	}
	if s.Warnings > 0 {
		report.WriteString(fmt.Sprintf("  Warnings: %d (recoverable issues)\n", s.Warnings))
	}

	report.WriteString("\nError categories:\n")
	categories := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		categories = append(categories, string(cat))
	}
	sort.Strings(categories)
	for _, cat := range categories {
		report.WriteString(fmt.Sprintf("  - %s: %d\n", cat, s.ByCategory[ErrorCategory(cat)]))
	}

	report.WriteString("\nRecent errors:\n")
	for i, err := range s.LastErrors {
		report.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, err.FilePath))
		report.WriteString(fmt.Sprintf("   Category: %s | Severity: %s\n", err.Category, err.Severity))
		report.WriteString(fmt.Sprintf("   Error: %v\n", err.OriginalErr))
		if err.Suggestion != "" {
			report.WriteString(fmt.Sprintf("   Suggestion: %s\n", err.Suggestion))
		}
	}

	report.WriteString("\n")
	report.WriteString(s.generateSuggestions())

	return report.String()
}

func (s *ErrorStats) generateSuggestions() string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggested next steps:\n")

	if s.ByCategory[ErrorCategoryIO] > 0 {
		suggestions.WriteString("  - Check disk space and permissions\n")
		suggestions.WriteString("  - Verify source media (SD card, external drive) is properly connected\n")
	}
	if s.ByCategory[ErrorCategoryCanceled] > 0 {
		suggestions.WriteString("  - Re-run the import; files already copied are skipped as duplicates\n")
	}
	if s.Consecutive >= 5 {
		suggestions.WriteString("  - Multiple consecutive errors suggest systemic issue - check system resources\n")
	}
	suggestions.WriteString("  - Check the run log for the full error chain\n")

	return suggestions.String()
}
