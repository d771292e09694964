package internal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner runs an external program and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// ffprobeStrategy asks ffprobe for the container creation_time tag.
type ffprobeStrategy struct {
	binary string
	run    CommandRunner
}

func NewFFprobeStrategy(binary string, run CommandRunner) DateStrategy {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if run == nil {
		run = ExecRunner
	}
	return &ffprobeStrategy{binary: binary, run: run}
}

func (s *ffprobeStrategy) Name() string { return "ffprobe" }

func (s *ffprobeStrategy) Supports(kind Kind) bool { return kind == KindVideo }

func (s *ffprobeStrategy) CaptureTime(ctx context.Context, file MediaFile) (time.Time, bool, error) {
	out, err := s.run(ctx, s.binary,
		"-v", "error",
		"-show_entries", "format_tags=creation_time",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file.Path,
	)
	if err != nil {
		return time.Time{}, false, err
	}

	value := firstLine(string(out))
	if value == "" {
		return time.Time{}, false, nil
	}
	t, err := parseCreationTime(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// parseCreationTime accepts "2018-12-31T12:34:56.000000Z" and
// "2018-12-31 12:34:56". Sub-second precision and the Z suffix are dropped;
// the wall clock is kept as-is.
func parseCreationTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "T") {
		if i := strings.IndexByte(value, '.'); i >= 0 {
			value = value[:i]
		}
		value = strings.TrimSuffix(value, "Z")
		t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized creation_time %q", value)
		}
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateTime, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized creation_time %q", value)
	}
	return t, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
