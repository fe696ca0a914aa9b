// Package security guards the file paths the CLI reads calendars from and
// writes exports to.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxCalendarFileSize bounds how much of an .ics file is read into memory.
const MaxCalendarFileSize = 16 << 20

var (
	// ErrForbiddenPath is returned for paths carrying shell metacharacters.
	ErrForbiddenPath = errors.New("file path contains forbidden characters")
	// ErrFileTooLarge is returned when a calendar file exceeds MaxCalendarFileSize.
	ErrFileTooLarge = errors.New("calendar file too large")
)

const forbidden = ";&|$`(){}<>!\n\r"

// CleanPath rejects metacharacters, makes path absolute and resolves
// symlinks when the target already exists.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("file path cannot be empty")
	}
	if strings.ContainsAny(path, forbidden) {
		return "", fmt.Errorf("%w: %q", ErrForbiddenPath, path)
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	return resolved, nil
}

// WithinDir reports an error unless path resolves inside baseDir.
func WithinDir(path, baseDir string) (string, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	base, err := CleanPath(baseDir)
	if err != nil {
		return "", err
	}
	if clean != base && !strings.HasPrefix(clean, base+string(filepath.Separator)) {
		return "", fmt.Errorf("file path escapes base directory: %s is not within %s", path, baseDir)
	}
	return clean, nil
}

// ReadCalendarFile reads an iCalendar document from disk. "-" reads stdin.
func ReadCalendarFile(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		return readLimited(stdin)
	}

	clean, err := CleanPath(path)
	if err != nil {
		return "", err
	}

	// #nosec G304 -- path is validated above
	f, err := os.Open(clean)
	if err != nil {
		return "", fmt.Errorf("failed to open calendar file: %w", err)
	}
	defer f.Close()

	return readLimited(f)
}

func readLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxCalendarFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read calendar: %w", err)
	}
	if len(data) > MaxCalendarFileSize {
		return "", ErrFileTooLarge
	}
	return string(data), nil
}

// WriteCalendarFile writes content atomically with 0600 permissions by
// writing a temp file next to the target and renaming it.
func WriteCalendarFile(path, content string) error {
	clean, err := CleanPath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(clean)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".synapse-export-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, clean)
}
