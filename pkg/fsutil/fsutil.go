// Package fsutil provides utility functions and constants for file system operations.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File and directory permission constants.
const (
	// FileModeDefault is the default mode for regular files (-rw-r--r--).
	FileModeDefault = 0o644

	// DirModeDefault is the default mode for directories (drwxr-xr-x).
	DirModeDefault = 0o755
)

// EnsureDir creates a directory and all necessary parent directories with default
// permissions if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't exist.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// CreateFilePerm creates a new file with the specified permissions.
func CreateFilePerm(name string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
}

// Move moves a file from src to dst. It first attempts an atomic os.Rename and
// falls back to copy + delete across filesystem boundaries.
func Move(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}
	if err := EnsureFileDir(dst); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := CreateFilePerm(dst, FileModeDefault)
	if err != nil {
		return fmt.Errorf("failed to create destination %s: %w", dst, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}

// DirSize returns the total size in bytes of all regular files below directory.
// Symlinks are skipped. Files that disappear mid-walk are tolerated: the walk
// runs concurrently with downloads writing into the same tree.
func DirSize(directory string) int64 {
	var total int64
	_ = filepath.Walk(directory, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// EmptySubdirs returns the immediate subdirectories of directory that contain
// no entries at any depth.
func EmptySubdirs(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	var empty []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(directory, entry.Name())
		hasFiles, err := containsFiles(path)
		if err != nil {
			return nil, err
		}
		if !hasFiles {
			empty = append(empty, path)
		}
	}
	return empty, nil
}

func containsFiles(directory string) (bool, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true, nil
		}
		nested, err := containsFiles(filepath.Join(directory, entry.Name()))
		if err != nil {
			return false, err
		}
		if nested {
			return true, nil
		}
	}
	return false, nil
}
