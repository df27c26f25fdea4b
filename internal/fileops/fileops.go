// Package fileops provides the file moves used by the scanner and importer:
// rename-first with copy fallback, and empty-directory sweeping.
package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveFile moves source to dest, creating parent directories. It renames
// when source and dest share a filesystem and falls back to copy-and-delete
// across devices. The source is only removed after the copy is complete.
func MoveFile(source, dest string) error {
	if source == dest {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	if err := os.Rename(source, dest); err == nil {
		return nil
	}

	if err := CopyFile(source, dest); err != nil {
		return err
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// CopyFile copies source to dest, creating parent directories. The copy
// goes through a temp file so a partial write never lands at dest.
func CopyFile(source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("flush destination: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize destination: %w", err)
	}
	return nil
}

// SweepEmptyDirs removes dir and its now-empty ancestors, walking at most
// maxLevels upward and never crossing stopAt.
func SweepEmptyDirs(dir, stopAt string, maxLevels int) {
	for i := 0; i < maxLevels; i++ {
		if dir == stopAt || dir == "/" || dir == "." {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
