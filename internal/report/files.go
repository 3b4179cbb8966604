package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshsymonds/accesslens/pkg/pathutil"
)

// ListCSVFiles returns the names (not paths) of CSV files directly inside
// dir, in directory order. A missing directory is treated as empty.
func ListCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading report directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// EnsureDirectory creates dir and any missing parents.
func EnsureDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// CleanupDirectory removes every regular file directly inside dir, leaving
// the directory itself and any subdirectories in place.
func CleanupDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Unzip extracts archivePath into destDir. Entry names are validated so an
// archive cannot write outside destDir. Directories in the archive are
// created; everything else is extracted as a regular file.
func Unzip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer func() { _ = reader.Close() }()

	if err := EnsureDirectory(destDir); err != nil {
		return err
	}

	for _, entry := range reader.File {
		target, err := pathutil.JoinAndValidate(destDir, entry.Name)
		if err != nil {
			return fmt.Errorf("unsafe archive entry %s: %w", entry.Name, err)
		}
		if entry.FileInfo().IsDir() {
			if err := EnsureDirectory(target); err != nil {
				return err
			}
			continue
		}
		if err := EnsureDirectory(filepath.Dir(target)); err != nil {
			return err
		}
		if err := extractFile(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", entry.Name, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(target) //nolint:gosec // Target validated against the destination directory
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer func() { _ = dst.Close() }()

	// Bound extraction so a crafted archive cannot exhaust the disk.
	limit := int64(entry.UncompressedSize64) //nolint:gosec // Size fits report archives
	if _, err := io.CopyN(dst, src, limit); err != nil && err != io.EOF {
		return fmt.Errorf("extracting %s: %w", entry.Name, err)
	}
	return nil
}
