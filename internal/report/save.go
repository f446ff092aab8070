// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// maxSuffix bounds the _N suffixes tried for a colliding auto-named report.
const maxSuffix = 1000

// Save writes doc under dir and returns the final path. An absolute
// Filename ignores dir. The document is written to a temp file first so a
// failed write never leaves a partial report. Auto-named documents never
// replace an existing file: a collision gets a _2, _3, ... suffix.
// Caller-named documents replace whatever is there.
func Save(doc types.ReportDocument, dir string) (string, error) {
	if doc.Filename == "" {
		return "", errors.New("report has no file name")
	}
	path := doc.Filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	tmpPath, err := writeTemp(parent, doc.Markdown)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpPath)

	if !doc.AutoNamed {
		if err := os.Rename(tmpPath, path); err != nil {
			return "", fmt.Errorf("renaming temp file: %w", err)
		}
		return path, nil
	}

	for n := 1; n <= maxSuffix; n++ {
		candidate := withSuffix(path, n)
		err := os.Link(tmpPath, candidate)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		// Filesystems without hard links fall back to an exclusive create.
		err = writeExclusive(candidate, doc.Markdown)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("writing report: %w", err)
		}
	}
	return "", fmt.Errorf("no free file name for %s after %d attempts", path, maxSuffix)
}

func writeTemp(dir, content string) (string, error) {
	tmpFile, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.WriteString(content)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing report: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("setting report permissions: %w", err)
	}
	return tmpPath, nil
}

func writeExclusive(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := f.WriteString(content)
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(path)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(path)
	}
	return closeErr
}

// withSuffix returns path for n == 1 and name_N.ext otherwise.
func withSuffix(path string, n int) string {
	if n == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
}
