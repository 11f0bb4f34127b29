// Package fsutil holds the file helpers shared by the artifact codecs.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

// WriteFileAtomic writes path through a buffered writer into path+".tmp",
// syncs it and renames it over path. On failure the temp file is removed
// and any previous file at path is left untouched.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.IO("creating directory", dir, err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return apperrors.IO("creating temp file", tmpPath, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriterSize(f, 64*1024)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return apperrors.IO("writing", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		return apperrors.IO("syncing", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return apperrors.IO("closing", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return apperrors.IO("renaming", tmpPath, fmt.Errorf("to %s: %w", path, err))
	}
	return nil
}

// ReadFile reads the whole file, wrapping failures as IO errors.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IO("reading", path, err)
	}
	return data, nil
}
