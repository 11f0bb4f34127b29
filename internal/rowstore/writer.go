// Package rowstore persists corpus rows as an append-only log of
// length-prefixed JSON frames and streams them back in order.
//
// Frame layout: length (uint32 little-endian) followed by length bytes of
// UTF-8 JSON holding the row's ordered fields. The n-th frame ever appended
// is row n; there is no random access.
package rowstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

const (
	DefaultChunkSize    = 64 * 1024
	DefaultMaxFrameSize = 16 * 1024 * 1024

	frameHeaderSize = 4
	formatName      = "row log"
)

// Options tunes buffering. Zero values select the defaults.
type Options struct {
	ChunkSize    int
	MaxFrameSize int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	return o
}

// Writer appends rows to a log file. Writes go through a buffer of one chunk
// and block on the file once it is full. A Writer is not safe for concurrent
// use.
type Writer struct {
	f    *os.File
	bw   *bufio.Writer
	path string
	opts Options
	next ingestion.RowID
	hdr  [frameHeaderSize]byte
}

// CreateWriter creates or truncates the log at path. The first appended row
// gets id 0.
func CreateWriter(path string, opts Options) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.IO("creating directory", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperrors.IO("creating row log", path, err)
	}
	return newWriter(f, path, opts.withDefaults(), 0), nil
}

// OpenWriter opens an existing log for appending, continuing the row
// numbering after its last complete frame. A missing file is created. A log
// that ends in a partial frame is rejected.
func OpenWriter(ctx context.Context, path string, opts Options) (*Writer, error) {
	opts = opts.withDefaults()
	var count int
	if _, err := os.Stat(path); err == nil {
		count, err = Open(path, opts).Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting rows in %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperrors.IO("opening row log", path, err)
	}
	return newWriter(f, path, opts, ingestion.RowID(count)), nil
}

func newWriter(f *os.File, path string, opts Options, next ingestion.RowID) *Writer {
	return &Writer{
		f:    f,
		bw:   bufio.NewWriterSize(f, opts.ChunkSize),
		path: path,
		opts: opts,
		next: next,
	}
}

// Append writes rec as the next frame and returns its row id.
func (w *Writer) Append(rec ingestion.Record) (ingestion.RowID, error) {
	if uint64(w.next) >= math.MaxUint32 {
		return 0, fmt.Errorf("%w: row log %s is full", apperrors.ErrValidation, w.path)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encoding row %d: %w", w.next, err)
	}
	if len(payload) > w.opts.MaxFrameSize {
		return 0, fmt.Errorf("%w: row %d encodes to %d bytes, max %d",
			apperrors.ErrValidation, w.next, len(payload), w.opts.MaxFrameSize)
	}
	binary.LittleEndian.PutUint32(w.hdr[:], uint32(len(payload)))
	if _, err := w.bw.Write(w.hdr[:]); err != nil {
		return 0, apperrors.IO("appending row", w.path, err)
	}
	if _, err := w.bw.Write(payload); err != nil {
		return 0, apperrors.IO("appending row", w.path, err)
	}
	id := w.next
	w.next++
	return id, nil
}

// Rows returns the number of rows in the log, including those still buffered.
func (w *Writer) Rows() int {
	return int(w.next)
}

// Flush pushes buffered frames to the file.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return apperrors.IO("flushing row log", w.path, err)
	}
	return nil
}

// Close flushes, syncs and closes the log.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return apperrors.IO("syncing row log", w.path, err)
	}
	if err := w.f.Close(); err != nil {
		return apperrors.IO("closing row log", w.path, err)
	}
	return nil
}
