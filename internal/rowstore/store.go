package rowstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

// Store reads a row log. It holds no open file; every Stream opens its own
// handle, so one Store may serve many concurrent queries.
type Store struct {
	path string
	opts Options
}

// Open returns a Store for the log at path. The file is not touched until a
// stream is started.
func Open(path string, opts Options) *Store {
	return &Store{path: path, opts: opts.withDefaults()}
}

// Path returns the log location.
func (s *Store) Path() string { return s.path }

// Stream starts a forward scan. Rows with an id below start are read and
// skipped without decoding. The caller must Close the scanner.
func (s *Store) Stream(ctx context.Context, start ingestion.RowID) *Scanner {
	sc := &Scanner{
		ctx:      ctx,
		path:     s.path,
		start:    start,
		chunk:    s.opts.ChunkSize,
		maxFrame: s.opts.MaxFrameSize,
	}
	f, err := os.Open(s.path)
	if err != nil {
		sc.err = apperrors.IO("opening row log", s.path, err)
		return sc
	}
	sc.f = f
	sc.buf = make([]byte, s.opts.ChunkSize)
	return sc
}

// Count scans the whole log and returns the number of complete frames.
func (s *Store) Count(ctx context.Context) (int, error) {
	sc := s.Stream(ctx, 0)
	defer sc.Close()
	for sc.Next() {
	}
	return sc.Scanned(), sc.Err()
}

// Scanner walks the frames of a row log in order. It reads the file in
// fixed-size chunks, keeping only unconsumed bytes buffered.
type Scanner struct {
	ctx      context.Context
	f        *os.File
	path     string
	start    ingestion.RowID
	chunk    int
	maxFrame int

	buf        []byte
	head, tail int
	base       int64 // file offset of buf[0]

	next     ingestion.RowID
	scanned  int
	curID    ingestion.RowID
	cur      []byte
	curStart int64

	err  error
	done bool
}

// Next advances to the next row at or after the start id. It returns false
// at the end of the log, on error or once the context is done; check Err.
func (s *Scanner) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	for {
		if err := s.ctx.Err(); err != nil {
			return s.fail(err)
		}
		if avail := s.tail - s.head; avail >= frameHeaderSize {
			length := int(binary.LittleEndian.Uint32(s.buf[s.head:]))
			if length > s.maxFrame {
				return s.fail(apperrors.Corrupt(formatName, s.base+int64(s.head),
					"frame of %d bytes exceeds max %d", length, s.maxFrame))
			}
			if avail >= frameHeaderSize+length {
				id := s.next
				frameStart := s.base + int64(s.head)
				payload := s.buf[s.head+frameHeaderSize : s.head+frameHeaderSize+length]
				s.head += frameHeaderSize + length
				s.next++
				s.scanned++
				if id < s.start {
					continue
				}
				s.curID, s.cur, s.curStart = id, payload, frameStart
				return true
			}
		}
		more, err := s.fill()
		if err != nil {
			return s.fail(err)
		}
		if !more {
			if s.tail > s.head {
				return s.fail(apperrors.Corrupt(formatName, s.base+int64(s.head),
					"partial trailing frame of %d bytes", s.tail-s.head))
			}
			s.done = true
			s.Close()
			return false
		}
	}
}

// fill drops consumed bytes and reads one more chunk. It reports false at
// end of file.
func (s *Scanner) fill() (bool, error) {
	if s.head > 0 {
		n := copy(s.buf, s.buf[s.head:s.tail])
		s.base += int64(s.head)
		s.head, s.tail = 0, n
	}
	if need := s.tail + s.chunk; need > len(s.buf) {
		grown := make([]byte, max(need, 2*len(s.buf)))
		copy(grown, s.buf[:s.tail])
		s.buf = grown
	}
	for {
		n, err := s.f.Read(s.buf[s.tail : s.tail+s.chunk])
		s.tail += n
		switch {
		case n > 0:
			return true, nil
		case errors.Is(err, io.EOF):
			return false, nil
		case err != nil:
			return false, apperrors.IO("reading row log", s.path, err)
		}
	}
}

func (s *Scanner) fail(err error) bool {
	s.err = err
	s.cur = nil
	s.Close()
	return false
}

// ID returns the id of the current row.
func (s *Scanner) ID() ingestion.RowID { return s.curID }

// Bytes returns the raw JSON of the current row. The slice is only valid
// until the next call to Next.
func (s *Scanner) Bytes() []byte { return s.cur }

// Record decodes the current row.
func (s *Scanner) Record() (ingestion.Record, error) {
	var rec ingestion.Record
	if err := json.Unmarshal(s.cur, &rec); err != nil {
		return nil, apperrors.Corrupt(formatName, s.curStart, "row %d: %v", s.curID, err)
	}
	return rec, nil
}

// Scanned returns how many frames have been read, including skipped ones.
func (s *Scanner) Scanned() int { return s.scanned }

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error { return s.err }

// Close releases the file handle. It is safe to call more than once.
func (s *Scanner) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return apperrors.IO("closing row log", s.path, err)
	}
	return nil
}
