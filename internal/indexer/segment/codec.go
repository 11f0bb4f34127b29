// Package segment encodes the inverted index into its on-disk binary form.
//
// Layout, all integers uint32 little-endian:
//
//	header:    version (=1), wordCount
//	per word:  tokenLen (1..1024), token bytes, postingCount, postings...
//
// Entries follow the header until the end of the file; wordCount is
// informational.
package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/fsutil"
)

const (
	FormatVersion  uint32 = 1
	HeaderSize            = 8
	MaxTokenLength        = 1024

	formatName = "inverted index"
)

// EncodeStats reports what Encode wrote.
type EncodeStats struct {
	Written int
	Skipped int
}

func logger() *slog.Logger {
	return slog.Default().With("component", "segment")
}

// Encode writes idx in token order. Tokens longer than MaxTokenLength bytes
// are skipped with a warning and counted in Skipped.
func Encode(w io.Writer, idx index.InvertedIndex) (EncodeStats, error) {
	var stats EncodeStats
	tokens := make([]string, 0, len(idx))
	for token := range idx {
		if len(token) > MaxTokenLength {
			logger().Warn("skipping token exceeding maximum length",
				"length", len(token),
				"prefix", token[:32],
			)
			stats.Skipped++
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var scratch [4]byte
	putU32 := func(v uint32) error {
		binary.LittleEndian.PutUint32(scratch[:], v)
		_, err := w.Write(scratch[:])
		return err
	}

	if err := putU32(FormatVersion); err != nil {
		return stats, fmt.Errorf("writing header: %w", err)
	}
	if err := putU32(uint32(len(tokens))); err != nil {
		return stats, fmt.Errorf("writing header: %w", err)
	}
	for _, token := range tokens {
		postings := idx[token]
		if err := putU32(uint32(len(token))); err != nil {
			return stats, fmt.Errorf("writing token %q: %w", token, err)
		}
		if _, err := io.WriteString(w, token); err != nil {
			return stats, fmt.Errorf("writing token %q: %w", token, err)
		}
		if err := putU32(uint32(len(postings))); err != nil {
			return stats, fmt.Errorf("writing postings for %q: %w", token, err)
		}
		buf := make([]byte, 4*len(postings))
		for i, id := range postings {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(id))
		}
		if _, err := w.Write(buf); err != nil {
			return stats, fmt.Errorf("writing postings for %q: %w", token, err)
		}
		stats.Written++
	}
	return stats, nil
}

// Decode parses an encoded index. Any structural problem aborts decoding with
// a *errors.FormatError; no partial index is returned.
func Decode(data []byte) (index.InvertedIndex, error) {
	if len(data) < HeaderSize {
		return nil, apperrors.Corrupt(formatName, 0, "header needs %d bytes, have %d", HeaderSize, len(data))
	}
	version := binary.LittleEndian.Uint32(data[0:4])
	if version != FormatVersion {
		return nil, apperrors.Corrupt(formatName, 0, "unsupported version %d", version)
	}
	wordCount := binary.LittleEndian.Uint32(data[4:8])

	// An entry is at least 9 bytes.
	idx := make(index.InvertedIndex, min(int(wordCount), len(data)/9))
	pos := HeaderSize
	readU32 := func(what string) (uint32, error) {
		if len(data)-pos < 4 {
			return 0, apperrors.Corrupt(formatName, int64(pos), "truncated %s", what)
		}
		v := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		return v, nil
	}

	for pos < len(data) {
		entryStart := pos
		tokenLen, err := readU32("token length")
		if err != nil {
			return nil, err
		}
		if tokenLen == 0 || tokenLen > MaxTokenLength {
			return nil, apperrors.Corrupt(formatName, int64(entryStart), "invalid token length %d", tokenLen)
		}
		if uint32(len(data)-pos) < tokenLen {
			return nil, apperrors.Corrupt(formatName, int64(pos), "truncated token: need %d bytes, have %d", tokenLen, len(data)-pos)
		}
		token := string(data[pos : pos+int(tokenLen)])
		pos += int(tokenLen)

		count, err := readU32("posting count")
		if err != nil {
			return nil, err
		}
		if uint64(len(data)-pos) < uint64(count)*4 {
			return nil, apperrors.Corrupt(formatName, int64(pos), "truncated postings for %q: need %d entries", token, count)
		}
		postings := make(index.PostingList, count)
		for i := range postings {
			postings[i] = ingestion.RowID(binary.LittleEndian.Uint32(data[pos:]))
			if i > 0 && postings[i] <= postings[i-1] {
				return nil, apperrors.Corrupt(formatName, int64(pos), "postings for %q not ascending: %d after %d", token, postings[i], postings[i-1])
			}
			pos += 4
		}
		idx[token] = postings
	}

	if uint32(len(idx)) != wordCount {
		logger().Warn("index word count mismatch", "header", wordCount, "read", len(idx))
	}
	return idx, nil
}

// Save encodes idx into path atomically.
func Save(path string, idx index.InvertedIndex) (EncodeStats, error) {
	var stats EncodeStats
	err := fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		var err error
		stats, err = Encode(w, idx)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("saving index %s: %w", path, err)
	}
	return stats, nil
}

// Load reads and decodes the index stored at path.
func Load(path string) (index.InvertedIndex, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", path, err)
	}
	return idx, nil
}
