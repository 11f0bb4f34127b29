package trie

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/fsutil"
)

// Binary trie file layout, all integers uint32 little-endian unless noted:
//
//	header:     magic "JSTR", version (=1), recordCount
//	per record: id, flags (u8, bit0 terminal), frequency, childCount,
//	            childCount x (codepoint, childID)
const (
	MagicBytes    uint32 = 0x5254534A
	FormatVersion uint32 = 1
	HeaderSize           = 12

	flagTerminal byte = 1 << 0

	formatName    = "trie"
	minRecordSize = 13
)

// Child is one outgoing edge of a serialized node.
type Child struct {
	Rune rune
	ID   uint32
}

// Record is the flat, id-addressed form of one node. Record 0 is the root.
type Record struct {
	ID        uint32
	Terminal  bool
	Frequency uint32
	Children  []Child
}

// EncodeRecords flattens the trie. Ids are assigned in discovery order and
// children are listed in code-point order, so equal tries encode equally.
func (t *Trie) EncodeRecords() []Record {
	type item struct {
		n  *node
		id uint32
	}
	records := make([]Record, 0, t.nodes)
	next := uint32(1)
	stack := []item{{n: t.root, id: 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		runes := top.n.sortedRunes()
		rec := Record{
			ID:        top.id,
			Terminal:  top.n.terminal,
			Frequency: top.n.frequency,
			Children:  make([]Child, 0, len(runes)),
		}
		for _, r := range runes {
			rec.Children = append(rec.Children, Child{Rune: r, ID: next})
			stack = append(stack, item{n: top.n.children[r], id: next})
			next++
		}
		records = append(records, rec)
	}
	return records
}

// DecodeRecords rebuilds a trie from records in any order. Records must form
// a single tree rooted at id 0 covering ids 0..len(records)-1.
func DecodeRecords(records []Record) (*Trie, error) {
	n := len(records)
	if n == 0 {
		return nil, apperrors.Corrupt(formatName, 0, "no root record")
	}
	nodes := make([]node, n)
	seen := make([]bool, n)
	claimed := make([]bool, n)

	for i, rec := range records {
		if int64(rec.ID) >= int64(n) {
			return nil, apperrors.Corrupt(formatName, int64(i), "record id %d out of range [0,%d)", rec.ID, n)
		}
		if seen[rec.ID] {
			return nil, apperrors.Corrupt(formatName, int64(i), "duplicate record id %d", rec.ID)
		}
		seen[rec.ID] = true

		nd := &nodes[rec.ID]
		nd.terminal = rec.Terminal
		nd.frequency = rec.Frequency
		nd.children = make(map[rune]*node, len(rec.Children))
		for _, c := range rec.Children {
			switch {
			case int64(c.ID) >= int64(n):
				return nil, apperrors.Corrupt(formatName, int64(i), "record %d: child id %d out of range", rec.ID, c.ID)
			case c.ID == 0:
				return nil, apperrors.Corrupt(formatName, int64(i), "record %d: root claimed as child", rec.ID)
			case claimed[c.ID]:
				return nil, apperrors.Corrupt(formatName, int64(i), "record %d: child %d already has a parent", rec.ID, c.ID)
			case !utf8.ValidRune(c.Rune):
				return nil, apperrors.Corrupt(formatName, int64(i), "record %d: invalid code point %#x", rec.ID, c.Rune)
			}
			if _, dup := nd.children[c.Rune]; dup {
				return nil, apperrors.Corrupt(formatName, int64(i), "record %d: duplicate edge %q", rec.ID, c.Rune)
			}
			claimed[c.ID] = true
			nd.children[c.Rune] = &nodes[c.ID]
		}
	}

	t := &Trie{root: &nodes[0]}
	t.root.terminal = false
	stack := []*node{t.root}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.nodes++
		if top.terminal && top != t.root {
			t.words++
		}
		for _, child := range top.children {
			stack = append(stack, child)
		}
	}
	if t.nodes != n {
		return nil, apperrors.Corrupt(formatName, 0, "%d of %d records unreachable from root", n-t.nodes, n)
	}
	return t, nil
}

// Encode writes the trie in its binary form.
func (t *Trie) Encode(w io.Writer) error {
	records := t.EncodeRecords()

	var scratch [4]byte
	putU32 := func(v uint32) error {
		binary.LittleEndian.PutUint32(scratch[:], v)
		_, err := w.Write(scratch[:])
		return err
	}

	for _, v := range []uint32{MagicBytes, FormatVersion, uint32(len(records))} {
		if err := putU32(v); err != nil {
			return fmt.Errorf("writing trie header: %w", err)
		}
	}
	for _, rec := range records {
		buf := make([]byte, minRecordSize+8*len(rec.Children))
		binary.LittleEndian.PutUint32(buf[0:4], rec.ID)
		if rec.Terminal {
			buf[4] = flagTerminal
		}
		binary.LittleEndian.PutUint32(buf[5:9], rec.Frequency)
		binary.LittleEndian.PutUint32(buf[9:13], uint32(len(rec.Children)))
		off := minRecordSize
		for _, c := range rec.Children {
			binary.LittleEndian.PutUint32(buf[off:], uint32(c.Rune))
			binary.LittleEndian.PutUint32(buf[off+4:], c.ID)
			off += 8
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("writing trie record %d: %w", rec.ID, err)
		}
	}
	return nil
}

// DecodeBinary parses the records of a binary trie file without linking them.
func DecodeBinary(data []byte) ([]Record, error) {
	if len(data) < HeaderSize {
		return nil, apperrors.Corrupt(formatName, 0, "header needs %d bytes, have %d", HeaderSize, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MagicBytes {
		return nil, apperrors.Corrupt(formatName, 0, "bad magic bytes %#x", magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != FormatVersion {
		return nil, apperrors.Corrupt(formatName, 4, "unsupported version %d", version)
	}
	count := binary.LittleEndian.Uint32(data[8:12])
	if uint64(count)*minRecordSize > uint64(len(data)-HeaderSize) {
		return nil, apperrors.Corrupt(formatName, 8, "record count %d exceeds file size", count)
	}

	records := make([]Record, count)
	pos := HeaderSize
	for i := range records {
		if len(data)-pos < minRecordSize {
			return nil, apperrors.Corrupt(formatName, int64(pos), "truncated record %d", i)
		}
		flags := data[pos+4]
		if flags&^flagTerminal != 0 {
			return nil, apperrors.Corrupt(formatName, int64(pos+4), "unknown flags %#x", flags)
		}
		rec := Record{
			ID:        binary.LittleEndian.Uint32(data[pos:]),
			Terminal:  flags&flagTerminal != 0,
			Frequency: binary.LittleEndian.Uint32(data[pos+5:]),
		}
		childCount := binary.LittleEndian.Uint32(data[pos+9:])
		pos += minRecordSize
		if uint64(childCount)*8 > uint64(len(data)-pos) {
			return nil, apperrors.Corrupt(formatName, int64(pos), "truncated children of record %d", rec.ID)
		}
		rec.Children = make([]Child, childCount)
		for j := range rec.Children {
			rec.Children[j] = Child{
				Rune: rune(binary.LittleEndian.Uint32(data[pos:])),
				ID:   binary.LittleEndian.Uint32(data[pos+4:]),
			}
			pos += 8
		}
		records[i] = rec
	}
	if pos != len(data) {
		return nil, apperrors.Corrupt(formatName, int64(pos), "%d trailing bytes", len(data)-pos)
	}
	return records, nil
}

// Decode parses and links a binary trie.
func Decode(data []byte) (*Trie, error) {
	records, err := DecodeBinary(data)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(records)
}

// Save writes the trie to path atomically.
func (t *Trie) Save(path string) error {
	if err := fsutil.WriteFileAtomic(path, t.Encode); err != nil {
		return fmt.Errorf("saving trie %s: %w", path, err)
	}
	return nil
}

// Load reads a trie written by Save.
func Load(path string) (*Trie, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading trie %s: %w", path, err)
	}
	return t, nil
}
