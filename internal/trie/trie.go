// Package trie implements the prefix tree behind autocomplete.
//
// A Trie is built once from a vocabulary snapshot, persisted with Save and
// loaded read-only by the searcher. Every traversal uses an explicit stack.
// Building is single-goroutine; a built or loaded Trie may be read
// concurrently.
package trie

import (
	"slices"
	"sort"
	"unicode/utf8"
)

// DefaultBatchSize is the number of words inserted per batch by BuildFromSet.
const DefaultBatchSize = 10000

type node struct {
	children  map[rune]*node
	terminal  bool
	frequency uint32
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// sortedRunes returns the child edge labels in ascending code-point order.
func (n *node) sortedRunes() []rune {
	runes := make([]rune, 0, len(n.children))
	for r := range n.children {
		runes = append(runes, r)
	}
	slices.Sort(runes)
	return runes
}

// Trie is a rune-keyed prefix tree.
type Trie struct {
	root  *node
	words int
	nodes int
}

// New returns an empty Trie.
func New() *Trie {
	return &Trie{root: newNode(), nodes: 1}
}

// Insert adds word, creating one edge per rune. Inserting an existing word
// only increments its frequency. The empty word is ignored.
func (t *Trie) Insert(word string) {
	if word == "" {
		return
	}
	n := t.root
	for _, r := range word {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
			t.nodes++
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.words++
	}
	n.frequency++
}

// BuildFromSet inserts every word, batchSize words at a time. A non-positive
// batchSize selects DefaultBatchSize. The result does not depend on batching.
func (t *Trie) BuildFromSet(words map[string]struct{}, batchSize int) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batch := make([]string, 0, min(batchSize, len(words)))
	for w := range words {
		batch = append(batch, w)
		if len(batch) >= batchSize {
			t.insertBatch(batch)
			batch = batch[:0]
		}
	}
	t.insertBatch(batch)
}

func (t *Trie) insertBatch(words []string) {
	for _, w := range words {
		t.Insert(w)
	}
}

func (t *Trie) find(prefix string) *node {
	n := t.root
	for _, r := range prefix {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// Contains reports whether word was inserted.
func (t *Trie) Contains(word string) bool {
	if word == "" {
		return false
	}
	n := t.find(word)
	return n != nil && n.terminal
}

// Frequency returns how many times word was inserted, or 0.
func (t *Trie) Frequency(word string) int {
	if word == "" {
		return 0
	}
	n := t.find(word)
	if n == nil || !n.terminal {
		return 0
	}
	return int(n.frequency)
}

// Len returns the number of distinct words.
func (t *Trie) Len() int { return t.words }

// NodeCount returns the number of nodes including the root.
func (t *Trie) NodeCount() int { return t.nodes }

// frame is a pending node on a traversal stack. depth is the byte length of
// the path above the node; r is the edge leading into it.
type frame struct {
	n     *node
	depth int
	r     rune
}

// SearchAutoComplete returns every word starting with prefix in ascending
// byte order. An unknown prefix yields an empty slice.
func (t *Trie) SearchAutoComplete(prefix string) []string {
	completions := []string{}
	start := t.find(prefix)
	if start == nil {
		return completions
	}
	walk(start, prefix, func(word string) bool {
		completions = append(completions, word)
		return true
	}, false)
	sort.Strings(completions)
	return completions
}

// Complete returns at most limit completions of prefix, in the same order as
// SearchAutoComplete. It walks children in code-point order and stops once
// limit words are found. A non-positive limit means no limit.
func (t *Trie) Complete(prefix string, limit int) []string {
	completions := []string{}
	start := t.find(prefix)
	if start == nil {
		return completions
	}
	walk(start, prefix, func(word string) bool {
		completions = append(completions, word)
		return limit <= 0 || len(completions) < limit
	}, true)
	return completions
}

// walk visits every terminal at or below start, calling emit with the full
// word until it returns false. With ordered set, children are visited in
// code-point order, which yields words in ascending byte order.
func walk(start *node, prefix string, emit func(string) bool, ordered bool) {
	path := []byte(prefix)
	stack := []frame{{n: start, depth: len(path), r: -1}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path = path[:top.depth]
		if top.r >= 0 {
			path = utf8.AppendRune(path, top.r)
		}
		if top.n.terminal && len(path) > 0 {
			if !emit(string(path)) {
				return
			}
		}
		if ordered {
			runes := top.n.sortedRunes()
			for i := len(runes) - 1; i >= 0; i-- {
				stack = append(stack, frame{n: top.n.children[runes[i]], depth: len(path), r: runes[i]})
			}
			continue
		}
		for r, child := range top.n.children {
			stack = append(stack, frame{n: child, depth: len(path), r: r})
		}
	}
}
