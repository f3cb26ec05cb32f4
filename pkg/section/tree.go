// Package section indexes the code sections of a document as an ordered
// range tree over line numbers, supporting point containment queries for
// section highlighting and run-current-section extraction.
package section

import (
	"math"
	"sort"

	lsp "github.com/sourcegraph/go-lsp"
)

// Section is a contiguous line range within a source file. Lines are 0-based
// and the range is inclusive on both ends.
type Section struct {
	StartLine int
	EndLine   int
	// Explicit marks sections introduced by an explicit marker, as opposed
	// to the implicit leading section of a file.
	Explicit bool
}

func (s Section) contains(line int) bool {
	return s.StartLine <= line && line <= s.EndLine
}

func (s Section) containsRange(o Section) bool {
	return s.StartLine <= o.StartLine && o.EndLine <= s.EndLine
}

// Range returns the section's line range in LSP form for the editor
// boundary.
func (s Section) Range() lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: s.StartLine},
		End:   lsp.Position{Line: s.EndLine},
	}
}

// Tree is an immutable containment tree of sections. Children of a node are
// non-overlapping and sorted by start line.
type Tree struct {
	root *node
}

type node struct {
	section  Section
	parent   *node
	children []*node
}

// Build constructs a Tree from sections ordered so that every section's
// ancestors appear before it. Insertion walks up from the most recently
// inserted node to the nearest ancestor containing the new range, attaches
// there, and descends into the new node.
func Build(sections []Section) *Tree {
	root := &node{section: Section{StartLine: 0, EndLine: math.MaxInt32}}
	cur := root
	for _, s := range sections {
		for cur != root && !cur.section.containsRange(s) {
			cur = cur.parent
		}
		n := &node{section: s, parent: cur}
		cur.children = append(cur.children, n)
		cur = n
	}
	return &Tree{root: root}
}

// Find returns the deepest section containing line, or ok=false if the line
// falls outside all sections.
func (t *Tree) Find(line int) (Section, bool) {
	n := t.root
	for {
		c := findChild(n.children, line)
		if c == nil {
			break
		}
		n = c
	}
	if n == t.root {
		return Section{}, false
	}
	return n.section, true
}

// findChild binary-searches the sorted children for the one containing line.
func findChild(children []*node, line int) *node {
	i := sort.Search(len(children), func(i int) bool {
		return children[i].section.EndLine >= line
	})
	if i < len(children) && children[i].section.contains(line) {
		return children[i]
	}
	return nil
}

// All returns the sections of the tree in depth-first order. Used for the
// boundary list the newer run-section protocol wants.
func (t *Tree) All() []Section {
	var out []Section
	var walk func(*node)
	walk = func(n *node) {
		if n != t.root {
			out = append(out, n.section)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}
