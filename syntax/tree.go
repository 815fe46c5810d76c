package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Tree is the result of one parse. Edit patches positions in place without
// reparsing; parsing with a previous tree produces a new Tree that shares
// every subtree the edits left alone.
type Tree struct {
	language       *Language
	root           *subtree
	includedRanges []Range

	editedRange Range
	edited      bool

	// generation increases with every edit so cursors can detect staleness.
	generation uint32
}

func newTree(lang *Language, root *subtree, ranges []Range) *Tree {
	t := &Tree{language: lang, root: root}
	if len(ranges) > 0 {
		t.includedRanges = append([]Range(nil), ranges...)
	}
	return t
}

func (t *Tree) Language() *Language {
	return t.language
}

// RootNode returns the root, which spans from byte 0 to the end of the
// consumed input.
func (t *Tree) RootNode() Node {
	return Node{tree: t, sub: t.root}
}

// IncludedRanges returns the ranges the tree was parsed with, or nil when
// the whole input was parsed.
func (t *Tree) IncludedRanges() []Range {
	return append([]Range(nil), t.includedRanges...)
}

// EditedRange returns the union of all edits applied since the tree was
// parsed.
func (t *Tree) EditedRange() (Range, bool) {
	return t.editedRange, t.edited
}

// Copy returns an independent Tree sharing the same immutable subtrees.
func (t *Tree) Copy() *Tree {
	c := *t
	c.includedRanges = t.IncludedRanges()
	return &c
}

func (t *Tree) Walk() *TreeCursor {
	return NewTreeCursor(t.RootNode())
}

func (t *Tree) String() string {
	return t.RootNode().String()
}

// PrintDotGraph writes the full subtree structure, including hidden nodes,
// as a Graphviz digraph.
func (t *Tree) PrintDotGraph(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph tree {\n")
	b.WriteString("edge [arrowhead=none]\n")
	id := 0
	var write func(s *subtree, pos length) int
	write = func(s *subtree, pos length) int {
		self := id
		id++
		start := pos.add(s.padding)
		end := start.add(s.size)
		style := ""
		if !t.language.IsVisible(s.symbol) {
			style = ", fontcolor=gray"
		}
		if s.hasChanges {
			style += ", color=red"
		}
		fmt.Fprintf(&b, "node%d [label=%q, tooltip=\"range: %d - %d\\nstate: %d\\nlookahead: %d\\nerror-cost: %d\"%s]\n",
			self, t.language.SymbolName(s.symbol), start.bytes, end.bytes, s.parseState, s.lookahead, s.errorCost, style)
		for _, c := range s.children {
			child := write(c, pos)
			fmt.Fprintf(&b, "node%d -> node%d\n", self, child)
			pos = pos.add(c.total())
		}
		return self
	}
	write(t.root, lengthZero)
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
