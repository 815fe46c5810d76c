package syntax

import (
	"fmt"
	"sort"
)

// ChangedRanges compares t, edited to match the new text, with newTree
// parsed from that text. It returns the sorted, disjoint ranges whose
// syntactic structure differs. Whitespace-only edits produce no ranges.
func (t *Tree) ChangedRanges(newTree *Tree) ([]Range, error) {
	if t == nil || newTree == nil {
		return nil, fmt.Errorf("%w: nil tree", ErrInvalidArgument)
	}
	if t.language != newTree.language {
		return nil, fmt.Errorf("%w: trees use different languages", ErrInvalidArgument)
	}
	var d differ
	root := newTree.RootNode()
	d.compare(t.RootNode(), root, root.Range())
	return mergeRanges(d.ranges), nil
}

type differ struct {
	ranges []Range
}

// report records r. A difference that the edit has shrunk to nothing is
// reported over around, the nodes enclosing it in the new tree.
func (d *differ) report(r, around Range) {
	if r.EndByte == r.StartByte {
		r = around
	}
	d.ranges = append(d.ranges, r)
}

// compare reports where old and new differ. around is the range of new
// together with its siblings.
func (d *differ) compare(old, new Node, around Range) {
	if old.sub == new.sub && old.pos == new.pos {
		return
	}
	if old.Symbol() != new.Symbol() || old.IsNamed() != new.IsNamed() {
		d.report(old.Range().union(new.Range()), around)
		return
	}

	oldChildren, newChildren := visibleChildren(old), visibleChildren(new)
	if len(oldChildren) == 0 || len(newChildren) == 0 {
		if len(oldChildren) != len(newChildren) || old.Range() != new.Range() || old.sub.contentEdited {
			d.report(old.Range().union(new.Range()), around)
		}
		return
	}

	prefix := 0
	for prefix < len(oldChildren) && prefix < len(newChildren) && sameKind(oldChildren[prefix], newChildren[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < len(oldChildren)-prefix && suffix < len(newChildren)-prefix &&
		sameKind(oldChildren[len(oldChildren)-1-suffix], newChildren[len(newChildren)-1-suffix]) {
		suffix++
	}

	for i := 0; i < prefix; i++ {
		d.compare(oldChildren[i], newChildren[i], neighbors(new, newChildren, i, i+1))
	}
	oldMiddle := oldChildren[prefix : len(oldChildren)-suffix]
	newMiddle := newChildren[prefix : len(newChildren)-suffix]
	if r, ok := span(oldMiddle, newMiddle); ok {
		d.report(r, neighbors(new, newChildren, prefix, len(newChildren)-suffix))
	}
	for i := suffix; i > 0; i-- {
		j := len(newChildren) - i
		d.compare(oldChildren[len(oldChildren)-i], newChildren[j], neighbors(new, newChildren, j, j+1))
	}
}

// neighbors spans children[from:to] together with the child on either
// side, or the parent's edge where there is none.
func neighbors(parent Node, children []Node, from, to int) Range {
	r := parent.Range()
	if from > 0 {
		before := children[from-1]
		r.StartByte, r.StartPoint = before.StartByte(), before.StartPoint()
	}
	if to < len(children) {
		after := children[to]
		r.EndByte, r.EndPoint = after.EndByte(), after.EndPoint()
	}
	return r
}

func sameKind(a, b Node) bool {
	return a.Symbol() == b.Symbol() && a.IsNamed() == b.IsNamed()
}

func visibleChildren(n Node) []Node {
	c := NewTreeCursor(n)
	if !c.GotoFirstChild() {
		return nil
	}
	var children []Node
	for {
		children = append(children, c.CurrentNode())
		if !c.GotoNextSibling() {
			return children
		}
	}
}

// span covers every node in both lists.
func span(lists ...[]Node) (Range, bool) {
	var r Range
	found := false
	for _, nodes := range lists {
		for _, n := range nodes {
			if !found {
				r, found = n.Range(), true
				continue
			}
			r = r.union(n.Range())
		}
	}
	return r, found
}

// mergeRanges sorts ranges and joins those that overlap or touch.
func mergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].StartByte < ranges[j].StartByte
	})
	merged := []Range{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.StartByte <= last.EndByte {
			*last = last.union(r)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
