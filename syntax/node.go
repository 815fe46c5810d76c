package syntax

import (
	"strings"
)

// Node is a read-only view of one visible syntax node: a subtree placed at
// an absolute position in a Tree. Nodes are cheap values; they do not keep
// the tree alive beyond the Tree value they were obtained from, and they
// reflect the tree as it was when they were obtained.
type Node struct {
	tree *Tree
	sub  *subtree
	pos  length // absolute position where the node's padding starts
}

// NodeID identifies the underlying subtree. Two nodes from different trees
// have equal IDs when the newer tree reused the subtree unchanged.
type NodeID struct {
	s *subtree
}

func (n Node) IsNull() bool {
	return n.sub == nil
}

func (n Node) ID() NodeID {
	return NodeID{s: n.sub}
}

func (n Node) Tree() *Tree {
	return n.tree
}

func (n Node) Symbol() Symbol {
	if n.sub == nil {
		return 0
	}
	return n.sub.symbol
}

// Kind returns the grammar name of the node, or the literal text for
// anonymous tokens.
func (n Node) Kind() string {
	if n.sub == nil {
		return ""
	}
	return n.tree.language.SymbolName(n.sub.symbol)
}

func (n Node) IsNamed() bool {
	return n.sub != nil && n.tree.language.IsNamed(n.sub.symbol)
}

func (n Node) IsExtra() bool {
	return n.sub != nil && n.sub.extra
}

func (n Node) IsError() bool {
	return n.sub != nil && n.sub.isError()
}

// HasError reports whether the node is or contains an ERROR node.
func (n Node) HasError() bool {
	return n.sub != nil && n.sub.hasError
}

// HasChanges reports whether an edit touched the node since it was parsed.
func (n Node) HasChanges() bool {
	return n.sub != nil && n.sub.hasChanges
}

func (n Node) start() length {
	return n.pos.add(n.sub.padding)
}

func (n Node) end() length {
	return n.start().add(n.sub.size)
}

func (n Node) StartByte() uint32 {
	if n.sub == nil {
		return 0
	}
	return n.start().bytes
}

func (n Node) EndByte() uint32 {
	if n.sub == nil {
		return 0
	}
	return n.end().bytes
}

func (n Node) StartPoint() Point {
	if n.sub == nil {
		return Point{}
	}
	return n.start().extent
}

func (n Node) EndPoint() Point {
	if n.sub == nil {
		return Point{}
	}
	return n.end().extent
}

func (n Node) Range() Range {
	if n.sub == nil {
		return Range{}
	}
	s, e := n.start(), n.end()
	return Range{StartByte: s.bytes, EndByte: e.bytes, StartPoint: s.extent, EndPoint: e.extent}
}

// Content returns the node's text within source.
func (n Node) Content(source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}

func (n Node) ChildCount() int {
	if n.sub == nil {
		return 0
	}
	return int(n.sub.visibleChildCount)
}

func (n Node) NamedChildCount() int {
	if n.sub == nil {
		return 0
	}
	return int(n.sub.namedChildCount)
}

// eachChild visits the visible children in order, flattening hidden nodes.
func (n Node) eachChild(fn func(Node) bool) {
	if n.sub == nil {
		return
	}
	visitVisible(n.tree, n.sub, n.pos, fn)
}

func visitVisible(t *Tree, s *subtree, pos length, fn func(Node) bool) bool {
	for _, c := range s.children {
		if t.language.IsVisible(c.symbol) {
			if !fn(Node{tree: t, sub: c, pos: pos}) {
				return false
			}
		} else if c.visibleChildCount > 0 {
			if !visitVisible(t, c, pos, fn) {
				return false
			}
		}
		pos = pos.add(c.total())
	}
	return true
}

func (n Node) Child(i int) Node {
	var found Node
	if i < 0 || i >= n.ChildCount() {
		return found
	}
	n.eachChild(func(c Node) bool {
		if i == 0 {
			found = c
			return false
		}
		i--
		return true
	})
	return found
}

func (n Node) NamedChild(i int) Node {
	var found Node
	if i < 0 || i >= n.NamedChildCount() {
		return found
	}
	n.eachChild(func(c Node) bool {
		if !c.IsNamed() {
			return true
		}
		if i == 0 {
			found = c
			return false
		}
		i--
		return true
	})
	return found
}

func (n Node) Children() []Node {
	children := make([]Node, 0, n.ChildCount())
	n.eachChild(func(c Node) bool {
		children = append(children, c)
		return true
	})
	return children
}

func (n Node) NamedChildren() []Node {
	children := make([]Node, 0, n.NamedChildCount())
	n.eachChild(func(c Node) bool {
		if c.IsNamed() {
			children = append(children, c)
		}
		return true
	})
	return children
}

func (n Node) same(o Node) bool {
	return n.sub == o.sub && n.pos.bytes == o.pos.bytes
}

// Parent searches down from the root for the nearest visible ancestor.
func (n Node) Parent() Node {
	if n.sub == nil || n.sub == n.tree.root {
		return Node{}
	}
	root := n.tree.RootNode()
	parent, _ := findParent(n.tree, n.tree.root, lengthZero, root, n)
	return parent
}

func findParent(t *Tree, s *subtree, pos length, ancestor Node, target Node) (Node, bool) {
	for _, c := range s.children {
		end := pos.bytes + c.total().bytes
		if c == target.sub && pos.bytes == target.pos.bytes {
			return ancestor, true
		}
		if pos.bytes <= target.pos.bytes && target.pos.bytes <= end && len(c.children) > 0 {
			next := ancestor
			if t.language.IsVisible(c.symbol) {
				next = Node{tree: t, sub: c, pos: pos}
			}
			if p, ok := findParent(t, c, pos, next, target); ok {
				return p, true
			}
		}
		pos = pos.add(c.total())
		if pos.bytes > target.pos.bytes {
			break
		}
	}
	return Node{}, false
}

func (n Node) sibling(delta int, namedOnly bool) Node {
	parent := n.Parent()
	if parent.IsNull() {
		return Node{}
	}
	siblings := parent.Children()
	for i, s := range siblings {
		if !s.same(n) {
			continue
		}
		for j := i + delta; j >= 0 && j < len(siblings); j += delta {
			if !namedOnly || siblings[j].IsNamed() {
				return siblings[j]
			}
		}
		break
	}
	return Node{}
}

func (n Node) NextSibling() Node      { return n.sibling(1, false) }
func (n Node) PrevSibling() Node      { return n.sibling(-1, false) }
func (n Node) NextNamedSibling() Node { return n.sibling(1, true) }
func (n Node) PrevNamedSibling() Node { return n.sibling(-1, true) }

// DescendantForByteRange returns the smallest node within n that spans
// [start, end).
func (n Node) DescendantForByteRange(start, end uint32) Node {
	return n.descendantFor(start, end, false)
}

func (n Node) NamedDescendantForByteRange(start, end uint32) Node {
	return n.descendantFor(start, end, true)
}

func (n Node) descendantFor(start, end uint32, namedOnly bool) Node {
	if n.sub == nil || start < n.StartByte() || end > n.EndByte() {
		return Node{}
	}
	result := n
	current := n
	for {
		var next Node
		current.eachChild(func(c Node) bool {
			if c.StartByte() <= start && end <= c.EndByte() {
				// An empty range on a boundary belongs to the later node.
				if c.EndByte() == start && start == end && c.StartByte() < start {
					return true
				}
				next = c
				return false
			}
			return c.StartByte() <= end
		})
		if next.IsNull() {
			return result
		}
		current = next
		if !namedOnly || current.IsNamed() {
			result = current
		}
	}
}

// Walk returns a cursor rooted at n.
func (n Node) Walk() *TreeCursor {
	return NewTreeCursor(n)
}

// Edit shifts a detached node value to account for an edit to its tree.
func (n *Node) Edit(edit *InputEdit) {
	if n.sub == nil || edit == nil {
		return
	}
	n.pos = shiftPosition(n.pos, edit)
}

func shiftPosition(pos length, edit *InputEdit) length {
	oldEnd := lengthAt(edit.OldEndByte, edit.OldEndPoint)
	newEnd := lengthAt(edit.NewEndByte, edit.NewEndPoint)
	switch {
	case pos.bytes >= edit.OldEndByte:
		return newEnd.add(pos.sub(oldEnd))
	case pos.bytes > edit.StartByte:
		return newEnd
	}
	return pos
}

// String renders the named structure as an S-expression, for example
// "(program (sum (variable) (variable)))".
func (n Node) String() string {
	if n.sub == nil {
		return ""
	}
	var b strings.Builder
	if n.IsNamed() {
		n.writeSexp(&b)
	} else {
		b.WriteString("(\"")
		b.WriteString(n.Kind())
		b.WriteString("\")")
	}
	return b.String()
}

func (n Node) writeSexp(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(n.Kind())
	n.eachChild(func(c Node) bool {
		if c.IsNamed() {
			b.WriteByte(' ')
			c.writeSexp(b)
		}
		return true
	})
	b.WriteByte(')')
}
