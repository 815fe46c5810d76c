package syntax

type cursorFrame struct {
	sub   *subtree
	pos   length // padding start
	index int    // position within the parent's children

	// offsets holds the padding start of each child once a backward move
	// has needed them.
	offsets []length
}

func (f *cursorFrame) childOffsets() []length {
	if f.offsets == nil {
		f.offsets = make([]length, len(f.sub.children))
		pos := f.pos
		for i, child := range f.sub.children {
			f.offsets[i] = pos
			pos = pos.add(child.total())
		}
	}
	return f.offsets
}

// TreeCursor walks a tree without allocating a Node per step. It keeps an
// explicit stack of frames, including frames for hidden nodes, so moving to
// a sibling or parent never re-traverses from the root.
//
// A cursor is bound to the tree it was created from. Once that tree is
// edited the cursor is stale: Valid reports false and every move fails.
type TreeCursor struct {
	tree       *Tree
	generation uint32
	stack      []cursorFrame
}

// NewTreeCursor creates a cursor whose root is n. The cursor never moves
// above n.
func NewTreeCursor(n Node) *TreeCursor {
	c := &TreeCursor{}
	c.Reset(n)
	return c
}

// Reset moves the cursor to n and makes it the cursor's new root.
func (c *TreeCursor) Reset(n Node) {
	c.tree = n.tree
	c.stack = c.stack[:0]
	if n.tree != nil {
		c.generation = n.tree.generation
	}
	if n.sub != nil {
		c.stack = append(c.stack, cursorFrame{sub: n.sub, pos: n.pos})
	}
}

func (c *TreeCursor) Copy() *TreeCursor {
	return &TreeCursor{
		tree:       c.tree,
		generation: c.generation,
		stack:      append([]cursorFrame(nil), c.stack...),
	}
}

// Valid reports whether the cursor still refers to an unedited tree.
func (c *TreeCursor) Valid() bool {
	return c.tree != nil && len(c.stack) > 0 && c.tree.generation == c.generation
}

func (c *TreeCursor) CurrentNode() Node {
	if len(c.stack) == 0 {
		return Node{}
	}
	top := c.stack[len(c.stack)-1]
	return Node{tree: c.tree, sub: top.sub, pos: top.pos}
}

// Depth is the number of visible ancestors between the current node and
// the cursor's root.
func (c *TreeCursor) Depth() int {
	depth := 0
	for i := 1; i < len(c.stack)-1; i++ {
		if c.visible(i) {
			depth++
		}
	}
	if len(c.stack) > 1 {
		depth++
	}
	return depth
}

func (c *TreeCursor) visible(i int) bool {
	return i == 0 || c.tree.language.IsVisible(c.stack[i].sub.symbol)
}

func (c *TreeCursor) isVisible(s *subtree) bool {
	return c.tree.language.IsVisible(s.symbol)
}

// descend returns the frames leading from parent to its first (or last)
// visible descendant child.
func (c *TreeCursor) descend(parent *cursorFrame, last bool) []cursorFrame {
	children := parent.sub.children
	if last {
		offsets := parent.childOffsets()
		for i := len(children) - 1; i >= 0; i-- {
			if path := c.enter(cursorFrame{sub: children[i], pos: offsets[i], index: i}, last); path != nil {
				return path
			}
		}
		return nil
	}
	pos := parent.pos
	for i, child := range children {
		if path := c.enter(cursorFrame{sub: child, pos: pos, index: i}, last); path != nil {
			return path
		}
		pos = pos.add(child.total())
	}
	return nil
}

// enter returns the frames for f when it is visible, or for its first (or
// last) visible descendant when it is hidden.
func (c *TreeCursor) enter(f cursorFrame, last bool) []cursorFrame {
	if c.isVisible(f.sub) {
		return []cursorFrame{f}
	}
	if f.sub.visibleChildCount == 0 {
		return nil
	}
	rest := c.descend(&f, last)
	if rest == nil {
		return nil
	}
	return append([]cursorFrame{f}, rest...)
}

func (c *TreeCursor) GotoFirstChild() bool {
	return c.gotoChild(false)
}

func (c *TreeCursor) GotoLastChild() bool {
	return c.gotoChild(true)
}

func (c *TreeCursor) gotoChild(last bool) bool {
	if !c.Valid() {
		return false
	}
	path := c.descend(&c.stack[len(c.stack)-1], last)
	if path == nil {
		return false
	}
	c.stack = append(c.stack, path...)
	return true
}

func (c *TreeCursor) GotoNextSibling() bool {
	return c.gotoSibling(1)
}

func (c *TreeCursor) GotoPrevSibling() bool {
	return c.gotoSibling(-1)
}

func (c *TreeCursor) gotoSibling(delta int) bool {
	if !c.Valid() {
		return false
	}
	stack := c.stack
	for len(stack) > 1 {
		top := len(stack) - 1
		current := stack[top]
		parent := &stack[top-1]
		siblings := parent.sub.children

		var offsets []length
		pos := current.pos.add(current.sub.total())
		if delta < 0 {
			offsets = parent.childOffsets()
		}
		for i := current.index + delta; i >= 0 && i < len(siblings); i += delta {
			if delta < 0 {
				pos = offsets[i]
			}
			if path := c.enter(cursorFrame{sub: siblings[i], pos: pos, index: i}, delta < 0); path != nil {
				c.stack = append(stack[:top], path...)
				return true
			}
			if delta > 0 {
				pos = pos.add(siblings[i].total())
			}
		}
		if c.visible(top - 1) {
			return false
		}
		stack = stack[:top]
	}
	return false
}

func (c *TreeCursor) GotoParent() bool {
	if !c.Valid() || len(c.stack) <= 1 {
		return false
	}
	for i := len(c.stack) - 2; i >= 0; i-- {
		if c.visible(i) {
			c.stack = c.stack[:i+1]
			return true
		}
	}
	return false
}

// GotoFirstChildForByte moves to the child that contains target or, when
// target falls between children, the nearest child starting before it. It
// returns the child's index among the visible children, or -1.
func (c *TreeCursor) GotoFirstChildForByte(target uint32) int64 {
	return c.gotoChildFor(func(n Node) (contains, before bool) {
		return n.StartByte() <= target && target < n.EndByte(), n.StartByte() <= target
	})
}

func (c *TreeCursor) GotoFirstChildForPoint(target Point) int64 {
	return c.gotoChildFor(func(n Node) (contains, before bool) {
		start, end := n.StartPoint(), n.EndPoint()
		return start.Compare(target) <= 0 && target.Less(end), start.Compare(target) <= 0
	})
}

func (c *TreeCursor) gotoChildFor(test func(Node) (contains, before bool)) int64 {
	if !c.Valid() {
		return -1
	}
	saved := len(c.stack)
	if !c.GotoFirstChild() {
		return -1
	}
	var best []cursorFrame
	bestIndex := int64(-1)
	for index := int64(0); ; index++ {
		contains, before := test(c.CurrentNode())
		if contains {
			return index
		}
		if !before {
			break
		}
		best = append(best[:0], c.stack[saved:]...)
		bestIndex = index
		if !c.GotoNextSibling() {
			break
		}
	}
	if bestIndex < 0 {
		c.stack = c.stack[:saved]
		return -1
	}
	c.stack = append(c.stack[:saved], best...)
	return bestIndex
}
