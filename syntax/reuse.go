package syntax

type reuseEntry struct {
	sub   *subtree
	pos   length // absolute padding start
	index int
}

// reuseCursor walks the old tree in pre-order alongside the parse. It only
// moves forward: subtrees left behind can no longer be reused.
type reuseCursor struct {
	stack []reuseEntry
}

// newReuseCursor starts at the root's first child. The root itself is
// never reused.
func newReuseCursor(t *Tree) *reuseCursor {
	c := &reuseCursor{stack: []reuseEntry{{sub: t.root}}}
	if !c.descend() {
		c.stack = nil
	}
	return c
}

func (c *reuseCursor) current() (reuseEntry, bool) {
	if len(c.stack) == 0 {
		return reuseEntry{}, false
	}
	return c.stack[len(c.stack)-1], true
}

func (c *reuseCursor) descend() bool {
	top, ok := c.current()
	if !ok || len(top.sub.children) == 0 {
		return false
	}
	c.stack = append(c.stack, reuseEntry{sub: top.sub.children[0], pos: top.pos})
	return true
}

// advance moves past the current subtree to the next one in pre-order.
func (c *reuseCursor) advance() {
	for len(c.stack) > 1 {
		top := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		parent := c.stack[len(c.stack)-1]
		if next := top.index + 1; next < len(parent.sub.children) {
			c.stack = append(c.stack, reuseEntry{
				sub:   parent.sub.children[next],
				pos:   top.pos.add(top.sub.total()),
				index: next,
			})
			return
		}
	}
	c.stack = nil
}

// descendOrAdvance breaks the current subtree down, or skips it when it has
// no children.
func (c *reuseCursor) descendOrAdvance() {
	if !c.descend() {
		c.advance()
	}
}

// reuseNode returns a subtree of the old tree that starts at pos and can be
// consumed in state exactly as it was in the old parse.
func (s *session) reuseNode(pos length, state StateID) *subtree {
	c := s.reuse
	for {
		e, ok := c.current()
		if !ok {
			return nil
		}
		sub := e.sub
		start := e.pos.bytes
		if start > pos.bytes {
			return nil
		}
		if start < pos.bytes {
			if start+sub.total().bytes <= pos.bytes {
				c.advance()
			} else {
				c.descendOrAdvance()
			}
			continue
		}

		if sub.symbol == SymbolEnd {
			return nil
		}
		if !s.lang.isTerminal(sub.symbol) && sub.isLeaf() {
			c.advance()
			continue
		}
		var reason string
		switch {
		case sub.hasChanges:
			reason = "has_changes"
		case sub.hasError:
			reason = "is_error"
		}
		if reason != "" {
			s.log.printf(LogTypeParse, "cant_reuse_node_%s tree:%s", reason, s.symbolName(sub.symbol))
			c.descendOrAdvance()
			continue
		}

		mode := s.lang.lexMode(state)
		if !sub.isLeaf() {
			_, hasGoto := s.lang.gotoState(state, sub.symbol)
			leaf := sub.firstLeaf()
			if sub.parseState != state || !hasGoto || !s.lang.isTerminal(leaf.symbol) || leaf.lexMode != mode {
				s.log.printf(LogTypeParse, "cant_reuse_node symbol:%s", s.symbolName(sub.symbol))
				c.descend()
				continue
			}
		} else if sub.lexMode != mode || !s.lang.hasAction(state, sub.symbol) {
			s.log.printf(LogTypeParse, "cant_reuse_node symbol:%s", s.symbolName(sub.symbol))
			c.advance()
			return nil
		}
		s.log.printf(LogTypeParse, "reuse_node symbol:%s", s.symbolName(sub.symbol))
		c.advance()
		return sub
	}
}
