package syntax

// subtree is the shared, position-independent unit of a syntax tree. Its
// padding and size are relative, so the same subtree can appear in several
// trees at different offsets. A subtree is never mutated once another
// subtree or tree refers to it.
type subtree struct {
	symbol  Symbol
	padding length
	size    length

	// lookahead is how many bytes past the end of the subtree influenced it.
	lookahead uint32

	parseState StateID
	lexMode    uint16

	dynamicPrecedence int32
	errorCost         uint32

	extra         bool
	hasChanges    bool
	contentEdited bool
	hasError      bool
	// skipped marks an ERROR node holding tokens dropped during recovery.
	skipped bool

	visibleChildCount uint32
	namedChildCount   uint32

	children []*subtree
}

const errorCostPerNode = 100

func newLeaf(sym Symbol, padding, size length, lookahead uint32, state StateID, mode uint16) *subtree {
	s := &subtree{
		symbol:     sym,
		padding:    padding,
		size:       size,
		lookahead:  lookahead,
		parseState: state,
		lexMode:    mode,
	}
	if sym == SymbolError || sym == symbolSkipped {
		s.hasError = true
		s.errorCost = errorCostPerNode + size.bytes
	}
	return s
}

// newNode builds an interior subtree and summarizes its children.
func newNode(lang *Language, sym Symbol, children []*subtree, state StateID) *subtree {
	s := &subtree{
		symbol:     sym,
		children:   children,
		parseState: state,
	}
	s.summarize(lang)
	return s
}

func (s *subtree) total() length {
	return s.padding.add(s.size)
}

func (s *subtree) isLeaf() bool {
	return len(s.children) == 0
}

func (s *subtree) isError() bool {
	return s.symbol == SymbolError
}

// summarize recomputes padding, size and the cached counts from the children.
func (s *subtree) summarize(lang *Language) {
	s.padding = lengthZero
	s.size = lengthZero
	s.visibleChildCount = 0
	s.namedChildCount = 0
	s.hasError = s.symbol == SymbolError
	s.errorCost = 0
	if s.symbol == SymbolError {
		s.errorCost = errorCostPerNode
	}

	var offset length
	var lookaheadEnd uint32
	for i, child := range s.children {
		if i == 0 {
			s.padding = child.padding
		}
		end := offset.add(child.total())
		if e := end.bytes + child.lookahead; e > lookaheadEnd {
			lookaheadEnd = e
		}
		offset = end

		s.dynamicPrecedence += child.dynamicPrecedence
		s.errorCost += child.errorCost
		if child.hasError {
			s.hasError = true
		}

		switch {
		case child.symbol == symbolSkipped:
		case lang.IsVisible(child.symbol):
			s.visibleChildCount++
			if lang.IsNamed(child.symbol) {
				s.namedChildCount++
			}
		case !child.isLeaf():
			s.visibleChildCount += child.visibleChildCount
			s.namedChildCount += child.namedChildCount
		}
	}
	s.size = offset.sub(s.padding)
	if lookaheadEnd > offset.bytes {
		s.lookahead = lookaheadEnd - offset.bytes
	} else {
		s.lookahead = 0
	}
}

// extendLookahead records that the subtree's reduction depended on input up
// to lookaheadEnd bytes past its own padding start.
func (s *subtree) extendLookahead(lookaheadEnd uint32) {
	end := s.total().bytes
	if lookaheadEnd > end && lookaheadEnd-end > s.lookahead {
		s.lookahead = lookaheadEnd - end
	}
}

func (s *subtree) clone() *subtree {
	c := *s
	if s.children != nil {
		c.children = make([]*subtree, len(s.children))
		copy(c.children, s.children)
	}
	return &c
}

// firstLeaf descends along first children.
func (s *subtree) firstLeaf() *subtree {
	for len(s.children) > 0 {
		s = s.children[0]
	}
	return s
}
