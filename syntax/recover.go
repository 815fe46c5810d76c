package syntax

// recover handles a lookahead that has no action in v's state. With other
// versions alive, v is dropped. Otherwise the stack is popped back to the
// nearest state that accepts the lookahead, or the lookahead is skipped.
func (s *session) recover(v *version) {
	if len(s.versions) > 1 {
		s.log.printf(LogTypeParse, "halt_version state:%d", v.top.state)
		v.halted = true
		return
	}

	la := v.lookahead
	s.log.printf(LogTypeParse, "detect_error state:%d lookahead:%s", v.top.state, s.symbolName(la.symbol))

	marker := v.position().bytes + 1
	if v.recoveredAt != marker && la.symbol != symbolSkipped {
		depth := 0
		for e := v.top.prev; e != nil; e = e.prev {
			depth++
			if !s.lang.hasAction(e.state, la.symbol) {
				continue
			}
			popped := v.top.subtrees()[len(e.subtrees()):]
			node := newNode(s.lang, SymbolError, popped, e.state)
			node.extra = true
			v.top = e.push(e.state, node)
			v.recoveredAt = marker
			s.log.printf(LogTypeParse, "recover_to_previous state:%d depth:%d", e.state, depth)
			return
		}
	}

	if la.symbol == SymbolEnd {
		s.finishWithError(v)
		return
	}

	s.log.printf(LogTypeParse, "skip_token symbol:%s", s.symbolName(la.symbol))
	v.lookahead = nil
	if top := v.top.sub; top != nil && top.skipped {
		children := append(append([]*subtree(nil), top.children...), la)
		node := s.skippedNode(children, v.top.prev.state)
		v.top = v.top.prev.push(v.top.state, node)
		return
	}
	v.top = v.top.push(v.top.state, s.skippedNode([]*subtree{la}, v.top.state))
}

func (s *session) skippedNode(children []*subtree, state StateID) *subtree {
	node := newNode(s.lang, SymbolError, children, state)
	node.extra = true
	node.skipped = true
	return node
}
