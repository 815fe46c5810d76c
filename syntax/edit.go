package syntax

// edit is an InputEdit expressed in lengths relative to some subtree's
// padding start.
type edit struct {
	start  length
	oldEnd length
	newEnd length
}

// Edit patches the tree's positions for an edit to the source text. Touched
// subtrees are copied and marked as changed, so other trees sharing them are
// unaffected. Edits must be expressed against the already-edited text.
func (t *Tree) Edit(in *InputEdit) {
	if in == nil {
		return
	}
	e := edit{
		start:  lengthAt(in.StartByte, in.StartPoint),
		oldEnd: lengthAt(in.OldEndByte, in.OldEndPoint),
		newEnd: lengthAt(in.NewEndByte, in.NewEndPoint),
	}
	root := editSubtree(t.root, e)
	if root != t.root && root.padding.bytes > 0 {
		// The root always starts at byte zero.
		root.size = root.padding.add(root.size)
		root.padding = lengthZero
	}
	t.root = root

	r := Range{
		StartByte:  in.StartByte,
		StartPoint: in.StartPoint,
		EndByte:    in.NewEndByte,
		EndPoint:   in.NewEndPoint,
	}
	if t.edited {
		r = shiftRange(t.editedRange, in).union(r)
	}
	t.editedRange = r
	t.edited = true

	for i := range t.includedRanges {
		t.includedRanges[i] = shiftRange(t.includedRanges[i], in)
	}
	t.generation++
}

func shiftRange(r Range, in *InputEdit) Range {
	start := shiftPosition(lengthAt(r.StartByte, r.StartPoint), in)
	end := lengthAt(r.EndByte, r.EndPoint)
	switch {
	case r.EndByte >= in.OldEndByte:
		end = shiftPosition(end, in)
	case r.EndByte > in.StartByte:
		end = lengthAt(in.NewEndByte, in.NewEndPoint)
	}
	if end.bytes < start.bytes {
		end = start
	}
	return Range{StartByte: start.bytes, StartPoint: start.extent, EndByte: end.bytes, EndPoint: end.extent}
}

// editSubtree returns s with the edit applied, or s itself when the edit
// cannot affect it.
func editSubtree(s *subtree, e edit) *subtree {
	noop := e.oldEnd.bytes == e.start.bytes && e.newEnd.bytes == e.start.bytes
	pureInsertion := e.oldEnd.bytes == e.start.bytes

	padding, size := s.padding, s.size
	total := padding.add(size)
	reach := total.bytes + s.lookahead
	if e.start.bytes > reach || (noop && e.start.bytes == reach) {
		return s
	}

	contentEdited := false
	switch {
	case e.oldEnd.bytes <= padding.bytes:
		// Entirely within the leading whitespace: shift the content.
		padding = e.newEnd.add(padding.sub(e.oldEnd))
	case e.start.bytes < padding.bytes:
		// Starts in the whitespace and extends into the content.
		size = size.saturatingSub(e.oldEnd.sub(padding))
		padding = e.newEnd
		contentEdited = true
	case e.start.bytes < total.bytes || (e.start.bytes == total.bytes && pureInsertion):
		size = e.newEnd.sub(padding).add(total.saturatingSub(e.oldEnd))
		contentEdited = !noop && e.start.bytes < total.bytes
	}

	result := s.clone()
	result.padding = padding
	result.size = size
	result.hasChanges = true
	if contentEdited {
		result.contentEdited = true
	}
	if len(s.children) == 0 {
		return result
	}

	// The first child extending past the edit start receives the inserted
	// text; when no child does, the last one receives it.
	receiver := len(s.children) - 1
	var right length
	for i, c := range s.children {
		right = right.add(c.total())
		if right.bytes > e.start.bytes {
			receiver = i
			break
		}
	}

	var left length
	right = lengthZero
	for i, c := range s.children {
		left = right
		right = left.add(c.total())

		if right.bytes+c.lookahead < e.start.bytes {
			continue
		}
		if i > receiver && (left.bytes > e.oldEnd.bytes || (left.bytes == e.oldEnd.bytes && c.total().bytes > 0)) {
			break
		}

		ce := edit{
			start:  e.start.saturatingSub(left),
			oldEnd: e.oldEnd.saturatingSub(left),
			newEnd: e.newEnd.saturatingSub(left),
		}
		switch {
		case i < receiver:
			// Only the lookahead reaches the edit.
			ce.oldEnd = ce.start
			ce.newEnd = ce.start
		case i > receiver:
			// Later children only lose the deleted text.
			ce.newEnd = ce.start
		}
		result.children[i] = editSubtree(c, ce)
	}
	return result
}
