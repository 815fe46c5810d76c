package syntax

import (
	"fmt"
	"io"
	"strings"
)

// maxVersions bounds how many stack versions are explored at once.
const maxVersions = 6

// stackEntry is one link of a persistent parse stack. Versions forked from
// the same stack share their common entries.
type stackEntry struct {
	state    StateID
	sub      *subtree // nil for the bottom entry
	prev     *stackEntry
	position length // absolute position after sub
}

func (e *stackEntry) push(state StateID, sub *subtree) *stackEntry {
	return &stackEntry{
		state:    state,
		sub:      sub,
		prev:     e,
		position: e.position.add(sub.total()),
	}
}

// subtrees returns the stack's subtrees from bottom to top.
func (e *stackEntry) subtrees() []*subtree {
	var subs []*subtree
	for ; e != nil && e.sub != nil; e = e.prev {
		subs = append(subs, e.sub)
	}
	for i, j := 0, len(subs)-1; i < j; i, j = i+1, j-1 {
		subs[i], subs[j] = subs[j], subs[i]
	}
	return subs
}

// version is one alternative parse in progress.
type version struct {
	top       *stackEntry
	lookahead *subtree
	// recoveredAt is one past the byte where the last pop recovery
	// happened, so recovery pops at most once per lookahead.
	recoveredAt uint32
	halted      bool
	finished    *subtree
}

func (v *version) position() length {
	return v.top.position
}

func (v *version) fork() *version {
	return &version{top: v.top, lookahead: v.lookahead, recoveredAt: v.recoveredAt}
}

func (v *version) dynamicPrecedence() int32 {
	var total int32
	for e := v.top; e != nil && e.sub != nil; e = e.prev {
		total += e.sub.dynamicPrecedence
	}
	return total
}

func (v *version) errorCost() uint32 {
	var total uint32
	for e := v.top; e != nil && e.sub != nil; e = e.prev {
		total += e.sub.errorCost
	}
	return total
}

// better reports whether a should be kept over b when the two can merge.
func better(a, b *version) bool {
	ca, cb := a.errorCost(), b.errorCost()
	if ca != cb {
		return ca < cb
	}
	return a.dynamicPrecedence() > b.dynamicPrecedence()
}

// condense drops halted versions and merges versions that reached the same
// state at the same position.
func (s *session) condense() {
	live := s.versions[:0]
	for _, v := range s.versions {
		if !v.halted && v.finished == nil {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(s.versions); i++ {
		s.versions[i] = nil
	}
	s.versions = live

	for i := 0; i < len(s.versions); i++ {
		for j := i + 1; j < len(s.versions); {
			a, b := s.versions[i], s.versions[j]
			if a.top.state != b.top.state || a.position().bytes != b.position().bytes {
				j++
				continue
			}
			if better(b, a) {
				s.versions[i] = b
			}
			s.log.printf(LogTypeParse, "merge_versions version:%d version:%d state:%d", i, j, a.top.state)
			s.versions = append(s.versions[:j], s.versions[j+1:]...)
		}
	}

	for len(s.versions) > maxVersions {
		worst := 0
		for i, v := range s.versions {
			if better(s.versions[worst], v) {
				worst = i
			}
		}
		s.log.printf(LogTypeParse, "drop_version version:%d", worst)
		s.versions = append(s.versions[:worst], s.versions[worst+1:]...)
	}
}

// next picks the live version furthest behind in the input.
func (s *session) next() *version {
	var pick *version
	for _, v := range s.versions {
		if pick == nil || v.position().bytes < pick.position().bytes {
			pick = v
		}
	}
	return pick
}

func (s *session) printStacks(w io.Writer) {
	var b strings.Builder
	b.WriteString("digraph stack {\n")
	b.WriteString("rankdir=\"RL\";\n")
	id := 0
	for i, v := range s.versions {
		prev := -1
		for e := v.top; e != nil; e = e.prev {
			label := fmt.Sprintf("%d", e.state)
			if e.sub != nil {
				label = fmt.Sprintf("%d %s", e.state, s.lang.SymbolName(e.sub.symbol))
			}
			fmt.Fprintf(&b, "node_%d [label=%q];\n", id, label)
			if prev < 0 {
				fmt.Fprintf(&b, "version_%d -> node_%d;\n", i, id)
			} else {
				fmt.Fprintf(&b, "node_%d -> node_%d;\n", prev, id)
			}
			prev = id
			id++
		}
	}
	b.WriteString("}\n\n")
	io.WriteString(w, b.String())
}
