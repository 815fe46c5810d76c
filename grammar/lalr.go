package grammar

import (
	"fmt"
	"math/bits"
	"slices"
	"sort"
	"strings"

	"github.com/dhamidi/graft/syntax"
)

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) add(i int) bool {
	w, m := i/64, uint64(1)<<(i%64)
	if b[w]&m != 0 {
		return false
	}
	b[w] |= m
	return true
}

func (b bitset) has(i int) bool {
	return b[i/64]&(uint64(1)<<(i%64)) != 0
}

func (b bitset) union(o bitset) bool {
	changed := false
	for i, w := range o {
		if b[i]|w != b[i] {
			b[i] |= w
			changed = true
		}
	}
	return changed
}

func (b bitset) clone() bitset {
	return slices.Clone(b)
}

func (b bitset) each(fn func(int)) {
	for w, word := range b {
		for word != 0 {
			i := bits.TrailingZeros64(word)
			fn(w*64 + i)
			word &^= 1 << i
		}
	}
}

type item struct {
	prod int
	dot  int
}

type lrState struct {
	kernel      map[item]bitset
	transitions map[int]int
}

// tableBuilder computes LALR(1) tables: LR(1) states whose kernels share a
// core are merged as they are discovered, and lookaheads are propagated
// until nothing changes.
type tableBuilder struct {
	g         *flat
	prods     []production
	byLHS     map[int][]int
	nullable  []bool
	first     []bitset
	augmented int

	states []*lrState
	index  map[string]int
}

func newTableBuilder(g *flat) *tableBuilder {
	b := &tableBuilder{
		g:     g,
		prods: slices.Clone(g.productions),
		byLHS: make(map[int][]int),
		index: make(map[string]int),
	}
	b.augmented = len(b.prods)
	b.prods = append(b.prods, production{lhs: len(g.symbols), rhs: []int{g.start}})
	for i, p := range b.prods {
		b.byLHS[p.lhs] = append(b.byLHS[p.lhs], i)
	}
	b.computeFirst()
	return b
}

func (b *tableBuilder) isTerminal(sym int) bool {
	return sym < b.g.terminals
}

func (b *tableBuilder) computeFirst() {
	n := len(b.g.symbols) + 1
	b.nullable = make([]bool, n)
	b.first = make([]bitset, n)
	for i := range b.first {
		b.first[i] = newBitset(b.g.terminals)
		if b.isTerminal(i) {
			b.first[i].add(i)
		}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range b.prods {
			allNullable := true
			for _, sym := range p.rhs {
				if b.first[p.lhs].union(b.first[sym]) {
					changed = true
				}
				if !b.nullable[sym] {
					allNullable = false
					break
				}
			}
			if allNullable && !b.nullable[p.lhs] {
				b.nullable[p.lhs] = true
				changed = true
			}
		}
	}
}

// firstOf returns FIRST(seq) plus follow when seq is nullable.
func (b *tableBuilder) firstOf(seq []int, follow bitset) bitset {
	result := newBitset(b.g.terminals)
	for _, sym := range seq {
		result.union(b.first[sym])
		if !b.nullable[sym] {
			return result
		}
	}
	result.union(follow)
	return result
}

func (b *tableBuilder) closure(kernel map[item]bitset) map[item]bitset {
	items := make(map[item]bitset, len(kernel))
	var work []item
	for it, la := range kernel {
		items[it] = la.clone()
		work = append(work, it)
	}
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		p := b.prods[it.prod]
		if it.dot >= len(p.rhs) || b.isTerminal(p.rhs[it.dot]) {
			continue
		}
		follow := b.firstOf(p.rhs[it.dot+1:], items[it])
		for _, q := range b.byLHS[p.rhs[it.dot]] {
			next := item{prod: q}
			la, ok := items[next]
			if !ok {
				items[next] = follow.clone()
				work = append(work, next)
				continue
			}
			if la.union(follow) {
				work = append(work, next)
			}
		}
	}
	return items
}

func sortedItems[V any](m map[item]V) []item {
	keys := make([]item, 0, len(m))
	for it := range m {
		keys = append(keys, it)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].prod != keys[j].prod {
			return keys[i].prod < keys[j].prod
		}
		return keys[i].dot < keys[j].dot
	})
	return keys
}

func coreKey(kernel map[item]bitset) string {
	var sb strings.Builder
	for _, it := range sortedItems(kernel) {
		fmt.Fprintf(&sb, "%d.%d;", it.prod, it.dot)
	}
	return sb.String()
}

func (b *tableBuilder) build() {
	start := newBitset(b.g.terminals)
	start.add(0)
	b.addState(map[item]bitset{{prod: b.augmented}: start})

	queued := map[int]bool{0: true}
	work := []int{0}
	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		queued[id] = false

		kernels := make(map[int]map[item]bitset)
		clos := b.closure(b.states[id].kernel)
		for _, it := range sortedItems(clos) {
			p := b.prods[it.prod]
			if it.dot >= len(p.rhs) {
				continue
			}
			sym := p.rhs[it.dot]
			if kernels[sym] == nil {
				kernels[sym] = make(map[item]bitset)
			}
			next := item{prod: it.prod, dot: it.dot + 1}
			if la, ok := kernels[sym][next]; ok {
				la.union(clos[it])
			} else {
				kernels[sym][next] = clos[it].clone()
			}
		}

		symbols := make([]int, 0, len(kernels))
		for sym := range kernels {
			symbols = append(symbols, sym)
		}
		sort.Ints(symbols)
		for _, sym := range symbols {
			kernel := kernels[sym]
			target, existed := b.index[coreKey(kernel)]
			changed := false
			if existed {
				state := b.states[target]
				for it, la := range kernel {
					if state.kernel[it].union(la) {
						changed = true
					}
				}
			} else {
				target = b.addState(kernel)
				changed = true
			}
			b.states[id].transitions[sym] = target
			if changed && !queued[target] {
				queued[target] = true
				work = append(work, target)
			}
		}
	}
}

func (b *tableBuilder) addState(kernel map[item]bitset) int {
	id := len(b.states)
	b.states = append(b.states, &lrState{kernel: kernel, transitions: make(map[int]int)})
	b.index[coreKey(kernel)] = id
	return id
}

type shiftCandidate struct {
	state int
	prec  int
	items []item
}

// tables turns the LR automaton into parse states, resolving conflicts by
// precedence and associativity or keeping them when declared.
func (b *tableBuilder) tables() ([]syntax.ParseState, error) {
	states := make([]syntax.ParseState, len(b.states))
	for id, st := range b.states {
		clos := b.closure(st.kernel)
		shifts := make(map[int]*shiftCandidate)
		reduces := make(map[int][]int)
		accept := false
		for _, it := range sortedItems(clos) {
			p := b.prods[it.prod]
			if it.dot < len(p.rhs) {
				sym := p.rhs[it.dot]
				if !b.isTerminal(sym) {
					continue
				}
				c := shifts[sym]
				if c == nil {
					c = &shiftCandidate{state: st.transitions[sym], prec: p.prec}
					shifts[sym] = c
				}
				if p.prec > c.prec {
					c.prec = p.prec
				}
				c.items = append(c.items, it)
				continue
			}
			if it.prod == b.augmented {
				accept = clos[it].has(0)
				continue
			}
			clos[it].each(func(t int) {
				reduces[t] = append(reduces[t], it.prod)
			})
		}

		ps := syntax.ParseState{
			Actions: make(map[syntax.Symbol][]syntax.Action),
			Gotos:   make(map[syntax.Symbol]syntax.StateID),
		}
		for t := 0; t < b.g.terminals; t++ {
			actions, err := b.resolve(id, t, shifts[t], reduces[t])
			if err != nil {
				return nil, err
			}
			if t == 0 && accept {
				actions = append(actions, syntax.Action{Type: syntax.ActionAccept})
			}
			if len(actions) > 0 {
				ps.Actions[syntax.Symbol(t)] = actions
			}
		}
		for sym, target := range st.transitions {
			if !b.isTerminal(sym) {
				ps.Gotos[syntax.Symbol(sym)] = syntax.StateID(target)
			}
		}
		for _, extra := range b.g.extras {
			if _, ok := ps.Actions[syntax.Symbol(extra)]; !ok {
				ps.Actions[syntax.Symbol(extra)] = []syntax.Action{{Type: syntax.ActionShift, Extra: true}}
			}
		}
		states[id] = ps
	}
	return states, nil
}

func (b *tableBuilder) resolve(state, t int, shift *shiftCandidate, reduces []int) ([]syntax.Action, error) {
	fail := func(prods []int, shifted []item) error {
		var items []string
		var owners []string
		for _, it := range shifted {
			items = append(items, b.itemString(it))
			owners = append(owners, b.prods[it.prod].owner)
		}
		for _, p := range prods {
			items = append(items, b.itemString(item{prod: p, dot: len(b.prods[p].rhs)}))
			owners = append(owners, b.prods[p].owner)
		}
		slices.Sort(owners)
		return &ConflictError{
			State:     state,
			Lookahead: b.g.symbols[t].info.Name,
			Items:     items,
			Rules:     slices.Compact(owners),
		}
	}

	if len(reduces) > 1 {
		best := b.prods[reduces[0]].prec
		for _, r := range reduces[1:] {
			best = max(best, b.prods[r].prec)
		}
		var kept []int
		for _, r := range reduces {
			if b.prods[r].prec == best {
				kept = append(kept, r)
			}
		}
		if len(kept) > 1 && !b.declared(kept, nil) {
			return nil, fail(kept, nil)
		}
		reduces = kept
	}

	keepShift := shift != nil
	var kept []int
	for _, r := range reduces {
		p := b.prods[r]
		if shift == nil {
			kept = append(kept, r)
			continue
		}
		switch {
		case p.prec > shift.prec:
			keepShift = false
			kept = append(kept, r)
		case p.prec < shift.prec:
		case p.assoc == assocLeft:
			keepShift = false
			kept = append(kept, r)
		case p.assoc == assocRight:
		case b.declared([]int{r}, shift.items):
			kept = append(kept, r)
		default:
			return nil, fail([]int{r}, shift.items)
		}
	}

	var actions []syntax.Action
	if keepShift {
		actions = append(actions, syntax.Action{Type: syntax.ActionShift, State: syntax.StateID(shift.state)})
	}
	for _, r := range kept {
		p := b.prods[r]
		actions = append(actions, syntax.Action{
			Type:              syntax.ActionReduce,
			Symbol:            syntax.Symbol(p.lhs),
			ChildCount:        uint16(len(p.rhs)),
			DynamicPrecedence: int16(p.dynamic),
		})
	}
	return actions, nil
}

// declared reports whether one Conflict declaration names every rule
// involved.
func (b *tableBuilder) declared(prods []int, shifted []item) bool {
	owners := make(map[string]bool)
	for _, p := range prods {
		owners[b.prods[p].owner] = true
	}
	for _, it := range shifted {
		owners[b.prods[it.prod].owner] = true
	}
	for _, group := range b.g.conflicts {
		covered := 0
		for _, name := range group {
			if owners[name] {
				covered++
			}
		}
		if covered == len(owners) {
			return true
		}
	}
	return false
}

func (b *tableBuilder) symbolName(sym int) string {
	if sym == len(b.g.symbols) {
		return "start"
	}
	return b.g.symbols[sym].info.Name
}

func (b *tableBuilder) itemString(it item) string {
	p := b.prods[it.prod]
	var sb strings.Builder
	sb.WriteString(b.symbolName(p.lhs))
	sb.WriteString(" ->")
	for i, sym := range p.rhs {
		if i == it.dot {
			sb.WriteString(" •")
		}
		sb.WriteString(" ")
		sb.WriteString(b.symbolName(sym))
	}
	if it.dot == len(p.rhs) {
		sb.WriteString(" •")
	}
	return sb.String()
}
