package syntax

import (
	"fmt"
	"unicode/utf8"
)

type InstOp uint8

const (
	// InstRune consumes one rune within Ranges, given as inclusive lo/hi pairs.
	InstRune InstOp = iota
	// InstSplit continues at both Out and Arg.
	InstSplit
	// InstJump continues at Out.
	InstJump
	// InstMatch accepts the token whose index is Arg.
	InstMatch
)

type Inst struct {
	Op     InstOp
	Ranges []rune
	Out    uint32
	Arg    uint32
}

func (i *Inst) matches(r rune) bool {
	for j := 0; j+1 < len(i.Ranges); j += 2 {
		if r < i.Ranges[j] {
			return false
		}
		if r <= i.Ranges[j+1] {
			return true
		}
	}
	return false
}

// LexToken is one candidate token of the lexer program.
type LexToken struct {
	Symbol Symbol
	Start  uint32
	// Literal tokens win ties against pattern tokens of the same length.
	Literal bool
	// Skip tokens are separators: consumed as padding, never produced.
	Skip bool
}

// LexProgram is a Thompson NFA for every token of a language plus, per lex
// mode, the tokens valid in that mode. Ranges in InstRune must be sorted.
type LexProgram struct {
	Insts  []Inst
	Tokens []LexToken
	Modes  [][]uint32
}

func (p *LexProgram) validate(symbols Symbol) error {
	n := uint32(len(p.Insts))
	for i, inst := range p.Insts {
		switch inst.Op {
		case InstRune:
			if len(inst.Ranges)%2 != 0 || inst.Out >= n {
				return fmt.Errorf("lexer instruction %d is malformed", i)
			}
		case InstSplit:
			if inst.Out >= n || inst.Arg >= n {
				return fmt.Errorf("lexer instruction %d jumps out of range", i)
			}
		case InstJump:
			if inst.Out >= n {
				return fmt.Errorf("lexer instruction %d jumps out of range", i)
			}
		case InstMatch:
			if int(inst.Arg) >= len(p.Tokens) {
				return fmt.Errorf("lexer instruction %d matches unknown token %d", i, inst.Arg)
			}
		default:
			return fmt.Errorf("lexer instruction %d has unknown op %d", i, inst.Op)
		}
	}
	for i, tok := range p.Tokens {
		if tok.Start >= n {
			return fmt.Errorf("lexer token %d starts out of range", i)
		}
		if !tok.Skip && (tok.Symbol == SymbolEnd || tok.Symbol >= symbols) {
			return fmt.Errorf("lexer token %d has invalid symbol %d", i, tok.Symbol)
		}
	}
	if len(p.Modes) == 0 {
		return fmt.Errorf("lexer has no modes")
	}
	for m, mode := range p.Modes {
		for _, tok := range mode {
			if int(tok) >= len(p.Tokens) {
				return fmt.Errorf("lex mode %d refers to unknown token %d", m, tok)
			}
		}
	}
	return nil
}

// lexPos is an absolute position plus the included range it falls in.
type lexPos struct {
	at         length
	rangeIndex int
}

type sparseSet struct {
	dense  []uint32
	sparse []uint32
}

func newSparseSet(n int) sparseSet {
	return sparseSet{dense: make([]uint32, 0, n), sparse: make([]uint32, n)}
}

func (s *sparseSet) contains(v uint32) bool {
	i := s.sparse[v]
	return int(i) < len(s.dense) && s.dense[i] == v
}

func (s *sparseSet) add(v uint32) {
	s.sparse[v] = uint32(len(s.dense))
	s.dense = append(s.dense, v)
}

func (s *sparseSet) clear() {
	s.dense = s.dense[:0]
}

type scanResult int

const (
	scanToken scanResult = iota
	scanEOF
	scanNone
)

// lexeme is the outcome of one scan.
type lexeme struct {
	result       scanResult
	token        int
	paddingStart length
	start        lexPos // content start
	end          lexPos
	lookaheadEnd uint32
}

// lexer reads the input sequentially into a single buffer and matches
// tokens against the language's NFA, skipping gaps between included ranges.
type lexer struct {
	prog   *LexProgram
	input  Input
	ranges []Range

	data     []byte
	readAt   length
	eof      bool
	allModes []uint32
	skips    []uint32

	clist, nlist sparseSet
}

func newLexer(prog *LexProgram, input Input, ranges []Range) *lexer {
	l := &lexer{
		prog:   prog,
		input:  input,
		ranges: ranges,
		clist:  newSparseSet(len(prog.Insts)),
		nlist:  newSparseSet(len(prog.Insts)),
	}
	for i, tok := range prog.Tokens {
		if tok.Skip {
			l.skips = append(l.skips, uint32(i))
		} else {
			l.allModes = append(l.allModes, uint32(i))
		}
	}
	return l
}

func (l *lexer) fill(offset uint32) bool {
	for int(offset) >= len(l.data) {
		if l.eof {
			return false
		}
		chunk := l.input.Read(uint32(len(l.data)), l.readAt.extent)
		if len(chunk) == 0 {
			l.eof = true
			return false
		}
		l.data = append(l.data, chunk...)
		l.readAt = l.readAt.add(extentOf(chunk))
	}
	return true
}

// position resolves the included range that contains or follows at.
func (l *lexer) position(at length) lexPos {
	i := 0
	for i < len(l.ranges) && l.ranges[i].EndByte <= at.bytes {
		i++
	}
	return lexPos{at: at, rangeIndex: i}
}

// next decodes the rune at or after p, jumping to the next included range
// when p has reached the end of the current one.
func (l *lexer) next(p lexPos) (r rune, size int, at lexPos, ok bool) {
	for p.rangeIndex < len(l.ranges) && p.at.bytes >= l.ranges[p.rangeIndex].EndByte {
		p.rangeIndex++
	}
	if p.rangeIndex >= len(l.ranges) {
		return 0, 0, p, false
	}
	q := p
	if rg := l.ranges[p.rangeIndex]; p.at.bytes < rg.StartByte {
		q.at = lengthAt(rg.StartByte, rg.StartPoint)
	}
	if !l.fill(q.at.bytes) {
		return 0, 0, p, false
	}
	p = q
	c := l.data[p.at.bytes]
	if c < utf8.RuneSelf {
		return rune(c), 1, p, true
	}
	end := p.at.bytes + utf8.UTFMax
	for i := p.at.bytes + 1; i < end; i++ {
		if !l.fill(i) {
			end = i
			break
		}
	}
	r, size = utf8.DecodeRune(l.data[p.at.bytes:end])
	return r, size, p, true
}

func advance(p lexPos, r rune, size int) lexPos {
	if r == '\n' {
		p.at = p.at.add(length{bytes: 1, extent: Point{Row: 1}})
	} else {
		p.at = p.at.add(length{bytes: uint32(size), extent: Point{Column: uint32(size)}})
	}
	return p
}

type match struct {
	token int
	start lexPos
	end   lexPos
}

func (l *lexer) better(a, b *match) bool {
	if b == nil {
		return true
	}
	if a.end.at.bytes != b.end.at.bytes {
		return a.end.at.bytes > b.end.at.bytes
	}
	ta, tb := l.prog.Tokens[a.token], l.prog.Tokens[b.token]
	if ta.Skip != tb.Skip {
		return !ta.Skip
	}
	if ta.Literal != tb.Literal {
		return ta.Literal
	}
	return a.token < b.token
}

func (l *lexer) addThread(set *sparseSet, pc uint32) {
	if set.contains(pc) {
		return
	}
	set.add(pc)
	inst := &l.prog.Insts[pc]
	switch inst.Op {
	case InstJump:
		l.addThread(set, inst.Out)
	case InstSplit:
		l.addThread(set, inst.Out)
		l.addThread(set, inst.Arg)
	}
}

// longest runs every candidate token from p in parallel and returns the
// best non-empty match along with the furthest byte examined.
func (l *lexer) longest(p lexPos, candidates ...[]uint32) (best *match, furthest uint32, atEOF bool) {
	l.clist.clear()
	for _, group := range candidates {
		for _, tok := range group {
			l.addThread(&l.clist, l.prog.Tokens[tok].Start)
		}
	}
	var start lexPos
	consumed := false
	pos := p
	for len(l.clist.dense) > 0 {
		if consumed {
			for _, pc := range l.clist.dense {
				inst := &l.prog.Insts[pc]
				if inst.Op != InstMatch {
					continue
				}
				m := &match{token: int(inst.Arg), start: start, end: pos}
				if l.better(m, best) {
					best = m
				}
			}
		}
		r, size, at, ok := l.next(pos)
		if !ok {
			atEOF = true
			if e := at.at.bytes + 1; e > furthest {
				furthest = e
			}
			break
		}
		if !consumed {
			start = at
			consumed = true
		}
		if e := at.at.bytes + uint32(size); e > furthest {
			furthest = e
		}
		l.nlist.clear()
		for _, pc := range l.clist.dense {
			inst := &l.prog.Insts[pc]
			if inst.Op == InstRune && inst.matches(r) {
				l.addThread(&l.nlist, inst.Out)
			}
		}
		l.clist, l.nlist = l.nlist, l.clist
		pos = advance(at, r, size)
	}
	return best, furthest, atEOF
}

// scan skips separators and then matches one token from the given set.
func (l *lexer) scan(from length, tokens []uint32) lexeme {
	res := lexeme{paddingStart: from, token: -1}
	pos := l.position(from)
	for {
		m, furthest, _ := l.longest(pos, tokens, l.skips)
		if furthest > res.lookaheadEnd {
			res.lookaheadEnd = furthest
		}
		if m != nil && l.prog.Tokens[m.token].Skip {
			pos = m.end
			continue
		}
		if m != nil {
			res.result = scanToken
			res.token = m.token
			res.start = m.start
			res.end = m.end
			return res
		}
		_, _, at, ok := l.next(pos)
		res.start = at
		res.end = at
		if !ok {
			res.result = scanEOF
		} else {
			res.result = scanNone
		}
		return res
	}
}

// skipRune consumes the single rune at the start of an unmatched lexeme.
func (l *lexer) skipRune(lx lexeme) lexeme {
	r, size, at, ok := l.next(lx.start)
	if !ok {
		lx.result = scanEOF
		return lx
	}
	lx.start = at
	lx.end = advance(at, r, size)
	if e := lx.end.at.bytes; e > lx.lookaheadEnd {
		lx.lookaheadEnd = e
	}
	return lx
}
