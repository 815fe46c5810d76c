package grammar

import (
	"fmt"
	resyntax "regexp/syntax"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/dhamidi/graft/syntax"
)

// hole is an unpatched exit of a fragment: the Out (or, for splits, Arg)
// field of an instruction.
type hole struct {
	pc  uint32
	arg bool
}

type fragment struct {
	start uint32
	out   []hole
}

// nfaBuilder compiles token rules into the Thompson NFA run by the lexer.
type nfaBuilder struct {
	prog syntax.LexProgram
}

func (b *nfaBuilder) emit(inst syntax.Inst) uint32 {
	b.prog.Insts = append(b.prog.Insts, inst)
	return uint32(len(b.prog.Insts) - 1)
}

func (b *nfaBuilder) patch(holes []hole, target uint32) {
	for _, h := range holes {
		if h.arg {
			b.prog.Insts[h.pc].Arg = target
		} else {
			b.prog.Insts[h.pc].Out = target
		}
	}
}

func (b *nfaBuilder) empty() fragment {
	pc := b.emit(syntax.Inst{Op: syntax.InstJump})
	return fragment{start: pc, out: []hole{{pc: pc}}}
}

func (b *nfaBuilder) runes(ranges []rune) fragment {
	pc := b.emit(syntax.Inst{Op: syntax.InstRune, Ranges: ranges})
	return fragment{start: pc, out: []hole{{pc: pc}}}
}

func (b *nfaBuilder) cat(f1, f2 fragment) fragment {
	b.patch(f1.out, f2.start)
	return fragment{start: f1.start, out: f2.out}
}

func (b *nfaBuilder) alt(f1, f2 fragment) fragment {
	pc := b.emit(syntax.Inst{Op: syntax.InstSplit, Out: f1.start, Arg: f2.start})
	return fragment{start: pc, out: append(slices.Clone(f1.out), f2.out...)}
}

func (b *nfaBuilder) quest(f fragment) fragment {
	pc := b.emit(syntax.Inst{Op: syntax.InstSplit, Out: f.start})
	return fragment{start: pc, out: append(slices.Clone(f.out), hole{pc: pc, arg: true})}
}

func (b *nfaBuilder) star(f fragment) fragment {
	pc := b.emit(syntax.Inst{Op: syntax.InstSplit, Out: f.start})
	b.patch(f.out, pc)
	return fragment{start: pc, out: []hole{{pc: pc, arg: true}}}
}

func (b *nfaBuilder) plus(f fragment) fragment {
	loop := b.star(f)
	return fragment{start: f.start, out: loop.out}
}

func (b *nfaBuilder) literal(s string, foldCase bool) fragment {
	if s == "" {
		return b.empty()
	}
	var f *fragment
	for _, r := range s {
		next := b.runes(runeClass(r, foldCase))
		if f == nil {
			f = &next
			continue
		}
		joined := b.cat(*f, next)
		f = &joined
	}
	return *f
}

func runeClass(r rune, foldCase bool) []rune {
	if !foldCase {
		return []rune{r, r}
	}
	set := []rune{r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		set = append(set, f)
	}
	slices.Sort(set)
	ranges := make([]rune, 0, 2*len(set))
	for _, c := range set {
		ranges = append(ranges, c, c)
	}
	return ranges
}

// addToken compiles r and registers it as a token matching symbol.
func (b *nfaBuilder) addToken(r Rule, sym syntax.Symbol, literal, skip bool) error {
	f, err := b.rule(r)
	if err != nil {
		return err
	}
	index := uint32(len(b.prog.Tokens))
	match := b.emit(syntax.Inst{Op: syntax.InstMatch, Arg: index})
	b.patch(f.out, match)
	b.prog.Tokens = append(b.prog.Tokens, syntax.LexToken{
		Symbol:  sym,
		Start:   f.start,
		Literal: literal,
		Skip:    skip,
	})
	return nil
}

func (b *nfaBuilder) rule(r Rule) (fragment, error) {
	switch r := r.(type) {
	case strRule:
		if r.value == "" {
			return fragment{}, fmt.Errorf("empty string token")
		}
		return b.literal(r.value, false), nil
	case patternRule:
		re, err := resyntax.Parse(r.expr, resyntax.Perl)
		if err != nil {
			return fragment{}, fmt.Errorf("pattern /%s/: %w", r.expr, err)
		}
		f, err := b.regexp(re.Simplify())
		if err != nil {
			return fragment{}, fmt.Errorf("pattern /%s/: %w", r.expr, err)
		}
		return f, nil
	case tokenRule:
		return b.rule(r.body)
	case precRule:
		return b.rule(r.body)
	case blankRule:
		return b.empty(), nil
	case seqRule:
		f := b.empty()
		for _, m := range r.members {
			next, err := b.rule(m)
			if err != nil {
				return fragment{}, err
			}
			f = b.cat(f, next)
		}
		return f, nil
	case choiceRule:
		if len(r.members) == 0 {
			return b.empty(), nil
		}
		f, err := b.rule(r.members[0])
		if err != nil {
			return fragment{}, err
		}
		for _, m := range r.members[1:] {
			next, err := b.rule(m)
			if err != nil {
				return fragment{}, err
			}
			f = b.alt(f, next)
		}
		return f, nil
	case repeatRule:
		body, err := b.rule(r.body)
		if err != nil {
			return fragment{}, err
		}
		if r.atLeastOne {
			return b.plus(body), nil
		}
		return b.star(body), nil
	}
	return fragment{}, fmt.Errorf("%s cannot appear inside a token", r)
}

func (b *nfaBuilder) regexp(re *resyntax.Regexp) (fragment, error) {
	switch re.Op {
	case resyntax.OpNoMatch:
		return b.runes(nil), nil
	case resyntax.OpEmptyMatch:
		return b.empty(), nil
	case resyntax.OpLiteral:
		return b.literal(string(re.Rune), re.Flags&resyntax.FoldCase != 0), nil
	case resyntax.OpCharClass:
		return b.runes(slices.Clone(re.Rune)), nil
	case resyntax.OpAnyCharNotNL:
		return b.runes([]rune{0, '\n' - 1, '\n' + 1, utf8.MaxRune}), nil
	case resyntax.OpAnyChar:
		return b.runes([]rune{0, utf8.MaxRune}), nil
	case resyntax.OpCapture:
		return b.regexp(re.Sub[0])
	case resyntax.OpStar, resyntax.OpPlus, resyntax.OpQuest:
		sub, err := b.regexp(re.Sub[0])
		if err != nil {
			return fragment{}, err
		}
		switch re.Op {
		case resyntax.OpStar:
			return b.star(sub), nil
		case resyntax.OpPlus:
			return b.plus(sub), nil
		}
		return b.quest(sub), nil
	case resyntax.OpConcat:
		f := b.empty()
		for _, sub := range re.Sub {
			next, err := b.regexp(sub)
			if err != nil {
				return fragment{}, err
			}
			f = b.cat(f, next)
		}
		return f, nil
	case resyntax.OpAlternate:
		f, err := b.regexp(re.Sub[0])
		if err != nil {
			return fragment{}, err
		}
		for _, sub := range re.Sub[1:] {
			next, err := b.regexp(sub)
			if err != nil {
				return fragment{}, err
			}
			f = b.alt(f, next)
		}
		return f, nil
	}
	return fragment{}, fmt.Errorf("unsupported operator %s", re.Op)
}

// lexProgram compiles every terminal and skip rule of g.
func lexProgram(g *flat) (syntax.LexProgram, map[int]uint32, error) {
	var b nfaBuilder
	tokens := make(map[int]uint32)
	for sym := 1; sym < g.terminals; sym++ {
		def := g.symbols[sym]
		tokens[sym] = uint32(len(b.prog.Tokens))
		if err := b.addToken(def.token, syntax.Symbol(sym), def.literal, false); err != nil {
			return syntax.LexProgram{}, nil, &GrammarError{Rule: def.owner, Reason: err.Error()}
		}
	}
	for _, skip := range g.skips {
		if err := b.addToken(skip, 0, false, true); err != nil {
			return syntax.LexProgram{}, nil, &GrammarError{Reason: fmt.Sprintf("extra %s: %v", skip, err)}
		}
	}
	return b.prog, tokens, nil
}
