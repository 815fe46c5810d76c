package grammar

import (
	"fmt"

	"github.com/dhamidi/graft/syntax"
)

type symbolDef struct {
	info syntax.SymbolInfo
	// token is the lexical rule of a terminal.
	token   Rule
	literal bool
	// owner is the rule whose definition introduced the symbol.
	owner string
}

type production struct {
	lhs     int
	rhs     []int
	prec    int
	assoc   assoc
	dynamic int
	owner   string
}

// flat is a grammar reduced to numbered symbols and plain productions.
// Terminals come first, starting with the end-of-input symbol.
type flat struct {
	name        string
	symbols     []symbolDef
	productions []production
	start       int
	skips       []Rule
	extras      []int
	conflicts   [][]string
	terminals   int
}

type flattener struct {
	g        *Grammar
	out      *flat
	byKey    map[string]int
	literals map[string]int
	repeats  map[string]int
}

func flatten(g *Grammar, start string) (*flat, error) {
	if g.err != nil {
		return nil, g.err
	}
	if len(g.rules) == 0 {
		return nil, &GrammarError{Reason: "no rules defined"}
	}
	f := &flattener{
		g: g,
		out: &flat{
			name:      g.Name,
			conflicts: g.conflicts,
			symbols: []symbolDef{{
				info: syntax.SymbolInfo{Name: "end", Terminal: true},
			}},
		},
		byKey:    make(map[string]int),
		literals: make(map[string]int),
		repeats:  make(map[string]int),
	}

	for _, def := range g.rules {
		if !lexical(def.body) {
			continue
		}
		id := f.terminal("sym:"+def.name, symbolDef{
			info:  syntax.SymbolInfo{Name: def.name, Visible: !hidden(def.name), Named: true, Terminal: true},
			token: def.body,
			owner: def.name,
		})
		if s, ok := unwrapPrec(def.body).(strRule); ok {
			f.out.symbols[id].literal = true
			f.literals[s.value] = id
		}
	}
	for _, def := range g.rules {
		if lexical(def.body) {
			continue
		}
		if err := f.collectTerminals(def.name, def.body); err != nil {
			return nil, err
		}
	}

	extras := g.extras
	if extras == nil {
		extras = []Rule{Pattern(`\s`)}
	}
	for _, extra := range extras {
		switch r := extra.(type) {
		case strRule, patternRule, tokenRule:
			f.out.skips = append(f.out.skips, r)
		case symRule:
			id, ok := f.byKey["sym:"+r.name]
			if !ok {
				return nil, &GrammarError{Rule: r.name, Reason: "extras may only name token rules"}
			}
			f.out.extras = append(f.out.extras, id)
		default:
			return nil, &GrammarError{Reason: fmt.Sprintf("unsupported extra %s", extra)}
		}
	}
	f.out.terminals = len(f.out.symbols)

	for _, def := range g.rules {
		if lexical(def.body) {
			continue
		}
		f.out.symbols = append(f.out.symbols, symbolDef{
			info:  syntax.SymbolInfo{Name: def.name, Visible: !hidden(def.name), Named: true},
			owner: def.name,
		})
		f.byKey["sym:"+def.name] = len(f.out.symbols) - 1
	}

	if start == "" {
		start = g.rules[0].name
	}
	startID, ok := f.byKey["sym:"+start]
	if !ok {
		return nil, &GrammarError{Rule: start, Reason: "start rule is not defined"}
	}
	if f.out.symbols[startID].info.Terminal {
		return nil, &GrammarError{Rule: start, Reason: "start rule must not be a token"}
	}
	f.out.start = startID

	for _, def := range g.rules {
		if lexical(def.body) {
			continue
		}
		alts, err := f.expand(def.name, def.body)
		if err != nil {
			return nil, err
		}
		lhs := f.byKey["sym:"+def.name]
		for _, a := range alts {
			f.out.productions = append(f.out.productions, a.production(lhs, def.name))
		}
	}
	return f.out, nil
}

func unwrapPrec(r Rule) Rule {
	for {
		p, ok := r.(precRule)
		if !ok {
			return r
		}
		r = p.body
	}
}

func (f *flattener) terminal(key string, def symbolDef) int {
	if id, ok := f.byKey[key]; ok {
		return id
	}
	f.out.symbols = append(f.out.symbols, def)
	id := len(f.out.symbols) - 1
	f.byKey[key] = id
	return id
}

// anonymous returns the terminal for a token appearing inline in a rule.
func (f *flattener) anonymous(owner string, r Rule) int {
	switch r := r.(type) {
	case strRule:
		if id, ok := f.literals[r.value]; ok {
			return id
		}
		return f.terminal("str:"+r.value, symbolDef{
			info:    syntax.SymbolInfo{Name: r.value, Visible: true, Terminal: true},
			token:   r,
			literal: true,
			owner:   owner,
		})
	case patternRule:
		return f.terminal("pat:"+r.expr, symbolDef{
			info:  syntax.SymbolInfo{Name: r.String(), Terminal: true},
			token: r,
			owner: owner,
		})
	}
	return f.terminal("tok:"+r.String(), symbolDef{
		info:  syntax.SymbolInfo{Name: r.String(), Terminal: true},
		token: r,
		owner: owner,
	})
}

func (f *flattener) collectTerminals(owner string, r Rule) error {
	switch r := r.(type) {
	case seqRule:
		for _, m := range r.members {
			if err := f.collectTerminals(owner, m); err != nil {
				return err
			}
		}
	case choiceRule:
		for _, m := range r.members {
			if err := f.collectTerminals(owner, m); err != nil {
				return err
			}
		}
	case repeatRule:
		return f.collectTerminals(owner, r.body)
	case precRule:
		if lexical(r) && !r.dynamic {
			f.anonymous(owner, unwrapPrec(r))
			return nil
		}
		return f.collectTerminals(owner, r.body)
	case strRule:
		if r.value == "" {
			return &GrammarError{Rule: owner, Reason: "empty string token"}
		}
		f.anonymous(owner, r)
	case patternRule, tokenRule:
		f.anonymous(owner, r)
	case symRule:
		if _, ok := f.g.index[r.name]; !ok {
			return &GrammarError{Rule: owner, Reason: fmt.Sprintf("undefined rule %q", r.name)}
		}
	case blankRule:
	case nil:
		return &GrammarError{Rule: owner, Reason: "nil rule"}
	}
	return nil
}

// alt is one alternative of a rule body after choices are expanded.
type alt struct {
	symbols []int
	prec    int
	assoc   assoc
	dynamic int
}

func (a alt) production(lhs int, owner string) production {
	return production{lhs: lhs, rhs: a.symbols, prec: a.prec, assoc: a.assoc, dynamic: a.dynamic, owner: owner}
}

func (f *flattener) expand(owner string, r Rule) ([]alt, error) {
	switch r := r.(type) {
	case blankRule:
		return []alt{{}}, nil
	case symRule:
		return []alt{{symbols: []int{f.byKey["sym:"+r.name]}}}, nil
	case strRule, patternRule, tokenRule:
		return []alt{{symbols: []int{f.anonymous(owner, r)}}}, nil
	case seqRule:
		result := []alt{{}}
		for _, m := range r.members {
			next, err := f.expand(owner, m)
			if err != nil {
				return nil, err
			}
			var product []alt
			for _, a := range result {
				for _, b := range next {
					c := alt{
						symbols: append(append([]int(nil), a.symbols...), b.symbols...),
						prec:    a.prec,
						assoc:   a.assoc,
						dynamic: a.dynamic + b.dynamic,
					}
					if b.prec != 0 || b.assoc != assocNone {
						c.prec, c.assoc = b.prec, b.assoc
					}
					product = append(product, c)
				}
			}
			result = product
		}
		return result, nil
	case choiceRule:
		var result []alt
		for _, m := range r.members {
			next, err := f.expand(owner, m)
			if err != nil {
				return nil, err
			}
			result = append(result, next...)
		}
		return result, nil
	case repeatRule:
		body, err := f.expand(owner, r.body)
		if err != nil {
			return nil, err
		}
		helper := f.repeatHelper(owner, r, body)
		if r.atLeastOne {
			return []alt{{symbols: []int{helper}}}, nil
		}
		return []alt{{symbols: []int{helper}}, {}}, nil
	case precRule:
		if lexical(r) {
			return []alt{{symbols: []int{f.anonymous(owner, unwrapPrec(r))}}}, nil
		}
		body, err := f.expand(owner, r.body)
		if err != nil {
			return nil, err
		}
		for i := range body {
			if r.dynamic {
				body[i].dynamic += r.value
				continue
			}
			body[i].prec, body[i].assoc = r.value, r.assoc
		}
		return body, nil
	}
	return nil, &GrammarError{Rule: owner, Reason: fmt.Sprintf("unsupported rule %v", r)}
}

// repeatHelper creates the hidden left-recursive symbol h -> h body | body.
func (f *flattener) repeatHelper(owner string, r repeatRule, body []alt) int {
	key := owner + "\x00" + r.body.String()
	if id, ok := f.repeats[key]; ok {
		return id
	}
	count := 1
	for k := range f.repeats {
		if len(k) > len(owner) && k[:len(owner)+1] == owner+"\x00" {
			count++
		}
	}
	f.out.symbols = append(f.out.symbols, symbolDef{
		info:  syntax.SymbolInfo{Name: fmt.Sprintf("%s_repeat%d", owner, count)},
		owner: owner,
	})
	id := len(f.out.symbols) - 1
	f.repeats[key] = id
	for _, a := range body {
		again := a
		again.symbols = append([]int{id}, a.symbols...)
		f.out.productions = append(f.out.productions, a.production(id, owner), again.production(id, owner))
	}
	return id
}
