// Package grammar builds syntax.Language tables from grammar definitions,
// written either with the rule DSL of this package or as EBNF.
//
//	g := grammar.New("arithmetic").
//		Define("program", grammar.Sym("_expression")).
//		Define("_expression", grammar.Choice(grammar.Sym("sum"), grammar.Sym("number"))).
//		Define("sum", grammar.PrecLeft(1, grammar.Seq(grammar.Sym("_expression"), grammar.Str("+"), grammar.Sym("_expression")))).
//		Define("number", grammar.Pattern(`\d+`))
//	lang, err := grammar.Compile(g)
//
// Rule names starting with an underscore are hidden: their nodes are kept in
// the tree but their children appear in their place. A rule whose body is a
// Str, Pattern or Token becomes a named token.
package grammar

import (
	"fmt"
	"slices"
)

type definition struct {
	name string
	body Rule
}

// Grammar is a set of rule definitions. The first defined rule is the start
// rule unless WithStart says otherwise.
type Grammar struct {
	Name string

	rules     []definition
	index     map[string]int
	extras    []Rule
	conflicts [][]string
	err       error
}

func New(name string) *Grammar {
	return &Grammar{Name: name, index: make(map[string]int)}
}

// Define adds a rule. Defining the same name twice is an error reported by
// Compile.
func (g *Grammar) Define(name string, body Rule) *Grammar {
	if _, ok := g.index[name]; ok {
		if g.err == nil {
			g.err = &GrammarError{Rule: name, Reason: "defined twice"}
		}
		return g
	}
	g.index[name] = len(g.rules)
	g.rules = append(g.rules, definition{name: name, body: body})
	return g
}

// Extras declares what may appear between any two tokens. Str and Pattern
// extras are skipped as whitespace; Sym extras name token rules, such as
// comments, that appear in the tree as extra nodes. Without a call to
// Extras, whitespace is skipped.
func (g *Grammar) Extras(rules ...Rule) *Grammar {
	if g.extras == nil {
		g.extras = []Rule{}
	}
	g.extras = append(g.extras, rules...)
	return g
}

// Conflict declares that the named rules are expected to conflict. The
// parser explores every alternative instead of the compiler rejecting the
// grammar.
func (g *Grammar) Conflict(names ...string) *Grammar {
	g.conflicts = append(g.conflicts, slices.Clone(names))
	return g
}

// Rules returns the rule names in definition order.
func (g *Grammar) Rules() []string {
	names := make([]string, len(g.rules))
	for i, def := range g.rules {
		names[i] = def.name
	}
	return names
}

// Rule returns the body of the named rule.
func (g *Grammar) Rule(name string) (Rule, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.rules[i].body, true
}

func (g *Grammar) String() string {
	return fmt.Sprintf("grammar %s (%d rules)", g.Name, len(g.rules))
}

func hidden(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
