package grammar

import (
	"fmt"
	"strings"
)

// Rule is a node of a grammar rule expression. Rules are built with the
// constructor functions of this package.
type Rule interface {
	fmt.Stringer
	rule()
}

type seqRule struct{ members []Rule }
type choiceRule struct{ members []Rule }
type repeatRule struct {
	body       Rule
	atLeastOne bool
}
type blankRule struct{}
type symRule struct{ name string }
type strRule struct{ value string }
type patternRule struct{ expr string }
type tokenRule struct{ body Rule }

type assoc uint8

const (
	assocNone assoc = iota
	assocLeft
	assocRight
)

type precRule struct {
	value   int
	assoc   assoc
	dynamic bool
	body    Rule
}

func (seqRule) rule()     {}
func (choiceRule) rule()  {}
func (repeatRule) rule()  {}
func (blankRule) rule()   {}
func (symRule) rule()     {}
func (strRule) rule()     {}
func (patternRule) rule() {}
func (tokenRule) rule()   {}
func (precRule) rule()    {}

func Seq(members ...Rule) Rule {
	return seqRule{members: members}
}

func Choice(members ...Rule) Rule {
	return choiceRule{members: members}
}

// Repeat matches zero or more occurrences of body.
func Repeat(body Rule) Rule {
	return repeatRule{body: body}
}

// Repeat1 matches one or more occurrences of body.
func Repeat1(body Rule) Rule {
	return repeatRule{body: body, atLeastOne: true}
}

func Optional(body Rule) Rule {
	return choiceRule{members: []Rule{body, blankRule{}}}
}

// Blank matches the empty string.
func Blank() Rule {
	return blankRule{}
}

// Sym refers to another rule by name.
func Sym(name string) Rule {
	return symRule{name: name}
}

// Str matches literal text. Outside a Token it becomes an anonymous token
// named after its text.
func Str(value string) Rule {
	return strRule{value: value}
}

// Pattern matches a regular expression in regexp/syntax Perl syntax.
// Anchors and word boundaries are not supported.
func Pattern(expr string) Rule {
	return patternRule{expr: expr}
}

// Token compiles a lexical composition of Str and Pattern rules into a
// single token.
func Token(body Rule) Rule {
	return tokenRule{body: body}
}

func Prec(value int, body Rule) Rule {
	return precRule{value: value, body: body}
}

func PrecLeft(value int, body Rule) Rule {
	return precRule{value: value, assoc: assocLeft, body: body}
}

func PrecRight(value int, body Rule) Rule {
	return precRule{value: value, assoc: assocRight, body: body}
}

// PrecDynamic adds value to the dynamic precedence of the productions of
// body, which decides between versions of an ambiguous parse.
func PrecDynamic(value int, body Rule) Rule {
	return precRule{value: value, dynamic: true, body: body}
}

func (r seqRule) String() string    { return "seq(" + joinRules(r.members) + ")" }
func (r choiceRule) String() string { return "choice(" + joinRules(r.members) + ")" }
func (r repeatRule) String() string {
	if r.atLeastOne {
		return "repeat1(" + r.body.String() + ")"
	}
	return "repeat(" + r.body.String() + ")"
}
func (blankRule) String() string     { return "blank()" }
func (r symRule) String() string     { return r.name }
func (r strRule) String() string     { return fmt.Sprintf("%q", r.value) }
func (r patternRule) String() string { return "/" + r.expr + "/" }
func (r tokenRule) String() string   { return "token(" + r.body.String() + ")" }
func (r precRule) String() string {
	name := "prec"
	switch {
	case r.dynamic:
		name = "prec.dynamic"
	case r.assoc == assocLeft:
		name = "prec.left"
	case r.assoc == assocRight:
		name = "prec.right"
	}
	return fmt.Sprintf("%s(%d, %s)", name, r.value, r.body)
}

func joinRules(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// lexical reports whether r can be compiled into a single token.
func lexical(r Rule) bool {
	switch r := r.(type) {
	case strRule, patternRule, tokenRule:
		return true
	case precRule:
		return !r.dynamic && lexical(r.body)
	}
	return false
}
