package grammar

import (
	"fmt"
	"io"
	"os"
	"sort"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"
)

// EBNFOptions controls how an EBNF grammar maps onto rules.
type EBNFOptions struct {
	// Start is the start production. It is required.
	Start string
	// Extras names lexical productions, such as comments, that may appear
	// between any two tokens and are kept in the tree.
	Extras []string
	// Skip names lexical productions consumed as separators. When empty,
	// whitespace is skipped.
	Skip []string
}

// verifyRoot is the synthetic production that makes extras and skips
// reachable for ebnf.Verify.
const verifyRoot = "Graft·root"

// FromEBNF reads a grammar in the notation of golang.org/x/exp/ebnf.
// Productions whose names start with an upper-case letter are syntax rules,
// where whitespace may separate tokens. All other productions are lexical.
// Lexical productions referenced from syntax rules become named tokens;
// the rest are inlined into the tokens that use them.
func FromEBNF(name string, r io.Reader, opts EBNFOptions) (*Grammar, error) {
	if opts.Start == "" {
		return nil, &GrammarError{Reason: "EBNF start production is required"}
	}
	prods, err := ebnf.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parse grammar: %w", err)
	}
	if err := verify(prods, opts); err != nil {
		return nil, fmt.Errorf("verify grammar: %w", err)
	}

	c := &ebnfConverter{prods: prods, visiting: make(map[string]bool)}
	tokens := make(map[string]bool)
	for prodName, prod := range prods {
		if lexicalName(prodName) {
			continue
		}
		c.collectTokens(prod.Expr, tokens)
	}
	for _, extra := range opts.Extras {
		tokens[extra] = true
	}

	g := New(name)
	names := []string{opts.Start}
	for prodName := range prods {
		if prodName != opts.Start {
			names = append(names, prodName)
		}
	}
	sort.Strings(names[1:])
	for _, prodName := range names {
		prod := prods[prodName]
		switch {
		case !lexicalName(prodName):
			body, err := c.syntactic(prod.Expr)
			if err != nil {
				return nil, &GrammarError{Rule: prodName, Reason: err.Error()}
			}
			g.Define(prodName, body)
		case tokens[prodName]:
			body, err := c.lexical(prod.Expr)
			if err != nil {
				return nil, &GrammarError{Rule: prodName, Reason: err.Error()}
			}
			g.Define(prodName, Token(body))
		}
	}

	var extras []Rule
	for _, skip := range opts.Skip {
		body, err := c.lexical(&ebnf.Name{String: skip})
		if err != nil {
			return nil, &GrammarError{Rule: skip, Reason: err.Error()}
		}
		extras = append(extras, Token(body))
	}
	if len(opts.Skip) == 0 {
		extras = append(extras, Pattern(`\s`))
	}
	for _, extra := range opts.Extras {
		extras = append(extras, Sym(extra))
	}
	g.Extras(extras...)
	return g, nil
}

// LoadEBNF reads an EBNF grammar from a file.
func LoadEBNF(filename string, opts EBNFOptions) (*Grammar, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()
	return FromEBNF(filename, f, opts)
}

// verify runs ebnf.Verify from a synthetic root that also reaches the extra
// and skip productions, which the start production does not refer to.
func verify(prods ebnf.Grammar, opts EBNFOptions) error {
	for _, n := range append(append([]string(nil), opts.Extras...), opts.Skip...) {
		if !lexicalName(n) {
			return fmt.Errorf("%s: extras and skips must be lexical productions", n)
		}
	}
	root := ebnf.Sequence{&ebnf.Name{String: opts.Start}}
	for _, n := range append(append([]string(nil), opts.Extras...), opts.Skip...) {
		root = append(root, &ebnf.Name{String: n})
	}
	withRoot := make(ebnf.Grammar, len(prods)+1)
	for n, p := range prods {
		withRoot[n] = p
	}
	withRoot[verifyRoot] = &ebnf.Production{Name: &ebnf.Name{String: verifyRoot}, Expr: root}
	return ebnf.Verify(withRoot, verifyRoot)
}

func lexicalName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return !unicode.IsUpper(r)
}

type ebnfConverter struct {
	prods    ebnf.Grammar
	visiting map[string]bool
}

// collectTokens records the lexical productions a syntax rule refers to.
func (c *ebnfConverter) collectTokens(expr ebnf.Expression, tokens map[string]bool) {
	switch e := expr.(type) {
	case *ebnf.Name:
		if lexicalName(e.String) {
			tokens[e.String] = true
		}
	case ebnf.Sequence:
		for _, item := range e {
			c.collectTokens(item, tokens)
		}
	case ebnf.Alternative:
		for _, item := range e {
			c.collectTokens(item, tokens)
		}
	case *ebnf.Group:
		c.collectTokens(e.Body, tokens)
	case *ebnf.Option:
		c.collectTokens(e.Body, tokens)
	case *ebnf.Repetition:
		c.collectTokens(e.Body, tokens)
	}
}

func (c *ebnfConverter) syntactic(expr ebnf.Expression) (Rule, error) {
	switch e := expr.(type) {
	case nil:
		return Blank(), nil
	case *ebnf.Name:
		return Sym(e.String), nil
	case *ebnf.Token:
		return Str(e.String), nil
	case *ebnf.Range:
		return rangePattern(e)
	case ebnf.Sequence:
		members, err := c.each(e, c.syntactic)
		if err != nil {
			return nil, err
		}
		return Seq(members...), nil
	case ebnf.Alternative:
		members, err := c.each(e, c.syntactic)
		if err != nil {
			return nil, err
		}
		return Choice(members...), nil
	case *ebnf.Group:
		return c.syntactic(e.Body)
	case *ebnf.Option:
		body, err := c.syntactic(e.Body)
		if err != nil {
			return nil, err
		}
		return Optional(body), nil
	case *ebnf.Repetition:
		body, err := c.syntactic(e.Body)
		if err != nil {
			return nil, err
		}
		return Repeat(body), nil
	}
	return nil, fmt.Errorf("unsupported expression %T", expr)
}

// lexical converts a lexical expression, inlining the lexical productions
// it refers to.
func (c *ebnfConverter) lexical(expr ebnf.Expression) (Rule, error) {
	switch e := expr.(type) {
	case nil:
		return Blank(), nil
	case *ebnf.Name:
		prod, ok := c.prods[e.String]
		if !ok {
			return nil, fmt.Errorf("undefined production %s", e.String)
		}
		if !lexicalName(e.String) {
			return nil, fmt.Errorf("lexical production refers to syntax rule %s", e.String)
		}
		if c.visiting[e.String] {
			return nil, fmt.Errorf("lexical production %s is recursive", e.String)
		}
		c.visiting[e.String] = true
		defer delete(c.visiting, e.String)
		return c.lexical(prod.Expr)
	case *ebnf.Token:
		return Str(e.String), nil
	case *ebnf.Range:
		return rangePattern(e)
	case ebnf.Sequence:
		members, err := c.each(e, c.lexical)
		if err != nil {
			return nil, err
		}
		return Seq(members...), nil
	case ebnf.Alternative:
		members, err := c.each(e, c.lexical)
		if err != nil {
			return nil, err
		}
		return Choice(members...), nil
	case *ebnf.Group:
		return c.lexical(e.Body)
	case *ebnf.Option:
		body, err := c.lexical(e.Body)
		if err != nil {
			return nil, err
		}
		return Optional(body), nil
	case *ebnf.Repetition:
		body, err := c.lexical(e.Body)
		if err != nil {
			return nil, err
		}
		return Repeat(body), nil
	}
	return nil, fmt.Errorf("unsupported expression %T", expr)
}

func (c *ebnfConverter) each(exprs []ebnf.Expression, convert func(ebnf.Expression) (Rule, error)) ([]Rule, error) {
	rules := make([]Rule, 0, len(exprs))
	for _, expr := range exprs {
		r, err := convert(expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func rangePattern(e *ebnf.Range) (Rule, error) {
	lo, n := utf8.DecodeRuneInString(e.Begin.String)
	hi, m := utf8.DecodeRuneInString(e.End.String)
	if n != len(e.Begin.String) || m != len(e.End.String) || n == 0 || m == 0 {
		return nil, fmt.Errorf("range %q … %q must span single characters", e.Begin.String, e.End.String)
	}
	return Pattern(fmt.Sprintf(`[\x{%x}-\x{%x}]`, lo, hi)), nil
}
