// Package grammars holds the built-in languages.
package grammars

import (
	"sort"
	"sync"

	"github.com/dhamidi/graft/grammar"
	"github.com/dhamidi/graft/syntax"
)

var (
	sentence   = sync.OnceValues(func() (*syntax.Language, error) { return grammar.Compile(SentenceGrammar()) })
	arithmetic = sync.OnceValues(func() (*syntax.Language, error) { return grammar.Compile(ArithmeticGrammar()) })
	json       = sync.OnceValues(func() (*syntax.Language, error) { return grammar.Compile(JSONGrammar()) })
)

// SentenceGrammar is a sequence of the words "first-word" and
// "second-word".
func SentenceGrammar() *grammar.Grammar {
	return grammar.New("sentence").
		Define("sentence", grammar.Repeat(grammar.Choice(grammar.Sym("word1"), grammar.Sym("word2")))).
		Define("word1", grammar.Str("first-word")).
		Define("word2", grammar.Str("second-word"))
}

// ArithmeticGrammar has sums and products over variables and numbers,
// with products binding tighter, and #-comments.
func ArithmeticGrammar() *grammar.Grammar {
	return grammar.New("arithmetic").
		Define("program", grammar.Sym("_expression")).
		Define("_expression", grammar.Choice(grammar.Sym("sum"), grammar.Sym("_term"))).
		Define("sum", grammar.Seq(grammar.Sym("_expression"), grammar.Str("+"), grammar.Sym("_term"))).
		Define("_term", grammar.Choice(grammar.Sym("product"), grammar.Sym("_factor"))).
		Define("product", grammar.Seq(grammar.Sym("_term"), grammar.Str("*"), grammar.Sym("_factor"))).
		Define("_factor", grammar.Choice(grammar.Sym("variable"), grammar.Sym("number"))).
		Define("variable", grammar.Pattern(`[a-z]+`)).
		Define("number", grammar.Pattern(`\d+`)).
		Define("comment", grammar.Pattern(`#[^\n]*`)).
		Extras(grammar.Pattern(`\s`), grammar.Sym("comment"))
}

func JSONGrammar() *grammar.Grammar {
	commaSeparated := func(r grammar.Rule) grammar.Rule {
		return grammar.Optional(grammar.Seq(r, grammar.Repeat(grammar.Seq(grammar.Str(","), r))))
	}
	return grammar.New("json").
		Define("document", grammar.Sym("_value")).
		Define("_value", grammar.Choice(
			grammar.Sym("object"),
			grammar.Sym("array"),
			grammar.Sym("string"),
			grammar.Sym("number"),
			grammar.Sym("true"),
			grammar.Sym("false"),
			grammar.Sym("null"),
		)).
		Define("object", grammar.Seq(grammar.Str("{"), commaSeparated(grammar.Sym("pair")), grammar.Str("}"))).
		Define("pair", grammar.Seq(grammar.Sym("string"), grammar.Str(":"), grammar.Sym("_value"))).
		Define("array", grammar.Seq(grammar.Str("["), commaSeparated(grammar.Sym("_value")), grammar.Str("]"))).
		Define("string", grammar.Token(grammar.Seq(
			grammar.Str(`"`),
			grammar.Repeat(grammar.Choice(grammar.Pattern(`[^"\\\n]+`), grammar.Pattern(`\\.`))),
			grammar.Str(`"`),
		))).
		Define("number", grammar.Pattern(`-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?`)).
		Define("true", grammar.Str("true")).
		Define("false", grammar.Str("false")).
		Define("null", grammar.Str("null"))
}

func Sentence() (*syntax.Language, error) {
	return sentence()
}

func Arithmetic() (*syntax.Language, error) {
	return arithmetic()
}

func JSON() (*syntax.Language, error) {
	return json()
}

var builtins = map[string]func() (*syntax.Language, error){
	"sentence":   Sentence,
	"arithmetic": Arithmetic,
	"json":       JSON,
}

// Lookup returns the built-in language with the given name.
func Lookup(name string) (func() (*syntax.Language, error), bool) {
	load, ok := builtins[name]
	return load, ok
}

// Names lists the built-in languages.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
