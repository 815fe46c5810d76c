package grammar

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dhamidi/graft/syntax"
)

type compileOptions struct {
	start string
}

type CompileOption func(*compileOptions)

// WithStart selects the start rule instead of the first defined rule.
func WithStart(name string) CompileOption {
	return func(o *compileOptions) {
		o.start = name
	}
}

// Compile builds the parse tables and token program for g.
func Compile(g *Grammar, opts ...CompileOption) (*syntax.Language, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}
	f, err := flatten(g, o.start)
	if err != nil {
		return nil, err
	}

	b := newTableBuilder(f)
	b.build()
	states, err := b.tables()
	if err != nil {
		return nil, err
	}

	prog, tokens, err := lexProgram(f)
	if err != nil {
		return nil, err
	}
	modes := make(map[string]uint16)
	for id := range states {
		var set []uint32
		for sym := range states[id].Actions {
			if sym != syntax.SymbolEnd {
				set = append(set, tokens[int(sym)])
			}
		}
		slices.Sort(set)
		key := fmt.Sprint(set)
		mode, ok := modes[key]
		if !ok {
			mode = uint16(len(prog.Modes))
			modes[key] = mode
			prog.Modes = append(prog.Modes, set)
		}
		states[id].LexMode = mode
	}

	lang := &syntax.Language{
		Name:    g.Name,
		Version: syntax.LanguageVersion,
		Symbols: make([]syntax.SymbolInfo, len(f.symbols)),
		States:  states,
		Lexer:   prog,
	}
	for i, def := range f.symbols {
		lang.Symbols[i] = def.info
	}
	for _, extra := range f.extras {
		lang.ExtraSymbols = append(lang.ExtraSymbols, syntax.Symbol(extra))
	}
	if err := lang.Validate(); err != nil {
		return nil, fmt.Errorf("grammar %s: %w", g.Name, err)
	}
	return lang, nil
}

// MustCompile is like Compile but panics on error. It is meant for grammars
// that are fixed at build time.
func MustCompile(g *Grammar, opts ...CompileOption) *syntax.Language {
	lang, err := Compile(g, opts...)
	if err != nil {
		panic(err)
	}
	return lang
}

// Describe renders the productions of g, one per line, after choices and
// repetitions are expanded.
func Describe(g *Grammar, opts ...CompileOption) (string, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}
	f, err := flatten(g, o.start)
	if err != nil {
		return "", err
	}
	b := newTableBuilder(f)
	var sb strings.Builder
	for i := range f.productions {
		sb.WriteString(b.itemString(item{prod: i, dot: -1}))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
