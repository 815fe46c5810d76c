package syntax_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dhamidi/graft/grammars"
	"github.com/dhamidi/graft/syntax"
)

// fatalf is the part of testing.TB that rapid.T also provides.
type fatalf interface {
	Helper()
	Fatalf(format string, args ...any)
}

func mustLanguage(t fatalf, load func() (*syntax.Language, error)) *syntax.Language {
	t.Helper()
	lang, err := load()
	if err != nil {
		t.Fatalf("compile language: %v", err)
	}
	return lang
}

func mustParse(t fatalf, lang *syntax.Language, text string, old *syntax.Tree) *syntax.Tree {
	t.Helper()
	p := syntax.NewParser(syntax.WithLanguage(lang))
	tree, err := p.ParseString(context.Background(), text, old)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return tree
}

func TestParseSentence(t *testing.T) {
	lang := mustLanguage(t, grammars.Sentence)
	tests := []struct {
		input string
		want  string
	}{
		{"first-word second-word", "(sentence (word1) (word2))"},
		{"second-word second-word first-word", "(sentence (word2) (word2) (word1))"},
		{"", "(sentence)"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tree := mustParse(t, lang, tt.input, nil)
			if got := tree.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
			root := tree.RootNode()
			if root.StartByte() != 0 || root.EndByte() != uint32(len(tt.input)) {
				t.Errorf("root spans [%d, %d), want [0, %d)", root.StartByte(), root.EndByte(), len(tt.input))
			}
			if root.HasError() {
				t.Errorf("unexpected error in %s", tree)
			}
		})
	}
}

func TestParseArithmetic(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	tests := []struct {
		input string
		want  string
	}{
		{"abc + cde", "(program (sum (variable) (variable)))"},
		{"a * b + c", "(program (sum (product (variable) (variable)) (variable)))"},
		{"a + b * c", "(program (sum (variable) (product (variable) (variable))))"},
		{"1 + 2 + 3", "(program (sum (sum (number) (number)) (number)))"},
		{"a # note\n+ b", "(program (sum (variable) (comment) (variable)))"},
		{"  x  ", "(program (variable))"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tree := mustParse(t, lang, tt.input, nil)
			if got := tree.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
			root := tree.RootNode()
			if root.StartByte() != 0 || root.EndByte() != uint32(len(tt.input)) {
				t.Errorf("root spans [%d, %d), want [0, %d)", root.StartByte(), root.EndByte(), len(tt.input))
			}
		})
	}
}

func TestParseNodePositions(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	src := "ab +\n  cd"
	tree := mustParse(t, lang, src, nil)

	sum := tree.RootNode().NamedChild(0)
	if sum.Kind() != "sum" {
		t.Fatalf("first named child = %s, want sum", sum.Kind())
	}
	if sum.ChildCount() != 3 {
		t.Fatalf("sum has %d children, want 3", sum.ChildCount())
	}

	plus := sum.Child(1)
	if plus.Kind() != "+" || plus.IsNamed() {
		t.Errorf("middle child = %s (named %v), want anonymous +", plus.Kind(), plus.IsNamed())
	}

	cd := sum.Child(2)
	if got := cd.Content([]byte(src)); got != "cd" {
		t.Errorf("Content = %q, want cd", got)
	}
	if cd.StartByte() != 7 || cd.EndByte() != 9 {
		t.Errorf("cd spans [%d, %d), want [7, 9)", cd.StartByte(), cd.EndByte())
	}
	if cd.StartPoint() != (syntax.Point{Row: 1, Column: 2}) || cd.EndPoint() != (syntax.Point{Row: 1, Column: 4}) {
		t.Errorf("cd spans %s-%s, want 1:2-1:4", cd.StartPoint(), cd.EndPoint())
	}

	if parent := cd.Parent(); parent.ID() != sum.ID() {
		t.Errorf("Parent = %s, want sum", parent.Kind())
	}
	if prev := cd.PrevSibling(); prev.Kind() != "+" {
		t.Errorf("PrevSibling = %s, want +", prev.Kind())
	}
	if prev := cd.PrevNamedSibling(); prev.Content([]byte(src)) != "ab" {
		t.Errorf("PrevNamedSibling = %q, want ab", prev.Content([]byte(src)))
	}
	if next := cd.NextSibling(); !next.IsNull() {
		t.Errorf("NextSibling = %s, want null", next.Kind())
	}

	if got := tree.RootNode().DescendantForByteRange(7, 8); got.ID() != cd.ID() {
		t.Errorf("DescendantForByteRange(7, 8) = %s, want cd", got.Kind())
	}
	if got := tree.RootNode().DescendantForByteRange(3, 4); got.Kind() != "+" {
		t.Errorf("DescendantForByteRange(3, 4) = %s, want +", got.Kind())
	}
	if got := tree.RootNode().NamedDescendantForByteRange(3, 4); got.Kind() != "sum" {
		t.Errorf("NamedDescendantForByteRange(3, 4) = %s, want sum", got.Kind())
	}
}

func TestParseErrors(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	for _, input := range []string{"a + + b", "a $ b", "a +", "* b"} {
		t.Run(input, func(t *testing.T) {
			tree := mustParse(t, lang, input, nil)
			root := tree.RootNode()
			if !root.HasError() {
				t.Errorf("HasError() = false for %s", tree)
			}
			if root.EndByte() != uint32(len(input)) {
				t.Errorf("root ends at %d, want %d", root.EndByte(), len(input))
			}
		})
	}
}

func TestParseIncludedRanges(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	src := "`1 + a${c}b * 4`"
	ranges := []syntax.Range{
		{StartByte: 1, EndByte: 6, StartPoint: syntax.Point{Column: 1}, EndPoint: syntax.Point{Column: 6}},
		{StartByte: 10, EndByte: 15, StartPoint: syntax.Point{Column: 10}, EndPoint: syntax.Point{Column: 15}},
	}

	p := syntax.NewParser(syntax.WithLanguage(lang))
	if err := p.SetIncludedRanges(ranges); err != nil {
		t.Fatalf("SetIncludedRanges: %v", err)
	}
	tree, err := p.ParseString(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := "(program (sum (number) (product (variable) (number))))"
	if got := tree.String(); got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
	variable := tree.RootNode().DescendantForByteRange(5, 5)
	if variable.Kind() != "variable" {
		t.Fatalf("node at byte 5 = %s, want variable", variable.Kind())
	}
	if variable.StartByte() != 5 || variable.EndByte() != 11 {
		t.Errorf("variable spans [%d, %d), want [5, 11)", variable.StartByte(), variable.EndByte())
	}
	if got := tree.IncludedRanges(); len(got) != 2 || got[1] != ranges[1] {
		t.Errorf("IncludedRanges() = %v, want %v", got, ranges)
	}
}

func TestParserIncludedRangesValidation(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	p := syntax.NewParser(syntax.WithLanguage(lang))

	if got := p.IncludedRanges(); len(got) != 1 || got[0].StartByte != 0 || got[0].EndByte != ^uint32(0) {
		t.Errorf("default IncludedRanges() = %v, want one range over the whole input", got)
	}

	overlapping := []syntax.Range{{StartByte: 0, EndByte: 5}, {StartByte: 3, EndByte: 8}}
	err := p.SetIncludedRanges(overlapping)
	if !errors.Is(err, syntax.ErrInvalidRanges) {
		t.Fatalf("SetIncludedRanges = %v, want ErrInvalidRanges", err)
	}
	var rangesErr *syntax.IncludedRangesError
	if !errors.As(err, &rangesErr) || rangesErr.Index != 1 {
		t.Errorf("error = %v, want index 1", err)
	}

	beyond := []syntax.Range{{StartByte: 100, EndByte: 200, StartPoint: syntax.Point{Column: 100}, EndPoint: syntax.Point{Column: 200}}}
	if err := p.SetIncludedRanges(beyond); err != nil {
		t.Fatalf("SetIncludedRanges: %v", err)
	}
	if _, err := p.ParseString(context.Background(), "abc", nil); !errors.Is(err, syntax.ErrInvalidRanges) {
		t.Errorf("parse with a range past the input = %v, want ErrInvalidRanges", err)
	}
}

func TestParserInvalidConfiguration(t *testing.T) {
	ctx := context.Background()
	p := syntax.NewParser()

	if _, err := p.ParseString(ctx, "abc", nil); !errors.Is(err, syntax.ErrInvalidLanguage) {
		t.Errorf("parse without language = %v, want ErrInvalidLanguage", err)
	}
	if err := p.SetLanguage(&syntax.Language{}); !errors.Is(err, syntax.ErrInvalidLanguage) {
		t.Errorf("SetLanguage(empty) = %v, want ErrInvalidLanguage", err)
	}

	lang := mustLanguage(t, grammars.Arithmetic)
	if err := p.SetLanguage(lang); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if _, err := p.Parse(ctx, 42, nil); !errors.Is(err, syntax.ErrInvalidInput) {
		t.Errorf("parse of an int = %v, want ErrInvalidInput", err)
	}
	if _, err := p.ParseAsync(ctx, nil, nil); !errors.Is(err, syntax.ErrInvalidInput) {
		t.Errorf("ParseAsync(nil) = %v, want ErrInvalidInput", err)
	}

	if err := p.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if p.Language() != nil {
		t.Errorf("Language() after Reset = %v, want nil", p.Language())
	}
	if _, err := p.ParseString(ctx, "abc", nil); !errors.Is(err, syntax.ErrInvalidLanguage) {
		t.Errorf("parse after Reset = %v, want ErrInvalidLanguage", err)
	}
}

func TestParseFuncReadsSequentially(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	src := "abc + cde"

	var offsets []uint32
	read := func(offset uint32, position syntax.Point) []byte {
		offsets = append(offsets, offset)
		if position.Column != offset {
			t.Errorf("Read(%d) got position %s", offset, position)
		}
		if int(offset) >= len(src) {
			return nil
		}
		return []byte(src[offset : offset+1])
	}

	p := syntax.NewParser(syntax.WithLanguage(lang))
	tree, err := p.ParseFunc(context.Background(), read, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := tree.String(), "(program (sum (variable) (variable)))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	if len(offsets) != len(src)+1 {
		t.Fatalf("read called %d times, want %d", len(offsets), len(src)+1)
	}
	for i, off := range offsets {
		if off != uint32(i) {
			t.Errorf("read %d at offset %d, want %d", i, off, i)
		}
	}
}

func TestParseBuffer(t *testing.T) {
	lang := mustLanguage(t, grammars.JSON)
	p := syntax.NewParser(syntax.WithLanguage(lang))
	tree, err := p.ParseBuffer(context.Background(), strings.NewReader(`[1, 2]`), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := tree.String(), "(document (array (number) (number)))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

// gatedBuffer blocks reads until gate is closed.
type gatedBuffer struct {
	*strings.Reader
	gate chan struct{}
}

func (b *gatedBuffer) ReadAt(p []byte, off int64) (int, error) {
	<-b.gate
	return b.Reader.ReadAt(p, off)
}

func TestParseAsyncKeepsParserBusy(t *testing.T) {
	ctx := context.Background()
	lang := mustLanguage(t, grammars.Arithmetic)

	var events atomic.Int32
	logger := func(syntax.LogType, string) { events.Add(1) }
	var dot bytes.Buffer
	p := syntax.NewParser(syntax.WithLanguage(lang), syntax.WithLogger(logger))
	if err := p.PrintDotGraphs(&dot); err != nil {
		t.Fatalf("PrintDotGraphs: %v", err)
	}
	buf := &gatedBuffer{Reader: strings.NewReader("a * b"), gate: make(chan struct{})}

	future, err := p.ParseAsync(ctx, buf, nil)
	if err != nil {
		t.Fatalf("ParseAsync: %v", err)
	}
	if !p.Busy() {
		t.Error("Busy() = false during an async parse")
	}
	busy := map[string]error{
		"SetLanguage":       p.SetLanguage(lang),
		"SetLogger":         p.SetLogger(nil),
		"SetIncludedRanges": p.SetIncludedRanges(nil),
		"PrintDotGraphs":    p.PrintDotGraphs(nil),
		"Reset":             p.Reset(),
	}
	_, busy["ParseString"] = p.ParseString(ctx, "a", nil)
	_, busy["ParseAsync"] = p.ParseAsync(ctx, buf, nil)
	for name, err := range busy {
		if !errors.Is(err, syntax.ErrParserBusy) {
			t.Errorf("%s while busy = %v, want ErrParserBusy", name, err)
		}
	}

	close(buf.gate)
	tree, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got, want := tree.String(), "(program (product (variable) (variable)))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	<-future.Done()
	if p.Busy() {
		t.Error("Busy() = true after the parse finished")
	}
	if n := events.Load(); n != 0 {
		t.Errorf("logger received %d events during an async parse, want none", n)
	}
	if dot.Len() != 0 {
		t.Errorf("async parse wrote dot graphs:\n%s", dot.String())
	}
	if p.Language() != lang || p.Logger() == nil {
		t.Error("configuration changed while the parser was busy")
	}

	if _, err := p.ParseString(ctx, "a", nil); err != nil {
		t.Errorf("ParseString after async parse: %v", err)
	}
	if events.Load() == 0 {
		t.Error("logger received no events from a synchronous parse")
	}
	if dot.Len() == 0 {
		t.Error("synchronous parse wrote no dot graphs")
	}
	for name, set := range map[string]func() error{
		"SetLanguage":    func() error { return p.SetLanguage(lang) },
		"SetLogger":      func() error { return p.SetLogger(nil) },
		"PrintDotGraphs": func() error { return p.PrintDotGraphs(nil) },
		"Reset":          p.Reset,
	} {
		if err := set(); err != nil {
			t.Errorf("%s after async parse: %v", name, err)
		}
	}
}

func TestParseValidatesOptionLanguage(t *testing.T) {
	ctx := context.Background()
	p := syntax.NewParser(syntax.WithLanguage(&syntax.Language{}))

	_, err := p.ParseString(ctx, "abc", nil)
	if !errors.Is(err, syntax.ErrInvalidLanguage) {
		t.Errorf("parse with an invalid language = %v, want ErrInvalidLanguage", err)
	}
	var langErr *syntax.LanguageError
	if !errors.As(err, &langErr) {
		t.Errorf("error %v is not a *LanguageError", err)
	}
	buf := &gatedBuffer{Reader: strings.NewReader("abc"), gate: make(chan struct{})}
	if _, err := p.ParseAsync(ctx, buf, nil); !errors.Is(err, syntax.ErrInvalidLanguage) {
		t.Errorf("ParseAsync with an invalid language = %v, want ErrInvalidLanguage", err)
	}
	if p.Busy() {
		t.Error("Busy() = true after a rejected parse")
	}

	good := syntax.NewParser(syntax.WithLanguage(mustLanguage(t, grammars.Arithmetic)))
	for i := 0; i < 2; i++ {
		if _, err := good.ParseString(ctx, "a + b", nil); err != nil {
			t.Errorf("parse %d with a valid language: %v", i, err)
		}
	}
}

func TestParseCancelled(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	p := syntax.NewParser(syntax.WithLanguage(lang))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree, err := p.ParseString(ctx, "a + b", nil)
	if tree != nil {
		t.Errorf("tree = %s, want nil", tree)
	}
	if !errors.Is(err, syntax.ErrIncomplete) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrIncomplete wrapping context.Canceled", err)
	}
	if p.Busy() {
		t.Error("Busy() = true after a cancelled parse")
	}
}

func TestParseLogger(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	var parseEvents, lexEvents []string
	logger := func(typ syntax.LogType, message string) {
		if typ == syntax.LogTypeLex {
			lexEvents = append(lexEvents, message)
		} else {
			parseEvents = append(parseEvents, message)
		}
	}

	p := syntax.NewParser(syntax.WithLanguage(lang), syntax.WithLogger(logger))
	if _, err := p.ParseString(context.Background(), "a + b", nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(lexEvents) == 0 || !strings.HasPrefix(lexEvents[0], "lexed_lookahead") {
		t.Errorf("lex events = %q", lexEvents)
	}
	if len(parseEvents) == 0 {
		t.Fatal("no parse events logged")
	}
	if !strings.HasPrefix(parseEvents[0], "shift state:") {
		t.Errorf("first parse event = %q, want a shift", parseEvents[0])
	}
	if last := parseEvents[len(parseEvents)-1]; last != "done" {
		t.Errorf("last parse event = %q, want done", last)
	}
}

func TestParseLoggerPanicReportedOnce(t *testing.T) {
	lang := mustLanguage(t, grammars.Arithmetic)
	p := syntax.NewParser(syntax.WithLanguage(lang), syntax.WithLogger(func(syntax.LogType, string) {
		panic("boom")
	}))
	var faults []error
	syntax.SetFaultReporter(p, func(err error) { faults = append(faults, err) })

	tree, err := p.ParseString(context.Background(), "a + b", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := tree.String(), "(program (sum (variable) (variable)))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	if len(faults) != 1 {
		t.Fatalf("reported %d faults, want 1", len(faults))
	}
	var fault *syntax.LoggerFault
	if !errors.As(faults[0], &fault) || fault.Value != "boom" {
		t.Errorf("fault = %v, want LoggerFault(boom)", faults[0])
	}
}

func TestPrintDotGraphs(t *testing.T) {
	lang := mustLanguage(t, grammars.Sentence)
	p := syntax.NewParser(syntax.WithLanguage(lang))
	var buf bytes.Buffer
	if err := p.PrintDotGraphs(&buf); err != nil {
		t.Fatalf("PrintDotGraphs: %v", err)
	}
	if _, err := p.ParseString(context.Background(), "first-word", nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "digraph stack {") || !strings.Contains(out, "digraph tree {") {
		t.Errorf("dot output lacks stack or tree graphs:\n%s", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPrintDotGraphsWriteFailureKeepsTree(t *testing.T) {
	p := syntax.NewParser(syntax.WithLanguage(mustLanguage(t, grammars.Sentence)))
	if err := p.PrintDotGraphs(failingWriter{}); err != nil {
		t.Fatalf("PrintDotGraphs: %v", err)
	}
	tree, err := p.ParseString(context.Background(), "first-word", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := tree.String(), "(sentence (word1))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
