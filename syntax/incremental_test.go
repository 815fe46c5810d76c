package syntax_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dhamidi/graft/grammars"
	"github.com/dhamidi/graft/syntax"
)

// insertion describes inserting text at a byte offset of a single-line
// document.
func insertion(at, n uint32) *syntax.InputEdit {
	return &syntax.InputEdit{
		StartByte:   at,
		OldEndByte:  at,
		NewEndByte:  at + n,
		StartPoint:  syntax.Point{Column: at},
		OldEndPoint: syntax.Point{Column: at},
		NewEndPoint: syntax.Point{Column: at + n},
	}
}

// deletion describes removing [start, end) from a single-line document.
func deletion(start, end uint32) *syntax.InputEdit {
	return &syntax.InputEdit{
		StartByte:   start,
		OldEndByte:  end,
		NewEndByte:  start,
		StartPoint:  syntax.Point{Column: start},
		OldEndPoint: syntax.Point{Column: end},
		NewEndPoint: syntax.Point{Column: start},
	}
}

func TestReparseReusesUnchangedNodes(t *testing.T) {
	ctx := context.Background()
	lang := mustLanguage(t, grammars.Arithmetic)
	p := syntax.NewParser(syntax.WithLanguage(lang))

	old, err := p.ParseString(ctx, "abc + cde", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cde := old.RootNode().NamedChild(0).Child(2)
	if cde.StartByte() != 6 || cde.EndByte() != 9 {
		t.Fatalf("cde spans [%d, %d), want [6, 9)", cde.StartByte(), cde.EndByte())
	}

	old.Edit(insertion(1, 3))
	if shifted := old.RootNode().NamedChild(0).Child(2); shifted.StartByte() != 9 || shifted.EndByte() != 12 {
		t.Errorf("edited cde spans [%d, %d), want [9, 12)", shifted.StartByte(), shifted.EndByte())
	}

	tree, err := p.ParseString(ctx, "a * bc + cde", old)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if got, want := tree.String(), "(program (sum (product (variable) (variable)) (variable)))"; got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}

	reused := tree.RootNode().NamedChild(0).Child(2)
	if reused.ID() != cde.ID() {
		t.Error("cde was not reused")
	}
	if reused.StartByte() != 9 || reused.EndByte() != 12 {
		t.Errorf("reused cde spans [%d, %d), want [9, 12)", reused.StartByte(), reused.EndByte())
	}
	if reused.HasChanges() {
		t.Error("reused cde reports changes")
	}

	ranges, err := old.ChangedRanges(tree)
	if err != nil {
		t.Fatalf("ChangedRanges: %v", err)
	}
	if len(ranges) != 1 || ranges[0].StartByte != 0 || ranges[0].EndByte != 6 {
		t.Errorf("ChangedRanges = %v, want [0, 6)", ranges)
	}
}

func TestChangedRangesIgnoresWhitespace(t *testing.T) {
	ctx := context.Background()
	lang := mustLanguage(t, grammars.Arithmetic)
	p := syntax.NewParser(syntax.WithLanguage(lang))

	old, err := p.ParseString(ctx, "abc + cde", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	old.Edit(insertion(3, 1))
	tree, err := p.ParseString(ctx, "abc  + cde", old)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	ranges, err := old.ChangedRanges(tree)
	if err != nil {
		t.Fatalf("ChangedRanges: %v", err)
	}
	if len(ranges) != 0 {
		t.Errorf("ChangedRanges = %v, want none", ranges)
	}
}

func TestChangedRangesInvalidArguments(t *testing.T) {
	arithmetic := mustParse(t, mustLanguage(t, grammars.Arithmetic), "a", nil)
	sentence := mustParse(t, mustLanguage(t, grammars.Sentence), "first-word", nil)

	if _, err := arithmetic.ChangedRanges(nil); !errors.Is(err, syntax.ErrInvalidArgument) {
		t.Errorf("ChangedRanges(nil) = %v, want ErrInvalidArgument", err)
	}
	if _, err := arithmetic.ChangedRanges(sentence); !errors.Is(err, syntax.ErrInvalidArgument) {
		t.Errorf("ChangedRanges across languages = %v, want ErrInvalidArgument", err)
	}
}

func TestReparseWithOtherLanguageTree(t *testing.T) {
	ctx := context.Background()
	sentence := mustParse(t, mustLanguage(t, grammars.Sentence), "first-word", nil)

	var events []string
	p := syntax.NewParser(
		syntax.WithLanguage(mustLanguage(t, grammars.Arithmetic)),
		syntax.WithLogger(func(typ syntax.LogType, message string) {
			if typ == syntax.LogTypeParse {
				events = append(events, message)
			}
		}),
	)
	tree, err := p.ParseString(ctx, "a + b", sentence)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := tree.String(), "(program (sum (variable) (variable)))"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	if len(events) == 0 || events[0] != "cant_reuse_tree reason:language" {
		t.Errorf("first event = %v, want cant_reuse_tree", events)
	}
}

func TestReparseAfterDeletion(t *testing.T) {
	ctx := context.Background()
	lang := mustLanguage(t, grammars.Arithmetic)
	p := syntax.NewParser(syntax.WithLanguage(lang))

	old, err := p.ParseString(ctx, "a * b + c", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Delete "* b ".
	old.Edit(&syntax.InputEdit{
		StartByte:   2,
		OldEndByte:  6,
		NewEndByte:  2,
		StartPoint:  syntax.Point{Column: 2},
		OldEndPoint: syntax.Point{Column: 6},
		NewEndPoint: syntax.Point{Column: 2},
	})
	tree, err := p.ParseString(ctx, "a + c", old)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	fresh := mustParse(t, lang, "a + c", nil)
	if tree.String() != fresh.String() {
		t.Errorf("incremental %s, fresh %s", tree, fresh)
	}
	if tree.RootNode().EndByte() != 5 {
		t.Errorf("root ends at %d, want 5", tree.RootNode().EndByte())
	}
	ranges, err := old.ChangedRanges(tree)
	if err != nil {
		t.Fatalf("ChangedRanges: %v", err)
	}
	if len(ranges) == 0 {
		t.Error("deleting a product reported no changes")
	}
}

func TestChangedRangesReportDeletedNodes(t *testing.T) {
	tests := []struct {
		name       string
		load       func() (*syntax.Language, error)
		old, new   string
		start, end uint32
		want       [2]uint32
	}{
		{"first element", grammars.JSON, `[12, "s"]`, `["s"]`, 1, 5, [2]uint32{0, 4}},
		{"only element", grammars.JSON, `[12]`, `[]`, 1, 3, [2]uint32{0, 2}},
		{"nested element", grammars.JSON, `[["s"]]`, `[[]]`, 2, 5, [2]uint32{1, 3}},
		{"whole document", grammars.Sentence, "first-word", "", 0, 10, [2]uint32{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang := mustLanguage(t, tt.load)
			p := syntax.NewParser(syntax.WithLanguage(lang))
			old, err := p.ParseString(context.Background(), tt.old, nil)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			old.Edit(deletion(tt.start, tt.end))
			tree, err := p.ParseString(context.Background(), tt.new, old)
			if err != nil {
				t.Fatalf("reparse: %v", err)
			}
			if fresh := mustParse(t, lang, tt.new, nil); tree.String() != fresh.String() {
				t.Fatalf("incremental %s, fresh %s", tree, fresh)
			}

			ranges, err := old.ChangedRanges(tree)
			if err != nil {
				t.Fatalf("ChangedRanges: %v", err)
			}
			if len(ranges) != 1 || ranges[0].StartByte != tt.want[0] || ranges[0].EndByte != tt.want[1] {
				t.Errorf("ChangedRanges = %v, want [%d, %d)", ranges, tt.want[0], tt.want[1])
			}
		})
	}
}
