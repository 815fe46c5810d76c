package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/graft/grammars"
	"github.com/dhamidi/graft/syntax"
)

func newWorkspace(t *testing.T, dir string) *Workspace {
	t.Helper()
	arithmetic, err := grammars.Arithmetic()
	require.NoError(t, err)
	json, err := grammars.JSON()
	require.NoError(t, err)

	ws := New(dir)
	ws.Register(".calc", arithmetic)
	ws.Register(".json", json)
	return ws
}

func TestEditsBetween(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     []syntax.InputEdit
	}{
		{
			name: "insertion",
			old:  "abc + cde",
			new:  "a * bc + cde",
			want: []syntax.InputEdit{{
				StartByte: 1, OldEndByte: 1, NewEndByte: 4,
				StartPoint: syntax.Point{Column: 1}, OldEndPoint: syntax.Point{Column: 1}, NewEndPoint: syntax.Point{Column: 4},
			}},
		},
		{
			name: "deletion",
			old:  "a * b + c",
			new:  "a + c",
			want: []syntax.InputEdit{{
				StartByte: 2, OldEndByte: 6, NewEndByte: 2,
				StartPoint: syntax.Point{Column: 2}, OldEndPoint: syntax.Point{Column: 6}, NewEndPoint: syntax.Point{Column: 2},
			}},
		},
		{
			name: "replacement",
			old:  "abc",
			new:  "axc",
			want: []syntax.InputEdit{{
				StartByte: 1, OldEndByte: 2, NewEndByte: 2,
				StartPoint: syntax.Point{Column: 1}, OldEndPoint: syntax.Point{Column: 2}, NewEndPoint: syntax.Point{Column: 2},
			}},
		},
		{
			name: "second line",
			old:  "a\nb",
			new:  "a\nxb",
			want: []syntax.InputEdit{{
				StartByte: 2, OldEndByte: 2, NewEndByte: 3,
				StartPoint: syntax.Point{Row: 1}, OldEndPoint: syntax.Point{Row: 1}, NewEndPoint: syntax.Point{Row: 1, Column: 1},
			}},
		},
		{
			name: "identical",
			old:  "same",
			new:  "same",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EditsBetween([]byte(tt.old), []byte(tt.new)))
		})
	}
}

func TestEditsBetweenReparse(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	old := "a + b * c\n# sum\n+ d"
	next := "a + bb * c\n+ dd * e"

	_, err := ws.Open(t.Context(), "x.calc", []byte(old))
	require.NoError(t, err)
	doc, err := ws.Update(t.Context(), "x.calc", []byte(next))
	require.NoError(t, err)

	fresh, err := ws.Open(t.Context(), "fresh.calc", []byte(next))
	require.NoError(t, err)
	assert.Equal(t, fresh.Tree.String(), doc.Tree.String())
	assert.Equal(t, uint32(len(next)), doc.Tree.RootNode().EndByte())
	assert.NotEmpty(t, doc.LastChanges)
}

func TestPointAt(t *testing.T) {
	text := []byte("ab\n\ncd")
	tests := []struct {
		offset uint32
		want   syntax.Point
	}{
		{0, syntax.Point{}},
		{2, syntax.Point{Column: 2}},
		{3, syntax.Point{Row: 1}},
		{4, syntax.Point{Row: 2}},
		{6, syntax.Point{Row: 2, Column: 2}},
		{99, syntax.Point{Row: 2, Column: 2}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PointAt(text, tt.offset), "offset %d", tt.offset)
	}

	assert.Equal(t, syntax.Point{Row: 4, Column: 1}, Advance(syntax.Point{Row: 3, Column: 7}, "xy\nz"))
}

func TestOpenAndUpdate(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	ctx := t.Context()

	doc, err := ws.Open(ctx, "doc.calc", []byte("abc + cde"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "(program (sum (variable) (variable)))", doc.Tree.String())
	assert.Empty(t, doc.LastChanges)

	doc, err = ws.ApplyChange(ctx, "doc.calc", 1, 1, []byte(" * "))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, "a * bc + cde", string(doc.Text))
	assert.Equal(t, "(program (sum (product (variable) (variable)) (variable)))", doc.Tree.String())
	require.Len(t, doc.LastChanges, 1)
	assert.Equal(t, uint32(0), doc.LastChanges[0].StartByte)
	assert.Equal(t, uint32(6), doc.LastChanges[0].EndByte)

	doc, err = ws.Update(ctx, "doc.calc", []byte("a * bc  + cde"))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Version)
	assert.Empty(t, doc.LastChanges)

	latest, ok := ws.Document("doc.calc")
	require.True(t, ok)
	assert.Same(t, doc, latest)
}

func TestConcurrentUpdatesToOneDocument(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	ctx := t.Context()
	_, err := ws.Open(ctx, "doc.calc", []byte("y"))
	require.NoError(t, err)

	const writers = 16
	var g errgroup.Group
	for range writers {
		g.Go(func() error {
			_, err := ws.ApplyChange(ctx, "doc.calc", 0, 0, []byte("x + "))
			return err
		})
		g.Go(func() error {
			if _, ok := ws.Document("doc.calc"); !ok {
				return errors.New("document vanished during updates")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	doc, ok := ws.Document("doc.calc")
	require.True(t, ok)
	assert.Equal(t, writers+1, doc.Version)
	assert.Equal(t, strings.Repeat("x + ", writers)+"y", string(doc.Text))
	assert.False(t, doc.Tree.RootNode().HasError())

	fresh, err := ws.Open(ctx, "fresh.calc", doc.Text)
	require.NoError(t, err)
	assert.Equal(t, fresh.Tree.String(), doc.Tree.String())
}

func TestOpenClonesText(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	text := []byte("a + b")
	doc, err := ws.Open(t.Context(), "doc.calc", text)
	require.NoError(t, err)

	text[0] = 'z'
	assert.Equal(t, "a + b", string(doc.Text))
}

func TestUpdateOpensMissingDocument(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	doc, err := ws.Update(t.Context(), "new.json", []byte(`[true]`))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "(document (array (true)))", doc.Tree.String())
}

func TestWorkspaceErrors(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	ctx := t.Context()

	_, err := ws.Open(ctx, "notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	_, err = ws.ApplyChange(ctx, "missing.calc", 0, 0, []byte("x"))
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = ws.Open(ctx, "doc.calc", []byte("a"))
	require.NoError(t, err)
	_, err = ws.ApplyChange(ctx, "doc.calc", 0, 5, nil)
	assert.Error(t, err)
	_, err = ws.ApplyChange(ctx, "doc.calc", 1, 0, nil)
	assert.Error(t, err)

	_, err = ws.OpenFile(ctx, filepath.Join(t.TempDir(), "absent.calc"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiagnostics(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())

	doc, err := ws.Open(t.Context(), "ok.calc", []byte("a + b"))
	require.NoError(t, err)
	assert.Empty(t, doc.Diagnostics())

	doc, err = ws.Open(t.Context(), "bad.calc", []byte("a + + b"))
	require.NoError(t, err)
	diags := doc.Diagnostics()
	require.NotEmpty(t, diags)
	for _, d := range diags {
		assert.True(t, strings.HasPrefix(d.Message, "syntax error"), d.Message)
		assert.LessOrEqual(t, d.Range.EndByte, uint32(len(doc.Text)))
	}

	assert.Empty(t, (&Document{}).Diagnostics())
}

func TestRegistry(t *testing.T) {
	ws := newWorkspace(t, "root")
	assert.Equal(t, "root", ws.RootDir())
	assert.Equal(t, []string{".calc", ".json"}, ws.Extensions())

	_, ok := ws.LanguageFor("dir/file.json")
	assert.True(t, ok)
	_, ok = ws.LanguageFor("dir/file.yaml")
	assert.False(t, ok)
}

func TestPathsAndClose(t *testing.T) {
	ws := newWorkspace(t, t.TempDir())
	for _, path := range []string{"b.calc", "a.calc", "c.json"} {
		_, err := ws.Open(t.Context(), path, []byte("1"))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a.calc", "b.calc", "c.json"}, ws.Paths())

	ws.Close("b.calc")
	assert.Equal(t, []string{"a.calc", "c.json"}, ws.Paths())
	_, ok := ws.Document("b.calc")
	assert.False(t, ok)
}

func TestScanAll(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	write("a.calc", "a + b")
	write("nested/b.json", `{"k": 1}`)
	write(".hidden/c.calc", "c")
	write("notes.txt", "not parsed")

	ws := newWorkspace(t, dir)
	require.NoError(t, ws.ScanAll(t.Context()))
	assert.Equal(t, []string{
		filepath.Join(dir, "a.calc"),
		filepath.Join(dir, "nested", "b.json"),
	}, ws.Paths())

	doc, ok := ws.Document(filepath.Join(dir, "nested", "b.json"))
	require.True(t, ok)
	assert.Equal(t, "(document (object (pair (string) (number))))", doc.Tree.String())
}
