// Package workspace keeps a set of documents parsed and up to date as
// their text changes, reparsing incrementally and tracking which ranges of
// each document changed.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/graft/syntax"
)

var log = commonlog.GetLogger("graft.workspace")

var (
	ErrUnknownLanguage = errors.New("no language registered for file")
	ErrNotOpen         = errors.New("document not open")
)

// Document is an immutable snapshot of one file. Every change produces a
// new Document.
type Document struct {
	Path    string
	Text    []byte
	Tree    *syntax.Tree
	Version int
	// LastChanges holds the ranges whose syntax changed in the last update.
	LastChanges []syntax.Range
}

type Diagnostic struct {
	Range   syntax.Range
	Message string
}

// Diagnostics reports every ERROR node of the document.
func (d *Document) Diagnostics() []Diagnostic {
	if d.Tree == nil {
		return nil
	}
	var diags []Diagnostic
	var visit func(n syntax.Node)
	visit = func(n syntax.Node) {
		if !n.HasError() {
			return
		}
		if n.IsError() {
			msg := "syntax error"
			if text := strings.TrimSpace(n.Content(d.Text)); text != "" {
				if len(text) > 40 {
					text = text[:40] + "..."
				}
				msg = fmt.Sprintf("syntax error: unexpected %q", text)
			}
			diags = append(diags, Diagnostic{Range: n.Range(), Message: msg})
			return
		}
		for _, child := range n.Children() {
			visit(child)
		}
	}
	visit(d.Tree.RootNode())
	return diags
}

// entry is one open document. mu serializes its updates; doc is written
// while holding both mu and the workspace lock, so either suffices to read
// it.
type entry struct {
	mu     sync.Mutex
	parser *syntax.Parser
	doc    *Document
}

// Workspace maps paths to documents, parsing each with the language
// registered for its file extension. Documents are parsed by their own
// Parser, so different documents can be updated concurrently. Updates to
// the same document are applied one at a time.
type Workspace struct {
	mu        sync.RWMutex
	rootDir   string
	languages map[string]*syntax.Language
	docs      map[string]*entry
}

func New(rootDir string) *Workspace {
	return &Workspace{
		rootDir:   rootDir,
		languages: make(map[string]*syntax.Language),
		docs:      make(map[string]*entry),
	}
}

func (w *Workspace) RootDir() string {
	return w.rootDir
}

// Register associates a file extension such as ".json" with lang.
func (w *Workspace) Register(ext string, lang *syntax.Language) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.languages[ext] = lang
}

func (w *Workspace) LanguageFor(path string) (*syntax.Language, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	lang, ok := w.languages[filepath.Ext(path)]
	return lang, ok
}

// Extensions returns the registered file extensions.
func (w *Workspace) Extensions() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	exts := make([]string, 0, len(w.languages))
	for ext := range w.languages {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open parses text from scratch and makes it the document for path.
func (w *Workspace) Open(ctx context.Context, path string, text []byte) (*Document, error) {
	lang, ok := w.LanguageFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, path)
	}
	p := syntax.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		return nil, err
	}
	text = slices.Clone(text)
	tree, err := p.ParseBytes(ctx, text, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	doc := &Document{Path: path, Text: text, Tree: tree, Version: 1}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs[path] = &entry{parser: p, doc: doc}
	return doc, nil
}

// OpenFile reads path from disk and opens it.
func (w *Workspace) OpenFile(ctx context.Context, path string) (*Document, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return w.Open(ctx, path, text)
}

// Update replaces the document's text. The old tree is edited with the
// differences between the texts and reused for an incremental reparse.
// Documents that are not open yet are opened.
func (w *Workspace) Update(ctx context.Context, path string, text []byte) (*Document, error) {
	e, ok := w.entry(path)
	if !ok {
		return w.Open(ctx, path, text)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return w.reparse(ctx, e, slices.Clone(text), EditsBetween(e.doc.Text, text))
}

// ApplyChange replaces the bytes [start, end) of the document with text.
func (w *Workspace) ApplyChange(ctx context.Context, path string, start, end uint32, text []byte) (*Document, error) {
	e, ok := w.entry(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.doc.Text
	if start > end || int(end) > len(old) {
		return nil, fmt.Errorf("change [%d, %d) outside document of %d bytes", start, end, len(old))
	}
	next := make([]byte, 0, len(old)-int(end-start)+len(text))
	next = append(next, old[:start]...)
	next = append(next, text...)
	next = append(next, old[end:]...)

	startPoint := PointAt(old, start)
	edit := syntax.InputEdit{
		StartByte:   start,
		OldEndByte:  end,
		NewEndByte:  start + uint32(len(text)),
		StartPoint:  startPoint,
		OldEndPoint: PointAt(old, end),
		NewEndPoint: Advance(startPoint, string(text)),
	}
	return w.reparse(ctx, e, next, []syntax.InputEdit{edit})
}

// reparse must be called with e.mu held.
func (w *Workspace) reparse(ctx context.Context, e *entry, text []byte, edits []syntax.InputEdit) (*Document, error) {
	old := e.doc
	edited := old.Tree.Copy()
	for i := range edits {
		edited.Edit(&edits[i])
	}
	tree, err := e.parser.ParseBytes(ctx, text, edited)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", old.Path, err)
	}
	changes, err := edited.ChangedRanges(tree)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Path:        old.Path,
		Text:        text,
		Tree:        tree,
		Version:     old.Version + 1,
		LastChanges: changes,
	}
	log.Debugf("reparsed %s: %d edits, %d changed ranges", old.Path, len(edits), len(changes))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.docs[old.Path] == e {
		e.doc = doc
	}
	return doc, nil
}

func (w *Workspace) entry(path string) (*entry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.docs[path]
	return e, ok
}

func (w *Workspace) Document(path string) (*Document, bool) {
	e, ok := w.entry(path)
	if !ok {
		return nil, false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return e.doc, true
}

func (w *Workspace) Close(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, path)
}

// Paths returns the open documents' paths in order.
func (w *Workspace) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.docs))
	for path := range w.docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// ScanAll opens every file under the root directory with a registered
// extension. Files that fail to open are logged and skipped.
func (w *Workspace) ScanAll(ctx context.Context) error {
	return filepath.WalkDir(w.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := w.LanguageFor(path); !ok {
			return nil
		}
		if _, err := w.OpenFile(ctx, path); err != nil {
			log.Warningf("skipping %s: %s", path, err)
		}
		return ctx.Err()
	})
}
