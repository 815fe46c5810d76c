package workspace

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/graft/syntax"
)

const lsName = "graft"

// LSPServer serves syntax diagnostics, folding ranges and document
// symbols for the documents of a Workspace over the language server
// protocol. Documents are synced incrementally.
type LSPServer struct {
	workspace *Workspace
	languages map[string]*syntax.Language
	handler   protocol.Handler
	server    *server.Server
	version   string
}

// NewLSPServer creates a server that parses files by extension with the
// given languages.
func NewLSPServer(version string, languages map[string]*syntax.Language) *LSPServer {
	ls := &LSPServer{
		version:   version,
		languages: languages,
	}

	ls.handler = protocol.Handler{
		Initialize:                 ls.initialize,
		Initialized:                ls.initialized,
		Shutdown:                   ls.shutdown,
		SetTrace:                   ls.setTrace,
		TextDocumentDidOpen:        ls.textDocumentDidOpen,
		TextDocumentDidChange:      ls.textDocumentDidChange,
		TextDocumentDidClose:       ls.textDocumentDidClose,
		TextDocumentDidSave:        ls.textDocumentDidSave,
		TextDocumentFoldingRange:   ls.textDocumentFoldingRange,
		TextDocumentDocumentSymbol: ls.textDocumentDocumentSymbol,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *LSPServer) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *LSPServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	rootDir := "."
	if params.RootPath != nil && *params.RootPath != "" {
		rootDir = *params.RootPath
	} else if params.RootURI != nil && *params.RootURI != "" {
		if path, err := uriToPath(*params.RootURI); err == nil {
			rootDir = path
		}
	}

	ls.workspace = New(rootDir)
	for ext, lang := range ls.languages {
		ls.workspace.Register(ext, lang)
	}

	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindIncremental),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *LSPServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (ls *LSPServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *LSPServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *LSPServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	doc, err := ls.workspace.Open(context.Background(), path, []byte(params.TextDocument.Text))
	if err != nil {
		log.Warningf("open %s: %s", path, err)
		return nil
	}
	ls.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (ls *LSPServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	var doc *Document
	for _, change := range params.ContentChanges {
		switch change := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			current, ok := ls.workspace.Document(path)
			if !ok || change.Range == nil {
				doc, err = ls.workspace.Update(context.Background(), path, []byte(change.Text))
				break
			}
			start := PositionToOffset(current.Text, change.Range.Start)
			end := PositionToOffset(current.Text, change.Range.End)
			doc, err = ls.workspace.ApplyChange(context.Background(), path, start, end, []byte(change.Text))
		case protocol.TextDocumentContentChangeEventWhole:
			doc, err = ls.workspace.Update(context.Background(), path, []byte(change.Text))
		}
		if err != nil {
			log.Warningf("change %s: %s", path, err)
			return nil
		}
	}
	if doc != nil {
		ls.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	}
	return nil
}

func (ls *LSPServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil
	}
	ls.workspace.Close(path)
	return nil
}

func (ls *LSPServer) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil || params.Text == nil {
		return nil
	}
	doc, err := ls.workspace.Update(context.Background(), path, []byte(*params.Text))
	if err != nil {
		log.Warningf("save %s: %s", path, err)
		return nil
	}
	ls.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (ls *LSPServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *Document) {
	severity := protocol.DiagnosticSeverityError
	source := lsName
	diagnostics := []protocol.Diagnostic{}
	for _, d := range doc.Diagnostics() {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    toProtocolRange(doc.Text, d.Range),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func (ls *LSPServer) textDocumentFoldingRange(ctx *glsp.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	doc, ok := ls.workspace.Document(path)
	if !ok {
		return nil, nil
	}
	return FoldingRanges(doc), nil
}

func (ls *LSPServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	doc, ok := ls.workspace.Document(path)
	if !ok {
		return nil, nil
	}
	return DocumentSymbols(doc), nil
}

// FoldingRanges returns one range for each named node spanning more than
// one line.
func FoldingRanges(doc *Document) []protocol.FoldingRange {
	var ranges []protocol.FoldingRange
	seen := make(map[uint32]bool)
	c := doc.Tree.Walk()
	for {
		n := c.CurrentNode()
		start, end := n.StartPoint(), n.EndPoint()
		if n.IsNamed() && end.Row > start.Row && !seen[start.Row] {
			seen[start.Row] = true
			ranges = append(ranges, protocol.FoldingRange{
				StartLine: start.Row,
				EndLine:   end.Row,
			})
		}
		if c.GotoFirstChild() || c.GotoNextSibling() {
			continue
		}
		for {
			if !c.GotoParent() {
				return ranges
			}
			if c.GotoNextSibling() {
				break
			}
		}
	}
}

// DocumentSymbols returns the named nodes of the document as a hierarchy.
func DocumentSymbols(doc *Document) []protocol.DocumentSymbol {
	var collect func(n syntax.Node) []protocol.DocumentSymbol
	collect = func(n syntax.Node) []protocol.DocumentSymbol {
		var symbols []protocol.DocumentSymbol
		for _, child := range n.NamedChildren() {
			if child.ChildCount() == 0 {
				continue
			}
			r := toProtocolRange(doc.Text, child.Range())
			symbols = append(symbols, protocol.DocumentSymbol{
				Name:           child.Kind(),
				Kind:           protocol.SymbolKindStruct,
				Range:          r,
				SelectionRange: r,
				Children:       collect(child),
			})
		}
		return symbols
	}
	return collect(doc.Tree.RootNode())
}

// PositionToOffset converts a protocol position, whose character counts
// UTF-16 code units, to a byte offset in text.
func PositionToOffset(text []byte, pos protocol.Position) uint32 {
	offset := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(string(text[offset:]), '\n')
		if i < 0 {
			return uint32(len(text))
		}
		offset += i + 1
	}
	for units := protocol.UInteger(0); units < pos.Character && offset < len(text); {
		r, size := utf8.DecodeRune(text[offset:])
		if r == '\n' {
			break
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += protocol.UInteger(n)
		offset += size
	}
	return uint32(offset)
}

// OffsetToPosition converts a byte offset in text to a protocol position.
func OffsetToPosition(text []byte, offset uint32) protocol.Position {
	if int(offset) > len(text) {
		offset = uint32(len(text))
	}
	var pos protocol.Position
	for i := 0; i < int(offset); {
		r, size := utf8.DecodeRune(text[i:])
		if r == '\n' {
			pos.Line++
			pos.Character = 0
		} else if n := utf16.RuneLen(r); n > 0 {
			pos.Character += protocol.UInteger(n)
		} else {
			pos.Character++
		}
		i += size
	}
	return pos
}

func toProtocolRange(text []byte, r syntax.Range) protocol.Range {
	return protocol.Range{
		Start: OffsetToPosition(text, r.StartByte),
		End:   OffsetToPosition(text, r.EndByte),
	}
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
