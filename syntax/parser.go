package syntax

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync/atomic"
)

const (
	parserIdle uint32 = iota
	parserParsing
)

// cancelCheckInterval is the number of parse steps between context checks.
const cancelCheckInterval = 64

// fullRange covers every byte of any input.
var fullRange = Range{
	EndByte:  math.MaxUint32,
	EndPoint: Point{Row: math.MaxUint32, Column: math.MaxUint32},
}

type Option func(*Parser)

func WithLanguage(lang *Language) Option {
	return func(p *Parser) {
		p.language = lang
	}
}

func WithLogger(logger Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

func WithIncludedRanges(ranges ...Range) Option {
	return func(p *Parser) {
		p.includedRanges = append([]Range(nil), ranges...)
	}
}

// Parser turns source text into a Tree using a Language's tables. A Parser
// runs one parse at a time; while it is busy every method that would change
// it fails with ErrParserBusy. Separate Parsers may run concurrently.
type Parser struct {
	state atomic.Uint32

	language       *Language
	validated      *Language
	logger         Logger
	includedRanges []Range
	dotGraphs      io.Writer

	// reportFault receives a panicking logger's fault.
	reportFault func(error)
}

// NewParser creates a parser. Options are applied without validation;
// Parse reports a missing or invalid language.
func NewParser(opts ...Option) *Parser {
	p := &Parser{reportFault: reportToLog}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) acquire() bool {
	return p.state.CompareAndSwap(parserIdle, parserParsing)
}

func (p *Parser) release() {
	p.state.Store(parserIdle)
}

// Busy reports whether a parse is in progress.
func (p *Parser) Busy() bool {
	return p.state.Load() == parserParsing
}

func (p *Parser) Language() *Language {
	return p.language
}

// SetLanguage validates lang and makes it the language for later parses.
func (p *Parser) SetLanguage(lang *Language) error {
	if !p.acquire() {
		return ErrParserBusy
	}
	defer p.release()
	if err := lang.Validate(); err != nil {
		return err
	}
	p.language = lang
	p.validated = lang
	return nil
}

func (p *Parser) Logger() Logger {
	return p.logger
}

// SetLogger installs logger for later synchronous parses; nil disables
// logging.
func (p *Parser) SetLogger(logger Logger) error {
	if !p.acquire() {
		return ErrParserBusy
	}
	defer p.release()
	p.logger = logger
	return nil
}

// SetIncludedRanges restricts parsing to the given ranges, which must be
// ordered and must not overlap. An empty list means the whole input.
func (p *Parser) SetIncludedRanges(ranges []Range) error {
	if !p.acquire() {
		return ErrParserBusy
	}
	defer p.release()
	if err := validateRanges(ranges); err != nil {
		return err
	}
	p.includedRanges = append([]Range(nil), ranges...)
	return nil
}

// IncludedRanges returns the configured ranges. The whole input is
// reported as a single range.
func (p *Parser) IncludedRanges() []Range {
	if len(p.includedRanges) == 0 {
		return []Range{fullRange}
	}
	return append([]Range(nil), p.includedRanges...)
}

func validateRanges(ranges []Range) error {
	for i, r := range ranges {
		if r.EndByte < r.StartByte || r.EndPoint.Less(r.StartPoint) {
			return &IncludedRangesError{Index: i, Reason: "ends before it starts"}
		}
		if i == 0 {
			continue
		}
		prev := ranges[i-1]
		if r.StartByte < prev.EndByte || r.StartPoint.Less(prev.EndPoint) {
			return &IncludedRangesError{Index: i, Reason: fmt.Sprintf("overlaps or precedes range %d", i-1)}
		}
	}
	return nil
}

// PrintDotGraphs writes a Graphviz graph of the parse stack after every
// step of later synchronous parses, followed by the resulting tree. A nil
// writer turns the output off.
func (p *Parser) PrintDotGraphs(w io.Writer) error {
	if !p.acquire() {
		return ErrParserBusy
	}
	defer p.release()
	p.dotGraphs = w
	return nil
}

// Reset restores the default configuration.
func (p *Parser) Reset() error {
	if !p.acquire() {
		return ErrParserBusy
	}
	defer p.release()
	p.language = nil
	p.validated = nil
	p.logger = nil
	p.includedRanges = nil
	p.dotGraphs = nil
	return nil
}

// Parse parses source, which may be a string, a []byte, a ReadFunc, a
// TextBuffer or an Input. When old is non-nil it must have been edited to
// match the new text; unchanged parts of it are reused.
func (p *Parser) Parse(ctx context.Context, source any, old *Tree) (*Tree, error) {
	if !p.acquire() {
		return nil, ErrParserBusy
	}
	defer p.release()
	cfg, err := p.prepare(source)
	if err != nil {
		return nil, err
	}
	cfg.logger = p.logger
	cfg.dotGraphs = p.dotGraphs
	return cfg.run(ctx, old)
}

func (p *Parser) ParseString(ctx context.Context, text string, old *Tree) (*Tree, error) {
	return p.Parse(ctx, text, old)
}

func (p *Parser) ParseBytes(ctx context.Context, text []byte, old *Tree) (*Tree, error) {
	return p.Parse(ctx, text, old)
}

func (p *Parser) ParseFunc(ctx context.Context, read ReadFunc, old *Tree) (*Tree, error) {
	return p.Parse(ctx, read, old)
}

func (p *Parser) ParseBuffer(ctx context.Context, buf TextBuffer, old *Tree) (*Tree, error) {
	return p.Parse(ctx, buf, old)
}

// ParseFuture is the pending result of ParseAsync.
type ParseFuture struct {
	done chan struct{}
	tree *Tree
	err  error
}

// Done is closed once the parse has finished and the parser is idle again.
func (f *ParseFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the parse finishes or ctx is done. Giving up on the
// wait does not cancel the parse; cancel the context passed to ParseAsync
// for that.
func (f *ParseFuture) Wait(ctx context.Context) (*Tree, error) {
	select {
	case <-f.done:
		return f.tree, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ParseAsync parses buf on a new goroutine. The parser stays busy until the
// future completes. Logging and dot graphs are disabled for async parses.
func (p *Parser) ParseAsync(ctx context.Context, buf TextBuffer, old *Tree) (*ParseFuture, error) {
	if !p.acquire() {
		return nil, ErrParserBusy
	}
	if buf == nil {
		p.release()
		return nil, ErrInvalidInput
	}
	cfg, err := p.prepare(buf)
	if err != nil {
		p.release()
		return nil, err
	}
	f := &ParseFuture{done: make(chan struct{})}
	go func() {
		f.tree, f.err = cfg.run(ctx, old)
		p.release()
		close(f.done)
	}()
	return f, nil
}

// parseConfig is a snapshot of everything one parse needs.
type parseConfig struct {
	language    *Language
	input       Input
	ranges      []Range
	logger      Logger
	dotGraphs   io.Writer
	reportFault func(error)
}

func (p *Parser) prepare(source any) (*parseConfig, error) {
	if p.language == nil {
		return nil, fmt.Errorf("%w: no language set", ErrInvalidLanguage)
	}
	// Languages are immutable, so one successful check is enough.
	if p.language != p.validated {
		if err := p.language.Validate(); err != nil {
			return nil, err
		}
		p.validated = p.language
	}
	input, err := inputFor(source)
	if err != nil {
		return nil, err
	}
	if sized, ok := input.(sizedInput); ok {
		size := sized.size()
		for i, r := range p.includedRanges {
			if int64(r.StartByte) > size {
				return nil, &IncludedRangesError{Index: i, Reason: "starts beyond the end of the input"}
			}
		}
	}
	report := p.reportFault
	if report == nil {
		report = reportToLog
	}
	return &parseConfig{
		language:    p.language,
		input:       input,
		ranges:      p.includedRanges,
		reportFault: report,
	}, nil
}

// session holds the state of a single parse.
type session struct {
	lang   *Language
	lexer  *lexer
	ranges []Range
	log    *eventLog

	versions []*version
	finished []*subtree
	reuse    *reuseCursor

	lexCache map[lexKey]*subtree
}

type lexKey struct {
	position uint32
	mode     uint16
}

func (cfg *parseConfig) run(ctx context.Context, old *Tree) (*Tree, error) {
	ranges := cfg.ranges
	if len(ranges) == 0 {
		ranges = []Range{fullRange}
	}
	s := &session{
		lang:     cfg.language,
		lexer:    newLexer(&cfg.language.Lexer, cfg.input, ranges),
		ranges:   cfg.ranges,
		log:      &eventLog{logger: cfg.logger, report: cfg.reportFault},
		versions: []*version{{top: &stackEntry{}}},
		lexCache: make(map[lexKey]*subtree),
	}
	if old != nil {
		switch {
		case old.language != cfg.language:
			s.log.printf(LogTypeParse, "cant_reuse_tree reason:language")
		case !sameRanges(old.includedRanges, cfg.ranges):
			s.log.printf(LogTypeParse, "cant_reuse_tree reason:included_ranges")
		default:
			s.reuse = newReuseCursor(old)
		}
	}

	for step := 0; len(s.versions) > 0; step++ {
		if step%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIncomplete, err)
			}
		}
		s.advance(s.next())
		s.condense()
		if cfg.dotGraphs != nil {
			s.printStacks(cfg.dotGraphs)
		}
	}

	root := s.best()
	s.log.printf(LogTypeParse, "done")
	tree := newTree(s.lang, root, cfg.ranges)
	if cfg.dotGraphs != nil {
		if err := tree.PrintDotGraph(cfg.dotGraphs); err != nil {
			log.Warningf("writing dot graph: %s", err)
		}
	}
	return tree, nil
}

func sameRanges(a, b []Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// best picks the finished root with the lowest error cost, then the highest
// dynamic precedence, then the earliest.
func (s *session) best() *subtree {
	var pick *subtree
	for _, root := range s.finished {
		switch {
		case pick == nil:
			pick = root
		case root.errorCost < pick.errorCost:
			pick = root
		case root.errorCost == pick.errorCost && root.dynamicPrecedence > pick.dynamicPrecedence:
			pick = root
		}
	}
	return pick
}

// advance performs one action for v: a shift, a reduction, an accept or a
// recovery step. Additional actions in the same cell fork new versions.
func (s *session) advance(v *version) {
	if v.lookahead == nil {
		v.lookahead = s.nextLookahead(v)
	}
	la := v.lookahead
	state := v.top.state

	if !s.lang.isTerminal(la.symbol) && la.symbol != symbolSkipped {
		next, _ := s.lang.gotoState(state, la.symbol)
		s.log.printf(LogTypeParse, "shift state:%d symbol:%s", next, s.lang.SymbolName(la.symbol))
		v.top = v.top.push(next, la)
		v.lookahead = nil
		return
	}

	actions := s.lang.actions(state, la.symbol)
	if len(actions) == 0 {
		s.recover(v)
		return
	}
	for _, a := range actions[1:] {
		w := v.fork()
		s.log.printf(LogTypeParse, "split_action state:%d action:%s", state, a.Type)
		s.versions = append(s.versions, w)
		s.apply(w, a)
	}
	s.apply(v, actions[0])
}

func (s *session) apply(v *version, a Action) {
	switch a.Type {
	case ActionShift:
		s.shift(v, a)
	case ActionReduce:
		s.reduce(v, a)
	case ActionAccept:
		s.accept(v)
	}
}

func (s *session) shift(v *version, a Action) {
	la := v.lookahead
	v.lookahead = nil
	if a.Extra {
		if !la.extra {
			la = la.clone()
			la.extra = true
		}
		s.log.printf(LogTypeParse, "shift_extra")
		v.top = v.top.push(v.top.state, la)
		return
	}
	if la.extra {
		la = la.clone()
		la.extra = false
	}
	s.log.printf(LogTypeParse, "shift state:%d", a.State)
	v.top = v.top.push(a.State, la)
}

func (s *session) reduce(v *version, a Action) {
	entry := v.top
	var popped []*subtree
	for count := 0; count < int(a.ChildCount) && entry.sub != nil; entry = entry.prev {
		popped = append(popped, entry.sub)
		if !entry.sub.extra {
			count++
		}
	}
	// Extras that trail the last child stay on the stack above the new node.
	var trailing []*subtree
	for len(popped) > 0 && popped[0].extra {
		trailing = append(trailing, popped[0])
		popped = popped[1:]
	}
	children := make([]*subtree, len(popped))
	for i, sub := range popped {
		children[len(popped)-1-i] = sub
	}

	base := entry
	node := newNode(s.lang, a.Symbol, children, base.state)
	node.dynamicPrecedence += int32(a.DynamicPrecedence)
	la := v.lookahead
	lookaheadEnd := v.top.position.bytes + la.total().bytes + la.lookahead
	node.extendLookahead(lookaheadEnd - base.position.bytes)

	next, ok := s.lang.gotoState(base.state, a.Symbol)
	if !ok {
		s.log.printf(LogTypeParse, "halt_version reason:missing_goto state:%d symbol:%s", base.state, s.lang.SymbolName(a.Symbol))
		v.halted = len(s.versions) > 1
		if !v.halted {
			s.finishWithError(v)
		}
		return
	}
	s.log.printf(LogTypeParse, "reduce sym:%s child_count:%d", s.lang.SymbolName(a.Symbol), a.ChildCount)
	top := base.push(next, node)
	for i := len(trailing) - 1; i >= 0; i-- {
		top = top.push(next, trailing[i])
	}
	v.top = top
}

// accept finishes v. The root takes over the start node's children together
// with any extras around it and the end-of-input leaf, so it spans the whole
// input from byte zero.
func (s *session) accept(v *version) {
	stack := v.top.subtrees()
	var children []*subtree
	sym := SymbolError
	for _, sub := range stack {
		if sub.extra || sym != SymbolError {
			children = append(children, sub)
			continue
		}
		sym = sub.symbol
		if s.lang.isTerminal(sub.symbol) {
			children = append(children, sub)
		} else {
			children = append(children, sub.children...)
		}
	}
	children = append(children, v.lookahead)
	v.lookahead = nil
	s.log.printf(LogTypeParse, "accept")
	s.finish(v, sym, children)
}

// finishWithError ends v with an ERROR root over everything on its stack.
func (s *session) finishWithError(v *version) {
	children := v.top.subtrees()
	if v.lookahead != nil {
		children = append(children, v.lookahead)
		v.lookahead = nil
	}
	s.log.printf(LogTypeParse, "accept reason:error")
	s.finish(v, SymbolError, children)
}

func (s *session) finish(v *version, sym Symbol, children []*subtree) {
	root := newNode(s.lang, sym, children, 0)
	root.size = root.padding.add(root.size)
	root.padding = lengthZero
	v.finished = root
	s.finished = append(s.finished, root)
}

// nextLookahead reuses a subtree of the old tree when possible and lexes a
// fresh token otherwise.
func (s *session) nextLookahead(v *version) *subtree {
	pos := v.position()
	state := v.top.state
	if s.reuse != nil && len(s.versions) == 1 {
		if sub := s.reuseNode(pos, state); sub != nil {
			return sub
		}
	}
	return s.lex(pos, state)
}

func (s *session) lex(pos length, state StateID) *subtree {
	mode := s.lang.lexMode(state)
	key := lexKey{position: pos.bytes, mode: mode}
	if leaf, ok := s.lexCache[key]; ok {
		return leaf
	}

	tokens := s.lang.Lexer.Modes[mode]
	lx := s.lexer.scan(pos, tokens)
	if lx.result == scanNone {
		fallback := s.lexer.scan(pos, s.lexer.allModes)
		if fallback.lookaheadEnd < lx.lookaheadEnd {
			fallback.lookaheadEnd = lx.lookaheadEnd
		}
		lx = fallback
	}

	var sym Symbol
	switch lx.result {
	case scanToken:
		sym = s.lang.Lexer.Tokens[lx.token].Symbol
	case scanEOF:
		sym = SymbolEnd
	case scanNone:
		lx = s.lexer.skipRune(lx)
		sym = symbolSkipped
		s.log.printf(LogTypeLex, "skip_character position:%d", lx.start.at.bytes)
	}

	var lookahead uint32
	if lx.lookaheadEnd > lx.end.at.bytes {
		lookahead = lx.lookaheadEnd - lx.end.at.bytes
	}
	leaf := newLeaf(sym, lx.start.at.sub(lx.paddingStart), lx.end.at.sub(lx.start.at), lookahead, state, mode)
	s.log.printf(LogTypeLex, "lexed_lookahead sym:%s size:%d", s.symbolName(sym), leaf.size.bytes)
	s.lexCache[key] = leaf
	return leaf
}

func (s *session) symbolName(sym Symbol) string {
	switch sym {
	case SymbolEnd:
		return "end"
	case symbolSkipped:
		return "skipped"
	}
	return s.lang.SymbolName(sym)
}
