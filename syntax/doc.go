// Package syntax provides an incremental, error-tolerant parsing engine
// driven by compiled grammar tables.
//
// # Overview
//
// A Parser turns source text into a concrete syntax Tree using a Language
// built by the grammar package. After the text changes, the caller patches
// the old tree with Tree.Edit and parses again with the old tree; every
// subtree the edit left alone is shared by the new tree, and
// Tree.ChangedRanges reports which regions differ syntactically.
//
// # Architecture
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Input     │────▶│   Lexer     │────▶│  LR driver  │
//	│  (chunks)   │     │  (NFA)      │     │  (versions) │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                                          │        ▲
//	                                          ▼        │
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│ TreeCursor  │◀────│    Tree     │     │   Reuse     │
//	│  Node API   │     │ (subtrees)  │────▶│   cursor    │
//	└─────────────┘     └─────────────┘     └─────────────┘
//
// # Incremental Parsing
//
//	tree, _ := p.ParseString(ctx, "abc + cde", nil)
//	tree.Edit(&syntax.InputEdit{StartByte: 1, OldEndByte: 1, NewEndByte: 4, ...})
//	newTree, _ := p.ParseString(ctx, "a * bc + cde", tree)
//	changed, _ := tree.ChangedRanges(newTree)
//
// Subtrees store their padding (leading whitespace) and size as lengths
// relative to their own start, so a reused subtree needs no position
// updates. Each subtree also records how many bytes past its end the lexer
// examined; an edit within that reach invalidates it.
//
// # Ambiguity
//
// Parse table cells may hold several actions when a grammar declares a
// conflict. The driver forks a stack version per action, merges versions
// that reach the same state at the same position (keeping the higher
// dynamic precedence) and drops versions that fail while another survives.
//
// # Error Recovery
//
// Parsing never fails because of the input. When no version can continue:
//
//  1. The stack is popped back to the nearest state that accepts the
//     lookahead, and the popped nodes are wrapped in an ERROR node.
//  2. Otherwise the lookahead is skipped inside an ERROR node.
//  3. At the end of input with nothing left to try, the tree's root is an
//     ERROR node over everything parsed so far.
//
// # Concurrency
//
// Languages and Trees are immutable apart from Tree.Edit, and may be shared
// between goroutines. A Parser runs one parse at a time; ParseAsync runs it
// on its own goroutine and rejects every other call with ErrParserBusy until
// it completes.
package syntax
