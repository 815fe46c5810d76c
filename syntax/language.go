package syntax

import (
	"fmt"
	"math"
)

// Symbol identifies a grammar symbol within a Language. Terminals come
// first, starting with SymbolEnd; nonterminals follow.
type Symbol uint16

// StateID identifies a parse state. State 0 is the start state.
type StateID uint16

const (
	SymbolEnd   Symbol = 0
	SymbolError Symbol = math.MaxUint16

	// symbolSkipped labels raw bytes that no token matched. Such leaves are
	// always wrapped in an ERROR node and never shown on their own.
	symbolSkipped Symbol = math.MaxUint16 - 1
)

const (
	// LanguageVersion is the table layout produced by the grammar package.
	LanguageVersion uint32 = 1
	// MinCompatibleLanguageVersion is the oldest layout the parser accepts.
	MinCompatibleLanguageVersion uint32 = 1
)

type SymbolInfo struct {
	Name     string
	Visible  bool
	Named    bool
	Terminal bool
}

type ActionType uint8

const (
	ActionShift ActionType = iota + 1
	ActionReduce
	ActionAccept
)

func (t ActionType) String() string {
	switch t {
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	case ActionAccept:
		return "accept"
	}
	return "unknown"
}

// Action is one entry of the parse table. A cell with more than one action
// is a conflict the grammar declared; the parser explores each.
type Action struct {
	Type              ActionType
	State             StateID // shift target
	Symbol            Symbol  // reduced symbol
	ChildCount        uint16
	DynamicPrecedence int16
	Extra             bool // shift without changing state
}

type ParseState struct {
	Actions map[Symbol][]Action
	Gotos   map[Symbol]StateID
	LexMode uint16
}

// Language is a compiled grammar: symbol metadata, parse tables and the token
// program. It is immutable and may be shared by any number of parsers.
type Language struct {
	Name         string
	Version      uint32
	Symbols      []SymbolInfo
	States       []ParseState
	Lexer        LexProgram
	ExtraSymbols []Symbol
}

// LanguageError reports why a Language failed validation.
type LanguageError struct {
	Language string
	Reason   string
}

func (e *LanguageError) Error() string {
	if e.Language == "" {
		return fmt.Sprintf("invalid language: %s", e.Reason)
	}
	return fmt.Sprintf("invalid language %q: %s", e.Language, e.Reason)
}

func (e *LanguageError) Unwrap() error {
	return ErrInvalidLanguage
}

// Validate checks that the tables are internally consistent.
func (l *Language) Validate() error {
	if l == nil {
		return &LanguageError{Reason: "nil language"}
	}
	fail := func(format string, args ...any) error {
		return &LanguageError{Language: l.Name, Reason: fmt.Sprintf(format, args...)}
	}
	if l.Version < MinCompatibleLanguageVersion || l.Version > LanguageVersion {
		return fail("incompatible version %d", l.Version)
	}
	if len(l.Symbols) == 0 || !l.Symbols[SymbolEnd].Terminal {
		return fail("symbol 0 must be the end terminal")
	}
	if len(l.Symbols) >= int(symbolSkipped) {
		return fail("too many symbols")
	}
	if len(l.States) == 0 {
		return fail("no parse states")
	}
	symbols := Symbol(len(l.Symbols))
	states := StateID(len(l.States))
	for id, state := range l.States {
		if int(state.LexMode) >= len(l.Lexer.Modes) {
			return fail("state %d: lex mode %d out of range", id, state.LexMode)
		}
		for sym, actions := range state.Actions {
			if sym >= symbols || !l.Symbols[sym].Terminal {
				return fail("state %d: action on non-terminal %d", id, sym)
			}
			for _, a := range actions {
				switch a.Type {
				case ActionShift:
					if a.State >= states {
						return fail("state %d: shift to unknown state %d", id, a.State)
					}
				case ActionReduce:
					if a.Symbol >= symbols || l.Symbols[a.Symbol].Terminal {
						return fail("state %d: reduce to invalid symbol %d", id, a.Symbol)
					}
				case ActionAccept:
				default:
					return fail("state %d: unknown action type %d", id, a.Type)
				}
			}
		}
		for sym, next := range state.Gotos {
			if sym >= symbols || l.Symbols[sym].Terminal {
				return fail("state %d: goto on terminal %d", id, sym)
			}
			if next >= states {
				return fail("state %d: goto unknown state %d", id, next)
			}
		}
	}
	for _, sym := range l.ExtraSymbols {
		if sym >= symbols || !l.Symbols[sym].Terminal {
			return fail("extra symbol %d is not a terminal", sym)
		}
	}
	if err := l.Lexer.validate(symbols); err != nil {
		return fail("%v", err)
	}
	return nil
}

func (l *Language) SymbolCount() int {
	return len(l.Symbols)
}

func (l *Language) StateCount() int {
	return len(l.States)
}

func (l *Language) SymbolName(sym Symbol) string {
	switch {
	case sym == SymbolError:
		return "ERROR"
	case sym == symbolSkipped:
		return ""
	case int(sym) < len(l.Symbols):
		return l.Symbols[sym].Name
	}
	return ""
}

// SymbolForName looks up a symbol by name and named-ness.
func (l *Language) SymbolForName(name string, named bool) (Symbol, bool) {
	if name == "ERROR" && named {
		return SymbolError, true
	}
	for i, info := range l.Symbols {
		if info.Name == name && info.Named == named {
			return Symbol(i), true
		}
	}
	return 0, false
}

func (l *Language) IsVisible(sym Symbol) bool {
	switch {
	case sym == SymbolError:
		return true
	case int(sym) < len(l.Symbols):
		return l.Symbols[sym].Visible
	}
	return false
}

func (l *Language) IsNamed(sym Symbol) bool {
	switch {
	case sym == SymbolError:
		return true
	case int(sym) < len(l.Symbols):
		return l.Symbols[sym].Named
	}
	return false
}

func (l *Language) isTerminal(sym Symbol) bool {
	return int(sym) < len(l.Symbols) && l.Symbols[sym].Terminal
}

func (l *Language) actions(state StateID, sym Symbol) []Action {
	if int(state) >= len(l.States) {
		return nil
	}
	return l.States[state].Actions[sym]
}

func (l *Language) gotoState(state StateID, sym Symbol) (StateID, bool) {
	if int(state) >= len(l.States) {
		return 0, false
	}
	next, ok := l.States[state].Gotos[sym]
	return next, ok
}

func (l *Language) lexMode(state StateID) uint16 {
	if int(state) >= len(l.States) {
		return 0
	}
	return l.States[state].LexMode
}

// hasAction reports whether sym can be consumed in state, either as a
// terminal action or as a goto for a reused nonterminal.
func (l *Language) hasAction(state StateID, sym Symbol) bool {
	if l.isTerminal(sym) {
		return len(l.actions(state, sym)) > 0
	}
	_, ok := l.gotoState(state, sym)
	return ok
}
