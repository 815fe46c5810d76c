package grammar

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidGrammar = errors.New("invalid grammar")

// GrammarError reports a malformed rule.
type GrammarError struct {
	Rule   string
	Reason string
}

func (e *GrammarError) Error() string {
	if e.Rule == "" {
		return "grammar: " + e.Reason
	}
	return fmt.Sprintf("grammar: rule %s: %s", e.Rule, e.Reason)
}

func (e *GrammarError) Unwrap() error {
	return ErrInvalidGrammar
}

// ConflictError reports a parse table cell with more than one action that
// precedence does not resolve and no Conflict declaration covers.
type ConflictError struct {
	State     int
	Lookahead string
	Items     []string
	Rules     []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("grammar: unresolved conflict in state %d on %s between rules %s:\n  %s",
		e.State, e.Lookahead, strings.Join(e.Rules, ", "), strings.Join(e.Items, "\n  "))
}

func (e *ConflictError) Unwrap() error {
	return ErrInvalidGrammar
}
