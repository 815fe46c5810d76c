package syntax

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLanguage = errors.New("invalid language")
	ErrInvalidInput    = errors.New("invalid input source")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidRanges   = errors.New("invalid included ranges")
	ErrParserBusy      = errors.New("parser busy")
	ErrIncomplete      = errors.New("parse incomplete")
)

// IncludedRangesError points at the first offending range.
type IncludedRangesError struct {
	Index  int
	Reason string
}

func (e *IncludedRangesError) Error() string {
	return fmt.Sprintf("included range %d: %s", e.Index, e.Reason)
}

func (e *IncludedRangesError) Unwrap() error {
	return ErrInvalidRanges
}

// LoggerFault is reported on the diagnostic channel when a Logger panics.
type LoggerFault struct {
	Value any
}

func (e *LoggerFault) Error() string {
	return fmt.Sprintf("parse logger panicked: %v", e.Value)
}
