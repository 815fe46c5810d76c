package syntax

import (
	"fmt"

	"github.com/tliron/commonlog"
)

type LogType uint8

const (
	LogTypeParse LogType = iota
	LogTypeLex
)

func (t LogType) String() string {
	if t == LogTypeLex {
		return "lex"
	}
	return "parse"
}

// Logger receives one message per parse or lex event. Messages have the
// form "event key:value ...", for example "shift state:3".
type Logger func(t LogType, message string)

var log = commonlog.GetLogger("graft.syntax")

func reportToLog(err error) {
	log.Errorf("%s", err.Error())
}

// eventLog guards a Logger for the duration of one parse. A panicking
// logger is reported once and parsing continues.
type eventLog struct {
	logger   Logger
	report   func(error)
	reported bool
}

func (l *eventLog) enabled() bool {
	return l.logger != nil
}

func (l *eventLog) printf(t LogType, format string, args ...any) {
	if l.logger == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && !l.reported {
			l.reported = true
			l.report(&LoggerFault{Value: r})
		}
	}()
	l.logger(t, fmt.Sprintf(format, args...))
}
