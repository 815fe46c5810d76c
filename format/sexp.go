package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dhamidi/graft/syntax"
)

type sexpStyles struct {
	kind    *color.Color
	err     *color.Color
	changed *color.Color
	text    *color.Color
}

func newSexpStyles(enabled bool) *sexpStyles {
	s := &sexpStyles{
		kind:    color.New(color.FgHiBlue),
		err:     color.New(color.Bold, color.FgRed),
		changed: color.New(color.FgYellow),
		text:    color.New(color.FgGreen),
	}
	if !enabled {
		s.kind.DisableColor()
		s.err.DisableColor()
		s.changed.DisableColor()
		s.text.DisableColor()
	} else {
		s.kind.EnableColor()
		s.err.EnableColor()
		s.changed.EnableColor()
		s.text.EnableColor()
	}
	return s
}

// SexpEncoder writes one indented S-expression line per named node, the
// layout of Node.String spread over lines.
type SexpEncoder struct {
	w      io.Writer
	opts   options
	styles *sexpStyles
}

func NewSexpEncoder(w io.Writer, opts ...Option) *SexpEncoder {
	e := &SexpEncoder{w: w}
	for _, opt := range opts {
		opt(&e.opts)
	}
	e.styles = newSexpStyles(e.opts.color)
	return e
}

func (e *SexpEncoder) Encode(tree *syntax.Tree) error {
	var sb strings.Builder
	e.write(&sb, tree.RootNode(), 0)
	sb.WriteString("\n")
	_, err := io.WriteString(e.w, sb.String())
	return err
}

func (e *SexpEncoder) write(sb *strings.Builder, n syntax.Node, depth int) {
	if depth > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("  ", depth))
	}
	style := e.styles.kind
	switch {
	case n.IsError():
		style = e.styles.err
	case e.opts.highlighted(n):
		style = e.styles.changed
	}
	sb.WriteString("(")
	sb.WriteString(style.Sprint(n.Kind()))
	if e.opts.positions {
		fmt.Fprintf(sb, " [%s] - [%s]", n.StartPoint(), n.EndPoint())
	}
	named := n.NamedChildren()
	if len(named) == 0 {
		if text := e.opts.text(n); text != "" {
			sb.WriteString(" ")
			sb.WriteString(e.styles.text.Sprint(fmt.Sprintf("%q", text)))
		}
	}
	for _, child := range named {
		e.write(sb, child, depth+1)
	}
	sb.WriteString(")")
}
