// Package format renders syntax trees as S-expressions, JSON or YAML.
package format

import (
	"fmt"
	"io"
	"slices"

	"github.com/dhamidi/graft/syntax"
)

type Encoder interface {
	Encode(tree *syntax.Tree) error
}

type options struct {
	source    []byte
	positions bool
	color     bool
	highlight []syntax.Range
}

type Option func(*options)

// WithSource lets encoders include the text of leaf nodes.
func WithSource(source []byte) Option {
	return func(o *options) {
		o.source = source
	}
}

func WithPositions() Option {
	return func(o *options) {
		o.positions = true
	}
}

// WithColor colors S-expression output: ERROR nodes in red, nodes inside a
// highlighted range in yellow.
func WithColor() Option {
	return func(o *options) {
		o.color = true
	}
}

// WithHighlight marks nodes that overlap any of ranges, such as the ranges
// reported by Tree.ChangedRanges.
func WithHighlight(ranges []syntax.Range) Option {
	return func(o *options) {
		o.highlight = slices.Clone(ranges)
	}
}

func (o *options) highlighted(n syntax.Node) bool {
	for _, r := range o.highlight {
		if n.StartByte() < r.EndByte && r.StartByte < n.EndByte() {
			return true
		}
	}
	return false
}

func (o *options) text(n syntax.Node) string {
	if o.source == nil || int(n.EndByte()) > len(o.source) {
		return ""
	}
	return n.Content(o.source)
}

// Names lists the supported output formats.
func Names() []string {
	return []string{"sexp", "json", "yaml"}
}

// New returns the encoder for the named format.
func New(name string, w io.Writer, opts ...Option) (Encoder, error) {
	switch name {
	case "sexp", "":
		return NewSexpEncoder(w, opts...), nil
	case "json":
		return NewJSONEncoder(w, opts...), nil
	case "yaml":
		return NewYAMLEncoder(w, opts...), nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}
