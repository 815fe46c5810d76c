package format

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dhamidi/graft/syntax"
)

type YAMLEncoder struct {
	w    io.Writer
	opts options
}

func NewYAMLEncoder(w io.Writer, opts ...Option) *YAMLEncoder {
	e := &YAMLEncoder{w: w}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

func (e *YAMLEncoder) Encode(tree *syntax.Tree) error {
	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(treeNode(tree.RootNode(), &e.opts)); err != nil {
		return err
	}
	return enc.Close()
}
