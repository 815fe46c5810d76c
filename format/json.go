package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/graft/syntax"
)

type JSONEncoder struct {
	w    io.Writer
	opts options
}

func NewJSONEncoder(w io.Writer, opts ...Option) *JSONEncoder {
	e := &JSONEncoder{w: w}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

func (e *JSONEncoder) Encode(tree *syntax.Tree) error {
	text, err := e.MarshalTree(tree)
	if err != nil {
		return err
	}
	text = append(text, '\n')
	_, err = e.w.Write(text)
	return err
}

func (e *JSONEncoder) MarshalTree(tree *syntax.Tree) ([]byte, error) {
	return json.MarshalIndent(treeNode(tree.RootNode(), &e.opts), "", "  ")
}

// jsonNode is shared by the JSON and YAML encoders.
type jsonNode struct {
	Kind     string      `json:"kind" yaml:"kind"`
	Named    bool        `json:"named,omitempty" yaml:"named,omitempty"`
	Extra    bool        `json:"extra,omitempty" yaml:"extra,omitempty"`
	Error    bool        `json:"error,omitempty" yaml:"error,omitempty"`
	Changed  bool        `json:"changed,omitempty" yaml:"changed,omitempty"`
	Span     *jsonSpan   `json:"span,omitempty" yaml:"span,omitempty"`
	Text     string      `json:"text,omitempty" yaml:"text,omitempty"`
	Children []*jsonNode `json:"children,omitempty" yaml:"children,omitempty"`
}

type jsonSpan struct {
	Start jsonPosition `json:"start" yaml:"start"`
	End   jsonPosition `json:"end" yaml:"end"`
}

type jsonPosition struct {
	Byte   uint32 `json:"byte" yaml:"byte"`
	Row    uint32 `json:"row" yaml:"row"`
	Column uint32 `json:"column" yaml:"column"`
}

func treeNode(n syntax.Node, o *options) *jsonNode {
	jn := &jsonNode{
		Kind:    n.Kind(),
		Named:   n.IsNamed(),
		Extra:   n.IsExtra(),
		Error:   n.IsError(),
		Changed: o.highlighted(n),
	}

	if o.positions {
		start, end := n.StartPoint(), n.EndPoint()
		jn.Span = &jsonSpan{
			Start: jsonPosition{Byte: n.StartByte(), Row: start.Row, Column: start.Column},
			End:   jsonPosition{Byte: n.EndByte(), Row: end.Row, Column: end.Column},
		}
	}

	children := n.Children()
	if len(children) == 0 {
		jn.Text = o.text(n)
		return jn
	}
	jn.Children = make([]*jsonNode, len(children))
	for i, child := range children {
		jn.Children[i] = treeNode(child, o)
	}
	return jn
}
