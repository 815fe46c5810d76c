package syntax

import "fmt"

// Point is a zero-based row/column position. Columns count bytes.
type Point struct {
	Row    uint32
	Column uint32
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// Compare orders points by row, then column.
func (p Point) Compare(o Point) int {
	switch {
	case p.Row < o.Row:
		return -1
	case p.Row > o.Row:
		return 1
	case p.Column < o.Column:
		return -1
	case p.Column > o.Column:
		return 1
	}
	return 0
}

func (p Point) Less(o Point) bool {
	return p.Compare(o) < 0
}

// Range is a span of source text in both byte and row/column coordinates.
type Range struct {
	StartPoint Point
	EndPoint   Point
	StartByte  uint32
	EndByte    uint32
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d) %s-%s", r.StartByte, r.EndByte, r.StartPoint, r.EndPoint)
}

// union returns the smallest range covering both r and o.
func (r Range) union(o Range) Range {
	if o.StartByte < r.StartByte {
		r.StartByte = o.StartByte
		r.StartPoint = o.StartPoint
	}
	if o.EndByte > r.EndByte {
		r.EndByte = o.EndByte
		r.EndPoint = o.EndPoint
	}
	return r
}

// InputEdit describes replacing [StartByte, OldEndByte) with text that ends at NewEndByte.
type InputEdit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

func (e *InputEdit) isNoop() bool {
	return e.StartByte == e.OldEndByte && e.StartByte == e.NewEndByte
}

// length is a relative extent. Subtrees store padding and size as lengths so
// that they do not depend on where they sit in the document.
type length struct {
	bytes  uint32
	extent Point
}

var lengthZero = length{}

func lengthAt(b uint32, p Point) length {
	return length{bytes: b, extent: p}
}

func (a length) add(b length) length {
	r := length{bytes: a.bytes + b.bytes}
	if b.extent.Row > 0 {
		r.extent = Point{Row: a.extent.Row + b.extent.Row, Column: b.extent.Column}
	} else {
		r.extent = Point{Row: a.extent.Row, Column: a.extent.Column + b.extent.Column}
	}
	return r
}

// sub returns the extent from b to a. It never underflows.
func (a length) sub(b length) length {
	r := length{}
	if a.bytes >= b.bytes {
		r.bytes = a.bytes - b.bytes
	}
	if a.extent.Row > b.extent.Row {
		r.extent = Point{Row: a.extent.Row - b.extent.Row, Column: a.extent.Column}
	} else if a.extent.Column >= b.extent.Column {
		r.extent = Point{Column: a.extent.Column - b.extent.Column}
	}
	return r
}

// saturatingSub is sub, but returns zero unless a is strictly past b.
func (a length) saturatingSub(b length) length {
	if a.bytes > b.bytes {
		return a.sub(b)
	}
	return lengthZero
}

// extentOf measures text as a length.
func extentOf(text []byte) length {
	l := length{bytes: uint32(len(text))}
	for _, c := range text {
		if c == '\n' {
			l.extent.Row++
			l.extent.Column = 0
		} else {
			l.extent.Column++
		}
	}
	return l
}
