package workspace

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dhamidi/graft/syntax"
)

// EditsBetween describes how to turn old into new as a list of edits. Each
// edit is expressed against the text produced by the edits before it, the
// order in which Tree.Edit must apply them.
func EditsBetween(old, new []byte) []syntax.InputEdit {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(old), string(new), false)

	var edits []syntax.InputEdit
	var offset uint32
	var point syntax.Point
	for _, d := range diffs {
		n := uint32(len(d.Text))
		end := Advance(point, d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			offset += n
			point = end
		case diffmatchpatch.DiffDelete:
			edits = append(edits, syntax.InputEdit{
				StartByte:   offset,
				OldEndByte:  offset + n,
				NewEndByte:  offset,
				StartPoint:  point,
				OldEndPoint: end,
				NewEndPoint: point,
			})
		case diffmatchpatch.DiffInsert:
			if last := len(edits) - 1; last >= 0 && edits[last].StartByte == offset && edits[last].NewEndByte == offset {
				// A deletion followed by an insertion at the same place is
				// one replacement.
				edits[last].NewEndByte = offset + n
				edits[last].NewEndPoint = end
			} else {
				edits = append(edits, syntax.InputEdit{
					StartByte:   offset,
					OldEndByte:  offset,
					NewEndByte:  offset + n,
					StartPoint:  point,
					OldEndPoint: point,
					NewEndPoint: end,
				})
			}
			offset += n
			point = end
		}
	}
	return edits
}

// Advance returns the position reached after text when starting at p.
// Columns count bytes.
func Advance(p syntax.Point, text string) syntax.Point {
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}

// PointAt returns the position of byte offset in text.
func PointAt(text []byte, offset uint32) syntax.Point {
	if int(offset) > len(text) {
		offset = uint32(len(text))
	}
	return Advance(syntax.Point{}, string(text[:offset]))
}
