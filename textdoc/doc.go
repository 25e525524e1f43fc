// Package textdoc maps between flat text offsets and LSP line/character
// positions. Offsets and characters are both counted in UTF-16 code units,
// the LSP default encoding, so a position's offset is its line start plus
// its character.
package textdoc

import (
	"sort"
	"unicode/utf16"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

type Doc struct {
	text  []uint16
	lines []lineInfo
}

type lineInfo struct {
	from int // offset of the first unit
	to   int // offset of the line break, or end of text
}

// Line is one line of a document, without its line break.
type Line struct {
	Number int // 0-based
	From   int
	To     int
	Text   string
}

func New(text string) *Doc {
	d := &Doc{text: utf16.Encode([]rune(text))}
	start := 0
	for i := 0; i < len(d.text); i++ {
		switch d.text[i] {
		case '\n':
			d.lines = append(d.lines, lineInfo{from: start, to: i})
			start = i + 1
		case '\r':
			d.lines = append(d.lines, lineInfo{from: start, to: i})
			if i+1 < len(d.text) && d.text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	d.lines = append(d.lines, lineInfo{from: start, to: len(d.text)})
	return d
}

// Len is the document length in UTF-16 code units.
func (d *Doc) Len() int {
	return len(d.text)
}

// Lines is the number of lines. An empty document has one empty line.
func (d *Doc) Lines() int {
	return len(d.lines)
}

func (d *Doc) String() string {
	return string(utf16.Decode(d.text))
}

// Slice returns the text between two offsets, clamped to the document.
func (d *Doc) Slice(from, to int) string {
	from, to = d.clamp(from), d.clamp(to)
	if from >= to {
		return ""
	}
	return string(utf16.Decode(d.text[from:to]))
}

// Line returns line n (0-based). It panics if n is out of range.
func (d *Doc) Line(n int) Line {
	l := d.lines[n]
	return Line{Number: n, From: l.from, To: l.to, Text: d.Slice(l.from, l.to)}
}

// LineAt returns the line containing offset. Offsets inside a line break
// belong to the line the break ends.
func (d *Doc) LineAt(offset int) Line {
	offset = d.clamp(offset)
	n := sort.Search(len(d.lines), func(i int) bool {
		return d.lines[i].from > offset
	}) - 1
	return d.Line(n)
}

// PositionToOffset converts an LSP position to an offset. It fails when the
// line is past the last line, the character is past the end of the line, or
// the result is past the end of the document.
func (d *Doc) PositionToOffset(pos protocol.Position) (int, bool) {
	line := int(pos.Line)
	if line >= len(d.lines) {
		return 0, false
	}
	l := d.lines[line]
	char := int(pos.Character)
	if char > l.to-l.from {
		return 0, false
	}
	offset := l.from + char
	if offset > len(d.text) {
		return 0, false
	}
	return offset, true
}

// OffsetToPosition converts an offset to an LSP position. Offsets outside
// [0, Len] are clamped.
func (d *Doc) OffsetToPosition(offset int) protocol.Position {
	line := d.LineAt(offset)
	char := d.clamp(offset) - line.From
	if char > line.To-line.From {
		char = line.To - line.From
	}
	return protocol.Position{Line: protocol.UInteger(line.Number), Character: protocol.UInteger(char)}
}

// OffsetFromBytes converts a byte offset into the original UTF-8 text to a
// UTF-16 offset.
func OffsetFromBytes(text string, byteOffset int) int {
	if byteOffset > len(text) {
		byteOffset = len(text)
	}
	n := 0
	for _, r := range text[:byteOffset] {
		n += utf16.RuneLen(r)
	}
	return n
}

func (d *Doc) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(d.text) {
		return len(d.text)
	}
	return offset
}
