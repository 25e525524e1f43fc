package textdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func pos(line, char int) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

func TestPositionToOffset(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want int
		ok   bool
	}{
		{"empty doc start", "", pos(0, 0), 0, true},
		{"empty doc past end", "", pos(0, 1), 0, false},
		{"first line", "abc\ndef", pos(0, 2), 2, true},
		{"line end", "abc\ndef", pos(0, 3), 3, true},
		{"past line end", "abc\ndef", pos(0, 4), 0, false},
		{"second line", "abc\ndef", pos(1, 1), 5, true},
		{"doc end", "abc\ndef", pos(1, 3), 7, true},
		{"line past count", "abc\ndef", pos(2, 0), 0, false},
		{"trailing newline", "abc\n", pos(1, 0), 4, true},
		{"crlf", "ab\r\ncd", pos(1, 1), 5, true},
		{"cr only", "ab\rcd", pos(1, 0), 3, true},
		{"surrogate pair", "😀x\ny", pos(0, 3), 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := New(tt.text).PositionToOffset(tt.pos)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestOffsetToPosition(t *testing.T) {
	d := New("abc\r\ndef\nghi")

	assert.Equal(t, pos(0, 0), d.OffsetToPosition(0))
	assert.Equal(t, pos(0, 3), d.OffsetToPosition(3))
	assert.Equal(t, pos(0, 3), d.OffsetToPosition(4), "inside the line break")
	assert.Equal(t, pos(1, 0), d.OffsetToPosition(5))
	assert.Equal(t, pos(2, 3), d.OffsetToPosition(d.Len()))
	assert.Equal(t, pos(2, 3), d.OffsetToPosition(d.Len()+10))
	assert.Equal(t, pos(0, 0), d.OffsetToPosition(-1))
}

func TestRoundTrip(t *testing.T) {
	texts := []string{
		"",
		"x",
		"def foo():\n    pass\n",
		"a\r\nbb\rccc\n\n",
		"naïve = '😀'\nprint(naïve)",
	}

	for _, text := range texts {
		d := New(text)
		for n := 0; n < d.Lines(); n++ {
			line := d.Line(n)
			for char := 0; char <= line.To-line.From; char++ {
				p := pos(n, char)
				offset, ok := d.PositionToOffset(p)
				require.True(t, ok, "text %q position %v", text, p)
				assert.Equal(t, p, d.OffsetToPosition(offset), "text %q offset %d", text, offset)
			}
		}
	}
}

func TestLines(t *testing.T) {
	d := New("one\ntwo\r\nthree")

	require.Equal(t, 3, d.Lines())
	assert.Equal(t, "two", d.Line(1).Text)
	assert.Equal(t, Line{Number: 2, From: 9, To: 14, Text: "three"}, d.Line(2))
	assert.Equal(t, 1, d.LineAt(6).Number)
	assert.Equal(t, "one\ntwo\r\nthree", d.String())
	assert.Equal(t, "ne\nt", d.Slice(1, 5))
	assert.Equal(t, "", d.Slice(5, 1))
}

func TestOffsetFromBytes(t *testing.T) {
	text := "é😀x"

	assert.Equal(t, 0, OffsetFromBytes(text, 0))
	assert.Equal(t, 1, OffsetFromBytes(text, 2))
	assert.Equal(t, 3, OffsetFromBytes(text, 6))
	assert.Equal(t, 4, OffsetFromBytes(text, len(text)))
	assert.Equal(t, 4, OffsetFromBytes(text, 100))
}
