package completion

import (
	"testing"

	"github.com/dhamidi/pyscope/textdoc"
	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func opt(apply string) Option {
	return Option{Label: apply, Apply: apply, SortText: apply, FilterText: apply}
}

func applies(options []Option) []string {
	var out []string
	for _, o := range options {
		out = append(out, o.Apply)
	}
	return out
}

func TestRankFiltersByFilterTextPrefix(t *testing.T) {
	doc := textdoc.New("x = dis")
	options := []Option{opt("display"), opt("Display"), opt("button_a"), opt("DISABLED")}

	res := Rank(options, doc, doc.Len())

	assert.Equal(t, 4, res.From)
	assert.Equal(t, doc.Len(), res.To)
	assert.Equal(t, []string{"display", "Display", "DISABLED"}, applies(res.Options))
}

func TestRankExactCaseFirst(t *testing.T) {
	doc := textdoc.New("Dis")
	options := []Option{opt("display"), opt("DISABLED"), opt("Display"), opt("Disco")}

	res := Rank(options, doc, doc.Len())

	assert.Equal(t, 0, res.From)
	assert.Equal(t, []string{"Display", "Disco", "display", "DISABLED"}, applies(res.Options))
}

func TestRankUsesFilterTextNotApply(t *testing.T) {
	doc := textdoc.New("sh")
	options := []Option{
		{Label: "show", Apply: "show()", FilterText: "show"},
		{Label: "scroll", Apply: "scroll()", FilterText: "scroll"},
	}

	res := Rank(options, doc, doc.Len())

	assert.Equal(t, []string{"show()"}, applies(res.Options))
}

func TestRankNoTokenReturnsAllAtCursor(t *testing.T) {
	doc := textdoc.New("foo(")
	options := []Option{opt("alpha"), opt("beta")}

	res := Rank(options, doc, doc.Len())

	assert.Equal(t, doc.Len(), res.From)
	assert.Equal(t, options, res.Options)
}

func TestRankNonWordTokenIsNotFiltered(t *testing.T) {
	doc := textdoc.New("x = __")
	options := []Option{opt("__init__"), opt("name")}

	res := Rank(options, doc, doc.Len())

	// "__" is all word characters, so it filters.
	assert.Equal(t, []string{"__init__"}, applies(res.Options))

	doc = textdoc.New("d['k")
	options = []Option{opt("'key'"), opt("'other'")}

	res = Rank(options, doc, doc.Len())

	assert.Equal(t, 2, res.From)
	assert.Equal(t, options, res.Options)
}

func TestRankStaysOnCurrentLine(t *testing.T) {
	doc := textdoc.New("display\n")
	options := []Option{opt("display")}

	res := Rank(options, doc, doc.Len())

	assert.Equal(t, doc.Len(), res.From)
	assert.Equal(t, options, res.Options)
}

func TestRankEmptyOptions(t *testing.T) {
	doc := textdoc.New("abc")

	res := Rank(nil, doc, 3)

	assert.Equal(t, 3, res.From)
	assert.Empty(t, res.Options)
}

func TestRankUnicodeOffsets(t *testing.T) {
	doc := textdoc.New("s = '😀' + na")
	options := []Option{opt("name"), opt("naïve")}

	res := Rank(options, doc, doc.Len())

	assert.Equal(t, doc.Len()-2, res.From)
	assert.Equal(t, []string{"name", "naïve"}, applies(res.Options))
}

func TestCharClass(t *testing.T) {
	tests := []struct {
		chars string
		want  string
	}{
		{"abc", `[\w]`},
		{"a.", `[\.\w]`},
		{"-]", `[\-\]]`},
		{"é", `[é]`},
	}
	for _, tt := range tests {
		set := map[rune]bool{}
		for _, r := range tt.chars {
			set[r] = true
		}
		assert.Equal(t, tt.want, charClass(set), "chars %q", tt.chars)
	}
}

func TestWordBefore(t *testing.T) {
	doc := textdoc.New("import os\nx = \nfoo.ba")

	assert.True(t, WordBefore(doc, 9))
	assert.False(t, WordBefore(doc, 14))
	assert.True(t, WordBefore(doc, doc.Len()))
	assert.False(t, WordBefore(doc, 10))
}

func TestFromLSP(t *testing.T) {
	kind := protocol.CompletionItemKindFunction
	detail := "() -> None"
	sortText := "a"
	item := protocol.CompletionItem{
		Label:         "show",
		Kind:          &kind,
		Detail:        &detail,
		SortText:      &sortText,
		TextEdit:      protocol.TextEdit{NewText: "show()"},
		Documentation: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: "Show things."},
	}

	got := FromLSP(item)

	assert.Equal(t, Option{
		Label:      "show",
		Detail:     "() -> None",
		Apply:      "show()",
		Type:       "function",
		SortText:   "a",
		FilterText: "show",
		Info:       "Show things.",
	}, got)
}

func TestFromLSPDefaults(t *testing.T) {
	got := FromLSP(protocol.CompletionItem{Label: "x", Documentation: "plain"})

	assert.Equal(t, Option{Label: "x", Apply: "x", SortText: "x", FilterText: "x", Info: "plain"}, got)
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "typeparameter", KindName(protocol.CompletionItemKindTypeParameter))
	assert.Equal(t, "enummember", KindName(protocol.CompletionItemKindEnumMember))
	assert.Equal(t, "", KindName(protocol.CompletionItemKind(99)))
}

func TestFormatContents(t *testing.T) {
	tests := []struct {
		name     string
		contents any
		want     string
	}{
		{"nil", nil, ""},
		{"string", "text", "text"},
		{"markup", protocol.MarkupContent{Value: "doc"}, "doc"},
		{"marked object", map[string]any{"language": "python", "value": "x: int"}, "x: int"},
		{"array", []any{"a", map[string]any{"value": "b"}}, "a\n\nb\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatContents(tt.contents))
		})
	}
}
