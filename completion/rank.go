// Package completion normalizes language server completion items and ranks
// them against the token being typed.
package completion

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/dhamidi/pyscope/textdoc"
)

// lookBehind bounds how far before the cursor a token may start.
const lookBehind = 250

type Option struct {
	Label      string
	Detail     string
	Apply      string
	Type       string
	SortText   string
	FilterText string
	Info       string
}

// Result is a ranked option list and the span it replaces.
type Result struct {
	From    int
	To      int
	Options []Option
}

var wordOnly = regexp.MustCompile(`^\w+$`)

// Rank finds the token before pos that the options could complete and
// filters and orders the options against it. When no token is found the
// options are returned unchanged, anchored at pos.
func Rank(options []Option, doc *textdoc.Doc, pos int) Result {
	res := Result{From: pos, To: pos, Options: options}

	pattern := prefixPattern(options)
	if pattern == nil {
		return res
	}
	from, token, ok := matchBefore(doc, pos, pattern)
	if !ok {
		return res
	}
	res.From = from

	if !wordOnly.MatchString(token) {
		return res
	}

	lower := strings.ToLower(token)
	var filtered []Option
	for _, opt := range options {
		if strings.HasPrefix(strings.ToLower(opt.FilterText), lower) {
			filtered = append(filtered, opt)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return strings.HasPrefix(filtered[i].Apply, token) && !strings.HasPrefix(filtered[j].Apply, token)
	})
	res.Options = filtered
	return res
}

// prefixPattern builds [first][rest]*$ from the characters used by the
// options' apply texts.
func prefixPattern(options []Option) *regexp.Regexp {
	first := map[rune]bool{}
	rest := map[rune]bool{}
	for _, opt := range options {
		for i, r := range []rune(opt.Apply) {
			if i == 0 {
				first[r] = true
			} else {
				rest[r] = true
			}
		}
	}
	if len(first) == 0 {
		return nil
	}

	source := charClass(first)
	if len(rest) > 0 {
		source += charClass(rest) + "*"
	}
	re, err := regexp.Compile(source + "$")
	if err != nil {
		return nil
	}
	return re
}

func charClass(chars map[rune]bool) string {
	sorted := make([]rune, 0, len(chars))
	for r := range chars {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	b.WriteString("[")
	word := false
	for _, r := range sorted {
		switch {
		case isWord(r):
			word = true
		case r < 0x80 && !isSpace(r):
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	if word {
		b.WriteString(`\w`)
	}
	b.WriteString("]")
	return b.String()
}

func isWord(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// matchBefore finds the leftmost match of re that ends at pos, searching
// the current line no further than lookBehind units back.
func matchBefore(doc *textdoc.Doc, pos int, re *regexp.Regexp) (int, string, bool) {
	line := doc.LineAt(pos)
	start := max(line.From, pos-lookBehind)
	text := doc.Slice(start, pos)

	loc := re.FindStringIndex(text)
	if loc == nil {
		return 0, "", false
	}
	token := text[loc[0]:]
	return pos - utf16Len(token), token, true
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// WordBefore reports whether the cursor is preceded by at least one word
// character on its line.
func WordBefore(doc *textdoc.Doc, pos int) bool {
	line := doc.LineAt(pos)
	text := doc.Slice(max(line.From, pos-lookBehind), pos)
	return wordSuffix.MatchString(text)
}

var wordSuffix = regexp.MustCompile(`\w+$`)
