package completion

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

var kindNames = map[protocol.CompletionItemKind]string{
	protocol.CompletionItemKindText:          "Text",
	protocol.CompletionItemKindMethod:        "Method",
	protocol.CompletionItemKindFunction:      "Function",
	protocol.CompletionItemKindConstructor:   "Constructor",
	protocol.CompletionItemKindField:         "Field",
	protocol.CompletionItemKindVariable:      "Variable",
	protocol.CompletionItemKindClass:         "Class",
	protocol.CompletionItemKindInterface:     "Interface",
	protocol.CompletionItemKindModule:        "Module",
	protocol.CompletionItemKindProperty:      "Property",
	protocol.CompletionItemKindUnit:          "Unit",
	protocol.CompletionItemKindValue:         "Value",
	protocol.CompletionItemKindEnum:          "Enum",
	protocol.CompletionItemKindKeyword:       "Keyword",
	protocol.CompletionItemKindSnippet:       "Snippet",
	protocol.CompletionItemKindColor:         "Color",
	protocol.CompletionItemKindFile:          "File",
	protocol.CompletionItemKindReference:     "Reference",
	protocol.CompletionItemKindFolder:        "Folder",
	protocol.CompletionItemKindEnumMember:    "EnumMember",
	protocol.CompletionItemKindConstant:      "Constant",
	protocol.CompletionItemKindStruct:        "Struct",
	protocol.CompletionItemKindEvent:         "Event",
	protocol.CompletionItemKindOperator:      "Operator",
	protocol.CompletionItemKindTypeParameter: "TypeParameter",
}

// KindName is the lower-cased name of an LSP completion item kind, or ""
// for an unknown kind.
func KindName(kind protocol.CompletionItemKind) string {
	return strings.ToLower(kindNames[kind])
}

// FromLSP normalizes a server completion item. The apply text prefers the
// item's text edit over its label; sort and filter text default to the
// label.
func FromLSP(item protocol.CompletionItem) Option {
	opt := Option{
		Label:      item.Label,
		Apply:      item.Label,
		SortText:   item.Label,
		FilterText: item.Label,
	}
	if item.Detail != nil {
		opt.Detail = *item.Detail
	}
	if item.Kind != nil {
		opt.Type = KindName(*item.Kind)
	}
	if item.SortText != nil {
		opt.SortText = *item.SortText
	}
	if item.FilterText != nil {
		opt.FilterText = *item.FilterText
	}
	switch edit := item.TextEdit.(type) {
	case protocol.TextEdit:
		opt.Apply = edit.NewText
	case *protocol.TextEdit:
		opt.Apply = edit.NewText
	case protocol.InsertReplaceEdit:
		opt.Apply = edit.NewText
	case *protocol.InsertReplaceEdit:
		opt.Apply = edit.NewText
	}
	opt.Info = FormatContents(item.Documentation)
	return opt
}

// FormatContents renders hover or documentation contents as plain text.
// Arrays are joined with each element followed by a blank line.
func FormatContents(contents any) string {
	switch c := contents.(type) {
	case nil:
		return ""
	case string:
		return c
	case protocol.MarkupContent:
		return c.Value
	case *protocol.MarkupContent:
		return c.Value
	case protocol.MarkedStringStruct:
		return c.Value
	case []any:
		var b strings.Builder
		for _, item := range c {
			b.WriteString(FormatContents(item))
			b.WriteString("\n\n")
		}
		return b.String()
	case []string:
		var b strings.Builder
		for _, item := range c {
			b.WriteString(item)
			b.WriteString("\n\n")
		}
		return b.String()
	case map[string]any:
		if value, ok := c["value"].(string); ok {
			return value
		}
	}
	return ""
}
