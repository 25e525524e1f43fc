package langserver

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf16"

	"github.com/dhamidi/pyscope/python"
	"github.com/dhamidi/pyscope/textdoc"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var (
	identBefore = regexp.MustCompile(`[\p{L}\p{N}_]*$`)
	identAfter  = regexp.MustCompile(`^[\p{L}\p{N}_]*`)
	// qualified matches "a.b." style module paths right before the cursor.
	qualified = regexp.MustCompile(`([\p{L}_][\p{L}\p{N}_]*(?:\.[\p{L}_][\p{L}\p{N}_]*)*)\.[\p{L}\p{N}_]*$`)
)

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	d := s.workspace.GetFile(params.TextDocument.URI)
	if d == nil {
		return nil, nil
	}
	a, err := s.analyze(context.Background(), d)
	if err != nil {
		return nil, err
	}
	offset, ok := a.doc.PositionToOffset(params.Position)
	if !ok {
		return nil, nil
	}

	from, to, word := wordAt(a.doc, offset)
	if word == "" || a.doc.Slice(from-1, from) == "." {
		return nil, nil
	}
	b, ok := a.binding(word)
	if !ok {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: describe(b),
		},
		Range: &protocol.Range{
			Start: a.doc.OffsetToPosition(from),
			End:   a.doc.OffsetToPosition(to),
		},
	}, nil
}

// wordAt returns the identifier touching offset and its bounds.
func wordAt(doc *textdoc.Doc, offset int) (int, int, string) {
	line := doc.LineAt(offset)
	before := identBefore.FindString(doc.Slice(line.From, offset))
	after := identAfter.FindString(doc.Slice(offset, line.To))
	from := offset - utf16Len(before)
	return from, offset + utf16Len(after), before + after
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func describe(b python.Binding) string {
	switch {
	case b.Kind == python.BindingImport && b.Target == python.BindingImport:
		return fmt.Sprintf("```python\n(module) %s\n```\n\nImported module `%s`", b.Name, b.From)
	case b.Kind == python.BindingImport:
		return fmt.Sprintf("```python\n(%s) %s\n```\n\nImported from `%s`", b.Target, b.Name, b.From)
	default:
		return fmt.Sprintf("```python\n(%s) %s\n```\n\nDefined at line %d", b.Kind, b.Name, b.Span.Start.Line)
	}
}

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	d := s.workspace.GetFile(params.TextDocument.URI)
	if d == nil {
		return nil, nil
	}
	bg := context.Background()
	a, err := s.analyze(bg, d)
	if err != nil {
		return nil, err
	}
	offset, ok := a.doc.PositionToOffset(params.Position)
	if !ok {
		return nil, nil
	}

	line := a.doc.LineAt(offset)
	prefix := a.doc.Slice(line.From, offset)
	if m := qualified.FindStringSubmatch(prefix); m != nil {
		return s.memberCompletions(bg, a, m[1]), nil
	}

	var items []protocol.CompletionItem
	if a.result != nil {
		for _, name := range a.result.Names.Sorted() {
			items = append(items, bindingItem(a.result.Bindings[name], "0"))
		}
	}
	for _, name := range s.workspace.Modules() {
		if a.result != nil && a.result.Names.Has(name) {
			continue
		}
		items = append(items, completionItem(name, protocol.CompletionItemKindModule, "module", "1"))
	}
	return protocol.CompletionList{Items: items}, nil
}

// memberCompletions lists the names of the module bound to qualifier.
func (s *Server) memberCompletions(ctx context.Context, a *analysis, qualifier string) protocol.CompletionList {
	list := protocol.CompletionList{Items: []protocol.CompletionItem{}}
	b, ok := a.binding(qualifier)
	if !ok || b.Kind != python.BindingImport || b.Target != python.BindingImport {
		return list
	}
	m, err := a.env.LoadModule(ctx, b.From)
	if err != nil {
		if isNotFound(err) {
			log.Debugf("member completion: %s", err)
		} else {
			log.Warningf("member completion: %s", err)
		}
		return list
	}
	res, err := m.Names(ctx)
	if err != nil {
		log.Warningf("member completion: %s", err)
		return list
	}
	for _, name := range res.Names.Sorted() {
		list.Items = append(list.Items, bindingItem(res.Bindings[name], "0"))
	}
	return list
}

func bindingItem(b python.Binding, tier string) protocol.CompletionItem {
	kind := b.Kind
	detail := b.Kind.String()
	if b.Kind == python.BindingImport {
		kind = b.Target
		detail = "from " + b.From
		if b.Target == python.BindingImport {
			detail = "module " + b.From
		}
	}
	return completionItem(b.Name, itemKind(kind), detail, tier)
}

func completionItem(label string, kind protocol.CompletionItemKind, detail, tier string) protocol.CompletionItem {
	sortText := tier + label
	return protocol.CompletionItem{
		Label:    label,
		Kind:     &kind,
		Detail:   &detail,
		SortText: &sortText,
	}
}

func itemKind(kind python.BindingKind) protocol.CompletionItemKind {
	switch kind {
	case python.BindingFunction:
		return protocol.CompletionItemKindFunction
	case python.BindingClass:
		return protocol.CompletionItemKindClass
	case python.BindingImport:
		return protocol.CompletionItemKindModule
	default:
		return protocol.CompletionItemKindVariable
	}
}
