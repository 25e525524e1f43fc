package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dhamidi/pyscope/completion"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Tooltip is a hover result in document offsets. To is only meaningful
// when HasEnd is set.
type Tooltip struct {
	From   int
	To     int
	HasEnd bool
	Text   string
}

type CompletionRequest struct {
	Offset int
	// Explicit is set when the user asked for completion directly.
	Explicit bool
}

// Hover asks the server about the text at offset. It returns nil without
// error when the session is not ready, the server has no hover support,
// the offset lies in code reported as unnecessary, or there is nothing to
// show.
func (s *Session) Hover(ctx context.Context, offset int) (*Tooltip, error) {
	s.mu.Lock()
	enabled := s.state == StateReady && s.caps.hover()
	s.mu.Unlock()
	if !enabled {
		return nil, nil
	}

	pos := s.doc().OffsetToPosition(offset)
	if s.knownUnreachable(pos) {
		return nil, nil
	}
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}

	gen := s.nextGeneration("hover")
	params := protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: s.opts.DocumentURI},
			Position:     pos,
		},
	}
	var raw json.RawMessage
	if err := s.request(ctx, protocol.MethodTextDocumentHover, params, &raw, s.timeout); err != nil {
		return nil, err
	}
	if len(raw) == 0 || s.stale(ctx, "hover", gen) {
		return nil, nil
	}

	var hover struct {
		Contents json.RawMessage `json:"contents"`
		Range    *protocol.Range `json:"range"`
	}
	if err := json.Unmarshal(raw, &hover); err != nil {
		return nil, fmt.Errorf("decode hover: %w", err)
	}
	var contents any
	if len(hover.Contents) > 0 {
		if err := json.Unmarshal(hover.Contents, &contents); err != nil {
			return nil, fmt.Errorf("decode hover contents: %w", err)
		}
	}

	doc := s.doc()
	tip := &Tooltip{Text: completion.FormatContents(contents)}
	from, ok := doc.PositionToOffset(pos)
	if hover.Range != nil {
		from, ok = doc.PositionToOffset(hover.Range.Start)
		tip.To, tip.HasEnd = doc.PositionToOffset(hover.Range.End)
	}
	if !ok {
		return nil, nil
	}
	tip.From = from
	return tip, nil
}

func (s *Session) knownUnreachable(pos protocol.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.raw {
		if slices.Contains(d.Tags, protocol.DiagnosticTagUnnecessary) && inRange(d.Range, pos) {
			return true
		}
	}
	return false
}

// Complete asks the server for completions at req.Offset and ranks them
// against the text before the cursor.
func (s *Session) Complete(ctx context.Context, req CompletionRequest) (*completion.Result, error) {
	s.mu.Lock()
	enabled := s.state == StateReady && s.caps.CompletionProvider != nil
	triggers := s.caps.triggerCharacters()
	s.mu.Unlock()
	if !enabled {
		return nil, nil
	}

	doc := s.doc()
	offset := min(max(req.Offset, 0), doc.Len())
	cc := &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerKindInvoked}
	if line := doc.LineAt(offset); !req.Explicit && offset > line.From {
		prev := doc.Slice(offset-1, offset)
		if slices.Contains(triggers, prev) {
			cc.TriggerKind = protocol.CompletionTriggerKindTriggerCharacter
			cc.TriggerCharacter = &prev
		}
	}
	if cc.TriggerKind == protocol.CompletionTriggerKindInvoked && !completion.WordBefore(doc, offset) {
		return nil, nil
	}
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}

	gen := s.nextGeneration("completion")
	params := protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: s.opts.DocumentURI},
			Position:     doc.OffsetToPosition(offset),
		},
		Context: cc,
	}
	var raw json.RawMessage
	if err := s.request(ctx, protocol.MethodTextDocumentCompletion, params, &raw, s.timeout); err != nil {
		return nil, err
	}
	if len(raw) == 0 || s.stale(ctx, "completion", gen) {
		return nil, nil
	}

	items, err := decodeCompletionItems(raw)
	if err != nil {
		return nil, err
	}
	options := make([]completion.Option, 0, len(items))
	for _, item := range items {
		// Edits outside the completed word, usually auto-imports, are not applied.
		if len(item.AdditionalTextEdits) > 0 {
			continue
		}
		options = append(options, completion.FromLSP(item))
	}
	res := completion.Rank(options, doc, offset)
	return &res, nil
}

// decodeCompletionItems accepts an item array or a CompletionList.
func decodeCompletionItems(raw json.RawMessage) ([]protocol.CompletionItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var list protocol.CompletionList
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode completion list: %w", err)
		}
		return list.Items, nil
	}
	var items []protocol.CompletionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode completion items: %w", err)
	}
	return items, nil
}

func inRange(r protocol.Range, pos protocol.Position) bool {
	return !before(pos, r.Start) && !before(r.End, pos)
}

func before(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}
