package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhamidi/pyscope/completion"
	"github.com/dhamidi/pyscope/textdoc"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Signature is the active signature of a signature help response. The
// active parameter spans Label[ParamFrom:ParamTo] in UTF-16 code units;
// both are the label length when no parameter is active.
type Signature struct {
	// Pos is the offset the help was requested at.
	Pos           int
	Label         string
	Documentation string
	ParamFrom     int
	ParamTo       int
	ParamDoc      string
}

// ActiveParameter returns the label text of the active parameter.
func (sig *Signature) ActiveParameter() string {
	label := textdoc.New(sig.Label)
	return label.Slice(sig.ParamFrom, sig.ParamTo)
}

// SignatureHelp asks the server for the signature of the call around
// offset. It returns nil without error when the session is not ready, the
// server has no signature help, or there is no signature.
func (s *Session) SignatureHelp(ctx context.Context, offset int) (*Signature, error) {
	s.mu.Lock()
	enabled := s.state == StateReady && s.caps.SignatureHelpProvider != nil
	s.mu.Unlock()
	if !enabled {
		return nil, nil
	}
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}

	doc := s.doc()
	offset = min(max(offset, 0), doc.Len())
	gen := s.nextGeneration("signatureHelp")
	params := protocol.SignatureHelpParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: s.opts.DocumentURI},
			Position:     doc.OffsetToPosition(offset),
		},
	}
	var help *protocol.SignatureHelp
	if err := s.request(ctx, protocol.MethodTextDocumentSignatureHelp, params, &help, s.timeout); err != nil {
		return nil, err
	}
	if help == nil || s.stale(ctx, "signatureHelp", gen) {
		return nil, nil
	}
	sig, err := activeSignature(help)
	if err != nil || sig == nil {
		return nil, err
	}
	sig.Pos = offset
	return sig, nil
}

// activeSignature picks the active signature and parameter. A signature's
// own activeParameter wins over the response-wide one.
func activeSignature(help *protocol.SignatureHelp) (*Signature, error) {
	if len(help.Signatures) == 0 {
		return nil, nil
	}
	index := 0
	if help.ActiveSignature != nil && int(*help.ActiveSignature) < len(help.Signatures) {
		index = int(*help.ActiveSignature)
	}
	info := help.Signatures[index]

	width := textdoc.New(info.Label).Len()
	sig := &Signature{
		Label:         info.Label,
		Documentation: completion.FormatContents(info.Documentation),
		ParamFrom:     width,
		ParamTo:       width,
	}

	active := info.ActiveParameter
	if active == nil {
		active = help.ActiveParameter
	}
	if active == nil || int(*active) >= len(info.Parameters) {
		return sig, nil
	}
	param := info.Parameters[*active]
	sig.ParamDoc = completion.FormatContents(param.Documentation)

	switch label := param.Label.(type) {
	case []protocol.UInteger:
		if len(label) != 2 || label[0] > label[1] || int(label[1]) > width {
			return nil, fmt.Errorf("signature help: parameter label %v outside %q", label, info.Label)
		}
		sig.ParamFrom, sig.ParamTo = int(label[0]), int(label[1])
	case string:
		if i := strings.Index(info.Label, label); i >= 0 {
			sig.ParamFrom = textdoc.OffsetFromBytes(info.Label, i)
			sig.ParamTo = textdoc.OffsetFromBytes(info.Label, i+len(label))
		}
	}
	return sig, nil
}
