package lsp

import (
	"context"

	"github.com/dhamidi/pyscope/completion"
	"github.com/dhamidi/pyscope/transport"
)

// Extension bundles a session with the editor-facing providers. Provider
// failures are logged and reported as no result.
type Extension struct {
	session *Session
}

// NewExtension creates a session and starts its handshake in the
// background.
func NewExtension(opts Options, host Host, client *transport.Client, settings ...Option) *Extension {
	s := NewSession(opts, host, client, settings...)
	go s.Start(context.Background())
	return &Extension{session: s}
}

func (e *Extension) Session() *Session {
	return e.session
}

func (e *Extension) HoverTooltip(ctx context.Context, offset int) *Tooltip {
	tip, err := e.session.Hover(ctx, offset)
	if err != nil {
		log.Warningf("hover at %d: %s", offset, err)
		return nil
	}
	return tip
}

func (e *Extension) CompletionSource(ctx context.Context, req CompletionRequest) *completion.Result {
	res, err := e.session.Complete(ctx, req)
	if err != nil {
		log.Warningf("completion at %d: %s", req.Offset, err)
		return nil
	}
	return res
}

func (e *Extension) SignatureHelp(ctx context.Context, offset int) *Signature {
	sig, err := e.session.SignatureHelp(ctx, offset)
	if err != nil {
		log.Warningf("signature help at %d: %s", offset, err)
		return nil
	}
	return sig
}

func (e *Extension) DocumentChanged() {
	e.session.DocumentChanged()
}

func (e *Extension) Close() error {
	return e.session.Close()
}
