package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dhamidi/pyscope/langserver"
	"github.com/dhamidi/pyscope/lsp"
	"github.com/dhamidi/pyscope/project"
	"github.com/dhamidi/pyscope/textdoc"
	"github.com/dhamidi/pyscope/transport"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// fileHost serves a file read once from disk.
type fileHost struct {
	text string

	mu          sync.Mutex
	diagnostics chan []lsp.Diagnostic
}

func newFileHost(text string) *fileHost {
	return &fileHost{text: text, diagnostics: make(chan []lsp.Diagnostic, 1)}
}

func (h *fileHost) Text() string {
	return h.text
}

func (h *fileHost) SetDiagnostics(d []lsp.Diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.diagnostics:
	default:
	}
	h.diagnostics <- d
}

// dial connects to the configured language server command, or to the
// in-process server when none is set.
func dial(ctx context.Context, p *project.Project) (*transport.Client, error) {
	if command := p.Config.Server.Command; len(command) > 0 {
		port, err := transport.StartProcess(ctx, command, p.RootDir)
		if err != nil {
			return nil, err
		}
		return transport.NewClient(port), nil
	}
	server := langserver.New(version, langserver.WithSourceProvider(p.Provider()))
	return transport.NewClient(transport.NewHandlerPort(server)), nil
}

// openSession starts a session for path and waits until it is ready.
func openSession(ctx context.Context, p *project.Project, path string) (*lsp.Session, *fileHost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	files, err := p.BootstrapFiles()
	if err != nil {
		return nil, nil, err
	}
	client, err := dial(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	cfg := p.Config.Server
	host := newFileHost(string(data))
	s := lsp.NewSession(lsp.Options{
		RootURI:     p.RootURI(),
		DocumentURI: project.FileURI(abs),
		LanguageID:  cfg.LanguageID,
		Bootstrap:   files,
	}, host, client,
		lsp.WithRequestTimeout(cfg.RequestTimeout),
		lsp.WithInitializeTimeoutFactor(cfg.InitializeTimeoutFactor),
		lsp.WithChangeDelay(cfg.ChangeDelay),
	)
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, host, nil
}

// parsePosition turns a 1-based "line:col" into an offset in text.
func parsePosition(text, arg string) (int, error) {
	lineStr, colStr, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, fmt.Errorf("position %q: want line:col", arg)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return 0, fmt.Errorf("position %q: bad line", arg)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 1 {
		return 0, fmt.Errorf("position %q: bad column", arg)
	}
	offset, ok := textdoc.New(text).PositionToOffset(protocol.Position{
		Line:      protocol.UInteger(line - 1),
		Character: protocol.UInteger(col - 1),
	})
	if !ok {
		return 0, fmt.Errorf("position %q is outside the file", arg)
	}
	return offset, nil
}
