// Package langserver is a Python language server built on the module
// analyzer. It publishes import diagnostics and answers hover, completion
// and signature help requests for top-level names.
package langserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dhamidi/pyscope/project"
	"github.com/dhamidi/pyscope/python"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const lsName = "pyscope"

// MethodBootstrapFileSystem carries the initial file map. It is accepted
// before initialize.
const MethodBootstrapFileSystem = "pyright/bootstrapFileSystem"

var log = commonlog.GetLogger("pyscope.langserver")

type Server struct {
	workspace *Workspace
	handler   protocol.Handler
	version   string
	rootDir   string
	files     map[string]string
	fallback  python.SourceProvider
}

type Option func(*Server)

// WithFiles preloads the bootstrap file map.
func WithFiles(files map[string]string) Option {
	return func(s *Server) {
		s.files = files
	}
}

// WithSourceProvider resolves modules that are neither open nor part of
// the bootstrap file map.
func WithSourceProvider(p python.SourceProvider) Option {
	return func(s *Server) {
		s.fallback = p
	}
}

// WithRootDir sets the directory module names are derived from when the
// client does not send a root.
func WithRootDir(dir string) Option {
	return func(s *Server) {
		s.rootDir = dir
	}
}

func New(version string, opts ...Option) *Server {
	s := &Server{version: version}
	for _, opt := range opts {
		opt(s)
	}

	s.workspace = NewWorkspace(s.fallback)
	s.workspace.SetRoot(s.rootDir)
	if s.files != nil {
		s.workspace.SetBootstrap(s.files)
	}

	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.textDocumentDidOpen,
		TextDocumentDidChange:  s.textDocumentDidChange,
		TextDocumentDidClose:   s.textDocumentDidClose,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentCompletion: s.textDocumentCompletion,

		TextDocumentSignatureHelp: s.textDocumentSignatureHelp,
	}
	return s
}

func (s *Server) Workspace() *Workspace {
	return s.workspace
}

// Handle implements glsp.Handler.
func (s *Server) Handle(ctx *glsp.Context) (r any, validMethod bool, validParams bool, err error) {
	if ctx.Method == MethodBootstrapFileSystem {
		var params struct {
			Files map[string]string `json:"files"`
		}
		if err := json.Unmarshal(ctx.Params, &params); err != nil {
			return nil, true, false, err
		}
		s.workspace.SetBootstrap(params.Files)
		log.Infof("bootstrapped %d files", len(params.Files))
		return nil, true, true, nil
	}
	return s.handler.Handle(ctx)
}

func (s *Server) RunStdio() error {
	return server.NewServer(s, lsName, false).RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if root := rootDir(params); root != "" {
		s.workspace.SetRoot(root)
	}

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
	}
	capabilities.HoverProvider = true
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}
	capabilities.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters: []string{"(", ","},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func rootDir(params *protocol.InitializeParams) string {
	if params.RootURI != nil && *params.RootURI != "" {
		if p, err := project.URIToPath(*params.RootURI); err == nil {
			return filepath.Clean(p)
		}
	}
	if params.RootPath != nil && *params.RootPath != "" {
		return *params.RootPath
	}
	for _, folder := range params.WorkspaceFolders {
		if p, err := project.URIToPath(folder.URI); err == nil {
			return filepath.Clean(p)
		}
	}
	return ""
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	ctx.Notify(protocol.ServerWindowLogMessage, protocol.LogMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: fmt.Sprintf("%s %s ready, %d modules known", lsName, s.version, len(s.workspace.Modules())),
	})
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.workspace.UpdateFile(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.publish(ctx, doc)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := change.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return fmt.Errorf("did change %s: incremental changes are not supported", params.TextDocument.URI)
	}
	doc := s.workspace.UpdateFile(params.TextDocument.URI, whole.Text, params.TextDocument.Version)
	s.publish(ctx, doc)
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.workspace.RemoveFile(params.TextDocument.URI)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *Server) publish(ctx *glsp.Context, doc *Document) {
	a, err := s.analyze(context.Background(), doc)
	if err != nil {
		log.Errorf("analyze %s: %s", doc.URI, err)
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: a.diagnostics(),
	})
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(kind protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &kind
}
