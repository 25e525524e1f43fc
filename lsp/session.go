// Package lsp drives a language server on behalf of one editor view.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dhamidi/pyscope/textdoc"
	"github.com/dhamidi/pyscope/transport"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("pyscope.lsp")

var ErrNotReady = errors.New("language server session not ready")

const (
	DefaultRequestTimeout          = 10 * time.Second
	DefaultInitializeTimeoutFactor = 3
	DefaultChangeDelay             = 500 * time.Millisecond

	MethodBootstrapFileSystem = "pyright/bootstrapFileSystem"
)

type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateDestroyed
)

var stateNames = map[State]string{
	StateCreated:      "Created",
	StateInitializing: "Initializing",
	StateReady:        "Ready",
	StateDestroyed:    "Destroyed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Options identify the document a session serves.
type Options struct {
	RootURI     string
	DocumentURI string
	LanguageID  string

	// Bootstrap is the file map sent to the server before initialize.
	Bootstrap             map[string]string
	InitializationOptions any
	Locale                string
}

// Host is the editor side of a session.
type Host interface {
	Text() string
	SetDiagnostics([]Diagnostic)
}

type Option func(*Session)

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

func WithInitializeTimeoutFactor(n int) Option {
	return func(s *Session) {
		s.initFactor = n
	}
}

func WithChangeDelay(d time.Duration) Option {
	return func(s *Session) {
		s.changeDelay = d
	}
}

// WithLogSink replaces the default handling of window/logMessage.
func WithLogSink(fn func(protocol.LogMessageParams)) Option {
	return func(s *Session) {
		s.logSink = fn
	}
}

type Session struct {
	opts   Options
	host   Host
	client *transport.Client

	timeout     time.Duration
	initFactor  int
	changeDelay time.Duration
	logSink     func(protocol.LogMessageParams)

	mu          sync.Mutex
	state       State
	caps        serverCapabilities
	version     protocol.Integer
	timer       *time.Timer
	raw         []protocol.Diagnostic
	diagnostics []Diagnostic
	generation  map[string]uint64

	ready     chan struct{}
	readyOnce sync.Once
	startErr  error
}

type serverCapabilities struct {
	HoverProvider         json.RawMessage                `json:"hoverProvider,omitempty"`
	CompletionProvider    *protocol.CompletionOptions    `json:"completionProvider,omitempty"`
	SignatureHelpProvider *protocol.SignatureHelpOptions `json:"signatureHelpProvider,omitempty"`
}

func (c serverCapabilities) hover() bool {
	switch string(c.HoverProvider) {
	case "", "null", "false":
		return false
	}
	return true
}

func (c serverCapabilities) triggerCharacters() []string {
	if c.CompletionProvider == nil {
		return nil
	}
	return c.CompletionProvider.TriggerCharacters
}

func NewSession(opts Options, host Host, client *transport.Client, settings ...Option) *Session {
	s := &Session{
		opts:        opts,
		host:        host,
		client:      client,
		timeout:     DefaultRequestTimeout,
		initFactor:  DefaultInitializeTimeoutFactor,
		changeDelay: DefaultChangeDelay,
		logSink:     defaultLogSink,
		generation:  make(map[string]uint64),
		ready:       make(chan struct{}),
	}
	for _, setting := range settings {
		setting(s)
	}
	client.OnNotification(s.processNotification)
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start bootstraps the server file system, runs the initialize handshake
// and opens the document.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("start session: already %s", state)
	}
	s.state = StateInitializing
	s.mu.Unlock()

	err := s.initialize(ctx)

	s.mu.Lock()
	s.startErr = err
	if err == nil && s.state == StateInitializing {
		s.state = StateReady
	}
	s.mu.Unlock()
	s.markDone()

	if err != nil {
		log.Errorf("initialize %s: %s", s.opts.DocumentURI, err)
	}
	return err
}

func (s *Session) initialize(ctx context.Context) error {
	files := s.opts.Bootstrap
	if files == nil {
		files = map[string]string{}
	}
	if err := s.client.Notify(ctx, MethodBootstrapFileSystem, map[string]any{"files": files}); err != nil {
		return fmt.Errorf("bootstrap file system: %w", err)
	}

	var result struct {
		Capabilities serverCapabilities `json:"capabilities"`
	}
	timeout := s.timeout * time.Duration(s.initFactor)
	if err := s.request(ctx, protocol.MethodInitialize, s.initializeParams(), &result, timeout); err != nil {
		return err
	}

	s.mu.Lock()
	s.caps = result.Capabilities
	s.mu.Unlock()

	if err := s.client.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}
	open := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        s.opts.DocumentURI,
			LanguageID: s.opts.LanguageID,
			Version:    0,
			Text:       s.host.Text(),
		},
	}
	if err := s.client.Notify(ctx, protocol.MethodTextDocumentDidOpen, open); err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	return nil
}

func (s *Session) initializeParams() map[string]any {
	params := map[string]any{
		"processId": nil,
		"rootUri":   s.opts.RootURI,
		"workspaceFolders": []protocol.WorkspaceFolder{
			{URI: s.opts.RootURI, Name: "src"},
		},
		"initializationOptions": s.opts.InitializationOptions,
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"hover": map[string]any{
					"contentFormat": []protocol.MarkupKind{protocol.MarkupKindPlainText, protocol.MarkupKindMarkdown},
				},
				"synchronization": map[string]any{
					"willSave":          false,
					"didSave":           false,
					"willSaveWaitUntil": false,
				},
				"completion": map[string]any{
					"completionItem": map[string]any{
						"snippetSupport":          false,
						"commitCharactersSupport": true,
						"documentationFormat":     []protocol.MarkupKind{protocol.MarkupKindPlainText, protocol.MarkupKindMarkdown},
						"deprecatedSupport":       false,
						"preselectSupport":        false,
					},
					"contextSupport": true,
				},
				"signatureHelp": map[string]any{
					"signatureInformation": map[string]any{
						"documentationFormat":    []protocol.MarkupKind{protocol.MarkupKindPlainText, protocol.MarkupKindMarkdown},
						"activeParameterSupport": true,
						"parameterInformation": map[string]any{
							"labelOffsetSupport": true,
						},
					},
				},
				"publishDiagnostics": map[string]any{
					"tagSupport": map[string]any{
						"valueSet": []protocol.DiagnosticTag{
							protocol.DiagnosticTagUnnecessary,
							protocol.DiagnosticTagDeprecated,
						},
					},
				},
			},
			"workspace": map[string]any{
				"workspaceFolders": true,
			},
		},
	}
	if s.opts.Locale != "" {
		params["locale"] = s.opts.Locale
	}
	return params
}

// WaitReady blocks until the handshake finished. It returns the handshake
// error, if any.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	if s.state != StateReady {
		return ErrNotReady
	}
	return nil
}

// DocumentChanged restarts the change timer. When it fires the full text
// of the document is sent.
func (s *Session) DocumentChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.changeDelay, func() {
		if err := s.Sync(context.Background()); err != nil && !errors.Is(err, ErrNotReady) {
			log.Warningf("sync %s: %s", s.opts.DocumentURI, err)
		}
	})
}

// Sync sends the current text at once and cancels a pending change.
func (s *Session) Sync(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.version++
	version := s.version
	s.mu.Unlock()

	change := protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: s.opts.DocumentURI},
			Version:                version,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: s.host.Text()}},
	}
	if err := s.client.Notify(ctx, protocol.MethodTextDocumentDidChange, change); err != nil {
		return fmt.Errorf("change document: %w", err)
	}
	return nil
}

// Diagnostics returns the last diagnostics applied to the document.
func (s *Session) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.diagnostics...)
}

// Close destroys the session and closes its client.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return nil
	}
	started := s.state != StateCreated
	s.state = StateDestroyed
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	if !started {
		s.markDone()
	}
	return s.client.Close()
}

func (s *Session) markDone() {
	s.readyOnce.Do(func() {
		close(s.ready)
	})
}

func (s *Session) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateReady
}

func (s *Session) doc() *textdoc.Doc {
	return textdoc.New(s.host.Text())
}

// request runs one traced, timed request.
func (s *Session) request(ctx context.Context, method string, params, result any, timeout time.Duration) error {
	ctx, span := startRequestSpan(ctx, method, s.opts.DocumentURI)
	defer span.End()

	start := time.Now()
	err := s.client.Request(ctx, method, params, result, timeout)
	recordRequest(ctx, method, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// nextGeneration marks a new request of kind as the latest one.
func (s *Session) nextGeneration(kind string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation[kind]++
	return s.generation[kind]
}

func (s *Session) stale(ctx context.Context, kind string, gen uint64) bool {
	s.mu.Lock()
	latest := s.generation[kind]
	s.mu.Unlock()
	if gen < latest {
		recordStale(ctx, kind)
		log.Debugf("discarding stale %s response (generation %d < %d)", kind, gen, latest)
		return true
	}
	return false
}
