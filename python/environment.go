package python

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/dhamidi/pyscope/python/parser"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pyscope.python")

// SourceProvider supplies module source text by dotted module name.
type SourceProvider interface {
	Source(name string) (string, error)
}

type SourceFunc func(name string) (string, error)

func (f SourceFunc) Source(name string) (string, error) {
	return f(name)
}

// MapProvider serves modules from memory, keyed by dotted name.
type MapProvider map[string]string

func (m MapProvider) Source(name string) (string, error) {
	text, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return text, nil
}

// Module pairs source text with its parsed tree. Modules are immutable once
// created and resolve their imports through the owning Environment.
type Module struct {
	name string
	text string
	tree *parser.Node
	env  *Environment
}

func (m *Module) Name() string {
	return m.name
}

func (m *Module) Text() string {
	return m.text
}

func (m *Module) Tree() *parser.Node {
	return m.tree
}

// Names analyzes the module. Unless the environment was created with
// WithAnalysisCache, the analysis is recomputed on every call.
func (m *Module) Names(ctx context.Context) (*Result, error) {
	return m.env.analyze(ctx, m)
}

// Environment maps module names to loaded modules. Entries are created on
// first use and never evicted. An Environment is not safe for concurrent
// use; independent analyses should use separate environments.
type Environment struct {
	provider  SourceProvider
	modules   map[string]*Module
	analyzing []string
	cache     map[string]*Result
}

type EnvOption func(*Environment)

// WithAnalysisCache memoizes each module's analysis by module name.
func WithAnalysisCache() EnvOption {
	return func(e *Environment) {
		e.cache = make(map[string]*Result)
	}
}

func NewEnvironment(provider SourceProvider, opts ...EnvOption) *Environment {
	e := &Environment{
		provider: provider,
		modules:  make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadModule returns the cached module for name, fetching and parsing it on
// first request.
func (e *Environment) LoadModule(ctx context.Context, name string) (*Module, error) {
	if m, ok := e.modules[name]; ok {
		return m, nil
	}

	text, err := e.provider.Source(name)
	if err != nil {
		return nil, fmt.Errorf("load module %s: %w", name, err)
	}

	m, err := e.NewModule(ctx, name, text)
	if err != nil {
		return nil, err
	}
	e.modules[name] = m
	log.Debugf("loaded module %s", name)
	return m, nil
}

// NewModule parses text as a module named name without caching it. Use it
// for buffers that change, such as an open editor document; imports the
// module makes still go through the environment.
func (e *Environment) NewModule(ctx context.Context, name, text string) (*Module, error) {
	tree, err := parser.Parse(ctx, []byte(text), parser.WithFile(name))
	if err != nil {
		return nil, fmt.Errorf("parse module %s: %w", name, err)
	}
	return &Module{name: name, text: text, tree: tree, env: e}, nil
}

// Modules lists the names of every module loaded so far.
func (e *Environment) Modules() []string {
	names := make([]string, 0, len(e.modules))
	for name := range e.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Environment) analyze(ctx context.Context, m *Module) (*Result, error) {
	if res, ok := e.cache[m.name]; ok {
		return res, nil
	}

	if i := slices.Index(e.analyzing, m.name); i >= 0 {
		chain := append(slices.Clone(e.analyzing[i:]), m.name)
		return nil, &CyclicImportError{Chain: chain}
	}
	e.analyzing = append(e.analyzing, m.name)
	defer func() {
		e.analyzing = e.analyzing[:len(e.analyzing)-1]
	}()

	res, err := analyzeModule(ctx, m)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache[m.name] = res
	}
	return res, nil
}
