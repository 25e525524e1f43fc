package langserver

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dhamidi/pyscope/project"
	"github.com/dhamidi/pyscope/python"
)

// Workspace holds open documents and the bootstrap file map. It serves
// module source in that order, then falls back to an optional provider.
type Workspace struct {
	mu        sync.RWMutex
	rootDir   string
	docs      map[string]*Document
	bootstrap map[string]string
	modules   python.MapProvider
	fallback  python.SourceProvider
}

type Document struct {
	URI     string
	Module  string
	Text    string
	Version int32
}

func NewWorkspace(fallback python.SourceProvider) *Workspace {
	return &Workspace{
		docs:      make(map[string]*Document),
		bootstrap: make(map[string]string),
		modules:   make(python.MapProvider),
		fallback:  fallback,
	}
}

func (w *Workspace) SetRoot(rootDir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rootDir = rootDir
	for _, doc := range w.docs {
		doc.Module = w.moduleNameLocked(doc.URI)
	}
}

func (w *Workspace) RootDir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootDir
}

// SetBootstrap replaces the bootstrap file map. Keys are slash-separated
// paths such as pkg/__init__.py.
func (w *Workspace) SetBootstrap(files map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bootstrap = make(map[string]string, len(files))
	for rel, text := range files {
		w.bootstrap[rel] = text
	}
	w.modules = project.FileMapProvider(w.bootstrap)
}

func (w *Workspace) UpdateFile(uri, text string, version int32) *Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc := &Document{URI: uri, Module: w.moduleNameLocked(uri), Text: text, Version: version}
	w.docs[uri] = doc
	return doc
}

func (w *Workspace) RemoveFile(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, uri)
}

func (w *Workspace) GetFile(uri string) *Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.docs[uri]
	if !ok {
		return nil
	}
	copied := *doc
	return &copied
}

// Source implements python.SourceProvider.
func (w *Workspace) Source(name string) (string, error) {
	w.mu.RLock()
	for _, doc := range w.docs {
		if doc.Module == name {
			w.mu.RUnlock()
			return doc.Text, nil
		}
	}
	text, ok := w.modules[name]
	fallback := w.fallback
	w.mu.RUnlock()

	if ok {
		return text, nil
	}
	if fallback != nil {
		return fallback.Source(name)
	}
	return "", fmt.Errorf("%w: %s", python.ErrModuleNotFound, name)
}

// Modules lists the importable module names known without touching the
// fallback provider.
func (w *Workspace) Modules() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range w.modules {
		add(name)
	}
	for _, doc := range w.docs {
		add(doc.Module)
	}
	sort.Strings(names)
	return names
}

// moduleNameLocked derives a dotted module name from a document URI,
// relative to the workspace root when the document lies under it.
func (w *Workspace) moduleNameLocked(uri string) string {
	p, err := project.URIToPath(uri)
	if err != nil {
		log.Warningf("module name for %s: %s", uri, err)
		return ""
	}
	if w.rootDir != "" {
		if rel, err := filepath.Rel(w.rootDir, p); err == nil && !strings.HasPrefix(rel, "..") {
			if name, ok := project.ModuleName(rel); ok {
				return name
			}
		}
	}
	base := path.Base(filepath.ToSlash(p))
	if name, ok := project.ModuleName(base); ok {
		return name
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func isNotFound(err error) bool {
	return errors.Is(err, python.ErrModuleNotFound)
}
