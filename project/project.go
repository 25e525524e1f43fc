// Package project locates Python sources on disk and turns them into
// module providers and language server bootstrap payloads.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhamidi/pyscope/python"
	"github.com/gobwas/glob"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pyscope.project")

// Project is a directory with an optional pyscope.toml.
type Project struct {
	RootDir string
	Config  *Config
}

// Load reads the project in the current directory.
func Load() (*Project, error) {
	return LoadFrom(".", "")
}

// LoadFrom reads the project rooted at rootDir. An empty configPath means
// rootDir/pyscope.toml.
func LoadFrom(rootDir, configPath string) (*Project, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rootDir, err)
	}
	if configPath == "" {
		configPath = filepath.Join(abs, ConfigFile)
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &Project{RootDir: abs, Config: cfg}, nil
}

// SearchPaths returns the configured search paths resolved against the
// project root.
func (p *Project) SearchPaths() []string {
	paths := make([]string, 0, len(p.Config.SearchPaths))
	for _, sp := range p.Config.SearchPaths {
		if !filepath.IsAbs(sp) {
			sp = filepath.Join(p.RootDir, sp)
		}
		paths = append(paths, filepath.Clean(sp))
	}
	return paths
}

func (p *Project) Provider() DirProvider {
	return DirProvider{Roots: p.SearchPaths()}
}

// RootURI is the configured root URI, or a file URI for the first search
// path.
func (p *Project) RootURI() string {
	if p.Config.Server.RootURI != "" {
		return p.Config.Server.RootURI
	}
	return DirURI(p.SearchPaths()[0])
}

// BootstrapFiles collects the bootstrap payload over all search paths.
// Earlier search paths win for duplicate relative paths.
func (p *Project) BootstrapFiles() (map[string]string, error) {
	files := make(map[string]string)
	for _, root := range p.SearchPaths() {
		found, err := CollectFiles(root, p.Config.Bootstrap.Include, p.Config.Bootstrap.Exclude)
		if err != nil {
			return nil, err
		}
		for rel, text := range found {
			if _, ok := files[rel]; !ok {
				files[rel] = text
			}
		}
	}
	return files, nil
}

// Modules lists the dotted names of every module found on the search
// paths, sorted.
func (p *Project) Modules() ([]string, error) {
	files, err := p.BootstrapFiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for rel := range files {
		if name, ok := ModuleName(rel); ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DirProvider reads module sources from directories. A dotted name a.b
// resolves to a/b.py, a/b.pyi, a/b/__init__.py or a/b/__init__.pyi, tried
// in that order under each root.
type DirProvider struct {
	Roots []string
}

func (d DirProvider) Source(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty module name: %w", python.ErrModuleNotFound)
	}
	rel := filepath.Join(strings.Split(name, ".")...)
	for _, root := range d.Roots {
		for _, candidate := range []string{
			rel + ".py",
			rel + ".pyi",
			filepath.Join(rel, "__init__.py"),
			filepath.Join(rel, "__init__.pyi"),
		} {
			data, err := os.ReadFile(filepath.Join(root, candidate))
			if err == nil {
				return string(data), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("read module %s: %w", name, err)
			}
		}
	}
	return "", fmt.Errorf("module %s: %w", name, python.ErrModuleNotFound)
}

// ModuleName maps a slash-separated source path to its dotted module name.
func ModuleName(rel string) (string, bool) {
	rel = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(rel)), "/")
	ext := path.Ext(rel)
	if ext != ".py" && ext != ".pyi" {
		return "", false
	}
	rel = strings.TrimSuffix(rel, ext)
	if path.Base(rel) == "__init__" {
		rel = path.Dir(rel)
		if rel == "." {
			return "", false
		}
	}
	return strings.ReplaceAll(rel, "/", "."), true
}

// sourceRank orders files that map to the same module the way
// DirProvider tries them.
func sourceRank(rel string) int {
	rank := 0
	if strings.HasSuffix(rel, ".pyi") {
		rank++
	}
	if path.Base(strings.TrimSuffix(strings.TrimSuffix(rel, "i"), ".py")) == "__init__" {
		rank += 2
	}
	return rank
}

// FileMapProvider turns a relative path to text map, such as the result of
// CollectFiles, into a provider keyed by module name.
func FileMapProvider(files map[string]string) python.MapProvider {
	provider := make(python.MapProvider, len(files))
	ranks := make(map[string]int, len(files))
	for rel, text := range files {
		name, ok := ModuleName(rel)
		if !ok {
			continue
		}
		rank := sourceRank(rel)
		if prev, seen := ranks[name]; seen && prev <= rank {
			continue
		}
		ranks[name] = rank
		provider[name] = text
	}
	return provider
}

// CollectFiles walks root and returns the text of every file whose
// relative path matches an include pattern and no exclude pattern.
// Directories matching an exclude pattern are skipped entirely.
func CollectFiles(root string, include, exclude []string) (map[string]string, error) {
	inc, err := compileGlobs(include)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	exc, err := compileGlobs(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	files := make(map[string]string)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if matchAny(exc, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchAny(inc, rel) || matchAny(exc, rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect files in %s: %w", root, err)
	}
	log.Debugf("collected %d files from %s", len(files), root)
	return files, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// FileURI returns a file URI for an absolute path.
func FileURI(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}

// DirURI is FileURI with a trailing slash.
func DirURI(p string) string {
	uri := FileURI(p)
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

// URIToPath returns the path of a file URI. Other strings are returned
// unchanged.
func URIToPath(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return uri, nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri %s: %w", uri, err)
	}
	return filepath.FromSlash(parsed.Path), nil
}
