package python

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dhamidi/pyscope/python/parser"
)

// ErrModuleNotFound is returned (wrapped) by source providers that have no
// text for a module name.
var ErrModuleNotFound = errors.New("module not found")

// CyclicImportError reports a module that, directly or transitively,
// imports itself. Chain starts and ends with the same module.
type CyclicImportError struct {
	Chain []string
}

func (e *CyclicImportError) Error() string {
	return "cyclic import: " + strings.Join(e.Chain, " -> ")
}

// ResolutionError is an import that could not be resolved. It is collected
// on the analysis Result rather than returned.
type ResolutionError struct {
	// Name is the imported name, empty when the module itself is missing.
	Name   string
	Module string
	Span   parser.Span
	Err    error
}

func (e ResolutionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("Could not find module %s", e.Module)
	}
	return fmt.Sprintf("Could not find %s imported from %s", e.Name, e.Module)
}

func (e ResolutionError) Unwrap() error {
	return e.Err
}
