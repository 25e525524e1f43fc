package langserver

import (
	"context"
	"errors"
	"strings"

	"github.com/dhamidi/pyscope/python"
	"github.com/dhamidi/pyscope/python/parser"
	"github.com/dhamidi/pyscope/textdoc"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const diagnosticSource = "pyscope"

var tracer = otel.Tracer("pyscope.langserver")

// analysis is one document analyzed against a fresh environment.
type analysis struct {
	env    *python.Environment
	text   string
	doc    *textdoc.Doc
	tree   *parser.Node
	result *python.Result
	cycle  *python.CyclicImportError
}

func (s *Server) analyze(ctx context.Context, d *Document) (*analysis, error) {
	ctx, span := tracer.Start(ctx, "langserver.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.uri", d.URI),
		attribute.String("document.module", d.Module),
	)

	name := d.Module
	if name == "" {
		name = "__main__"
	}
	env := python.NewEnvironment(s.workspace, python.WithAnalysisCache())
	m, err := env.NewModule(ctx, name, d.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a := &analysis{env: env, text: d.Text, doc: textdoc.New(d.Text), tree: m.Tree()}
	res, err := m.Names(ctx)
	var cycle *python.CyclicImportError
	switch {
	case errors.As(err, &cycle):
		a.cycle = cycle
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	default:
		a.result = res
	}
	return a, nil
}

// binding looks up a top-level name; it reports false after a cyclic
// import.
func (a *analysis) binding(name string) (python.Binding, bool) {
	if a.result == nil {
		return python.Binding{}, false
	}
	b, ok := a.result.Bindings[name]
	return b, ok
}

func (a *analysis) spanRange(span parser.Span) protocol.Range {
	return protocol.Range{
		Start: a.doc.OffsetToPosition(textdoc.OffsetFromBytes(a.text, span.Start.Offset)),
		End:   a.doc.OffsetToPosition(textdoc.OffsetFromBytes(a.text, span.End.Offset)),
	}
}

func (a *analysis) diagnostics() []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}

	if a.cycle != nil {
		first := a.doc.Line(0)
		diags = append(diags, newDiagnostic(protocol.Range{
			Start: a.doc.OffsetToPosition(first.From),
			End:   a.doc.OffsetToPosition(first.To),
		}, protocol.DiagnosticSeverityError, a.cycle.Error()))
	}

	if a.result != nil {
		for _, rerr := range a.result.Errors {
			diags = append(diags, newDiagnostic(a.spanRange(rerr.Span), protocol.DiagnosticSeverityError, rerr.Error()))
		}
	}

	parser.Inspect(a.tree, func(n *parser.Node) bool {
		if n == nil {
			return false
		}
		if n.IsError() {
			diags = append(diags, newDiagnostic(a.spanRange(n.Span), protocol.DiagnosticSeverityError, n.Error))
			return false
		}
		return true
	})

	if span, ok := a.unreachable(); ok {
		d := newDiagnostic(a.spanRange(span), protocol.DiagnosticSeverityHint, "Code is unreachable")
		d.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}
		diags = append(diags, d)
	}
	return diags
}

// unreachable returns the span covering every top-level statement after
// the first top-level raise or sys.exit() call.
func (a *analysis) unreachable() (parser.Span, bool) {
	stmts := a.tree.Children
	for i, stmt := range stmts {
		if !a.terminates(stmt) {
			continue
		}
		if i+1 == len(stmts) {
			return parser.Span{}, false
		}
		return parser.Span{Start: stmts[i+1].Span.Start, End: stmts[len(stmts)-1].Span.End}, true
	}
	return parser.Span{}, false
}

func (a *analysis) terminates(n *parser.Node) bool {
	if n.Kind != parser.KindStatement {
		return false
	}
	switch n.Text {
	case "raise_statement":
		return true
	case "expression_statement":
		src := a.text[n.Span.Start.Offset:n.Span.End.Offset]
		return strings.HasPrefix(src, "sys.exit(")
	}
	return false
}

func newDiagnostic(r protocol.Range, severity protocol.DiagnosticSeverity, message string) protocol.Diagnostic {
	source := diagnosticSource
	return protocol.Diagnostic{
		Range:    r,
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}
