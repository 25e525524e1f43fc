package lsp

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dhamidi/pyscope/textdoc"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a server diagnostic mapped to document offsets.
type Diagnostic struct {
	From     int
	To       int
	Severity Severity
	Message  string
	Source   string
	Tags     []protocol.DiagnosticTag
}

// severityOf maps an LSP severity. The protocol leaves a missing severity
// to the client; it is shown as a warning.
func severityOf(s *protocol.DiagnosticSeverity) Severity {
	if s == nil {
		return SeverityWarning
	}
	switch *s {
	case protocol.DiagnosticSeverityWarning:
		return SeverityWarning
	case protocol.DiagnosticSeverityInformation, protocol.DiagnosticSeverityHint:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// MapDiagnostics converts diagnostics to offsets in doc, dropping those
// whose range does not fit the document, and orders them by start. A range
// covering only the break between two lines is collapsed onto the end of
// the first line so it stays visible inline.
func MapDiagnostics(doc *textdoc.Doc, diagnostics []protocol.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		from, ok := doc.PositionToOffset(d.Range.Start)
		if !ok {
			continue
		}
		to, ok := doc.PositionToOffset(d.Range.End)
		if !ok {
			continue
		}
		if from+1 == to && doc.LineAt(from).Number+1 == doc.LineAt(to).Number {
			to = from
		}
		mapped := Diagnostic{
			From:     from,
			To:       to,
			Severity: severityOf(d.Severity),
			Message:  d.Message,
			Tags:     d.Tags,
		}
		if d.Source != nil {
			mapped.Source = *d.Source
		}
		out = append(out, mapped)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].From < out[j].From
	})
	return out
}

func (s *Session) processNotification(method string, params json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("processing %s: %v", method, r)
		}
	}()

	var err error
	switch method {
	case protocol.ServerTextDocumentPublishDiagnostics:
		err = s.processDiagnostics(params)
	case protocol.ServerWindowLogMessage:
		var p protocol.LogMessageParams
		if err = json.Unmarshal(params, &p); err == nil {
			s.logSink(p)
		}
	default:
		log.Debugf("ignoring notification %s", method)
	}
	if err != nil {
		log.Warningf("processing %s: %s", method, err)
	}
}

func (s *Session) processDiagnostics(params json.RawMessage) error {
	var p protocol.PublishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("decode diagnostics: %w", err)
	}
	if p.URI != s.opts.DocumentURI {
		log.Debugf("ignoring diagnostics for %s", p.URI)
		return nil
	}

	mapped := MapDiagnostics(s.doc(), p.Diagnostics)

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return nil
	}
	s.raw = p.Diagnostics
	s.diagnostics = mapped
	s.mu.Unlock()

	s.host.SetDiagnostics(mapped)
	return nil
}

func defaultLogSink(p protocol.LogMessageParams) {
	switch p.Type {
	case protocol.MessageTypeError:
		log.Errorf("[LS] %s", p.Message)
	case protocol.MessageTypeWarning:
		log.Warningf("[LS] %s", p.Message)
	case protocol.MessageTypeInfo:
		log.Infof("[LS] %s", p.Message)
	default:
		log.Debugf("[LS] %s", p.Message)
	}
}
