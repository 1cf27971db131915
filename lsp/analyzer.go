package lsp

import (
	"fmt"
	"log/slog"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
	"github.com/hl7tools/hl7ls/schema"
)

// diagnosticSource identifies this server in published diagnostics.
const diagnosticSource = "hl7-ls"

// Diagnostic codes, stable across releases so clients can filter.
const (
	CodeParseError           = "parse-error"
	CodeUnknownSegment       = "unknown-segment"
	CodeRequiredFieldMissing = "required-field-missing"
	CodeUnknownTableValue    = "unknown-table-value"
	CodeInvalidDatatype      = "invalid-datatype"
	CodeEncodingCharacters   = "encoding-characters"
)

// Analyzer derives the diagnostic set for a document. The result depends
// only on (text, delimiters, effective schema) and is fully deterministic:
// segments are walked in order and each segment's checks run in a fixed
// sequence, so re-analysis of unchanged input is byte-for-byte identical.
type Analyzer struct {
	logger *slog.Logger
	cfg    Config
}

// NewAnalyzer creates an analyzer with the server's diagnostic policy.
func NewAnalyzer(logger *slog.Logger, cfg Config) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger: logger.With(slog.String("component", "analyzer")),
		cfg:    cfg,
	}
}

// Analyze produces the publishable diagnostics for a parsed document.
func (a *Analyzer) Analyze(text string, msg *hl7.Message, view *schema.View, enc PositionEncoding) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	for _, issue := range msg.Issues {
		diagnostics = append(diagnostics, makeDiagnostic(
			text, issue.Span, enc,
			protocol.DiagnosticSeverityError, CodeParseError, issue.Message,
		))
	}

	for i := range msg.Segments {
		seg := &msg.Segments[i]
		info, known := view.LookupSegment(seg.Name)
		if !known {
			// The VS Code client highlights unknown segment names through
			// its grammar, so --vscode leaves this to the editor.
			if !a.cfg.VSCode {
				diagnostics = append(diagnostics, makeDiagnostic(
					text, hl7.Span{Start: seg.Span.Start, End: seg.Span.Start + 3}, enc,
					protocol.DiagnosticSeverityWarning, CodeUnknownSegment,
					fmt.Sprintf("unknown segment %q", seg.Name),
				))
			}
			continue
		}

		diagnostics = a.checkRequiredFields(diagnostics, text, seg, info, enc)
		diagnostics = a.checkTableValues(diagnostics, text, seg, view, enc)
		diagnostics = a.checkDatatypes(diagnostics, text, seg, info, enc)
		if seg.Name == "MSH" {
			diagnostics = a.checkEncodingCharacters(diagnostics, text, seg, enc)
		}
	}

	return diagnostics
}

// checkRequiredFields reports effective-required fields that are empty or
// absent. MSH.1 and MSH.2 are skipped: if the segment parsed at all they
// are present by construction.
func (a *Analyzer) checkRequiredFields(diagnostics []protocol.Diagnostic, text string, seg *hl7.Segment, info schema.Segment, enc PositionEncoding) []protocol.Diagnostic {
	for n := 1; n <= info.MaxFieldNumber(); n++ {
		fieldInfo, ok := info.Fields[n]
		if !ok || !fieldInfo.Required {
			continue
		}
		if seg.Name == "MSH" && n <= 2 {
			continue
		}

		sp := hl7.Span{Start: seg.Span.End, End: seg.Span.End}
		if f := seg.Field(n); f != nil {
			if f.Span.Len() > 0 {
				continue
			}
			sp = f.Span
		}
		diagnostics = append(diagnostics, makeDiagnostic(
			text, sp, enc,
			protocol.DiagnosticSeverityWarning, CodeRequiredFieldMissing,
			fmt.Sprintf("required field %s.%d (%s) is empty", seg.Name, n, fieldInfo.Description),
		))
	}
	return diagnostics
}

// checkTableValues reports leaf codes outside a field's effective table.
// Standard-origin tables can be muted with --disable-std-table-validations;
// workspace-declared tables are always validated.
func (a *Analyzer) checkTableValues(diagnostics []protocol.Diagnostic, text string, seg *hl7.Segment, view *schema.View, enc PositionEncoding) []protocol.Diagnostic {
	for i := range seg.Fields {
		n := i + 1
		if seg.Name == "MSH" && n <= 2 {
			continue
		}
		table := view.AllowedValues(seg.Name, n)
		if table == nil {
			continue
		}
		if !table.Workspace && a.cfg.DisableStdTableValidations {
			continue
		}
		for _, rep := range seg.Fields[i].Repetitions {
			for _, comp := range rep.Components {
				for _, sub := range comp.Subcomponents {
					if sub.Value == "" {
						continue
					}
					if _, ok := table.Lookup(sub.Value); ok {
						continue
					}
					diagnostics = append(diagnostics, makeDiagnostic(
						text, sub.Span, enc,
						protocol.DiagnosticSeverityInformation, CodeUnknownTableValue,
						fmt.Sprintf("%q is not an allowed value for %s.%d", sub.Value, seg.Name, n),
					))
				}
			}
		}
	}
	return diagnostics
}

// checkDatatypes reports repetition values that do not match the shape of
// the field's declared datatype. Only primitive datatypes with a known
// shape (numerics, dates, times, timestamps) are checked.
func (a *Analyzer) checkDatatypes(diagnostics []protocol.Diagnostic, text string, seg *hl7.Segment, info schema.Segment, enc PositionEncoding) []protocol.Diagnostic {
	for i := range seg.Fields {
		n := i + 1
		if seg.Name == "MSH" && n <= 2 {
			continue
		}
		fieldInfo, ok := info.Fields[n]
		if !ok || fieldInfo.Datatype == "" {
			continue
		}
		for _, rep := range seg.Fields[i].Repetitions {
			value := hl7.Value(text, rep.Span)
			if value == "" {
				continue
			}
			if ok, checked := schema.CheckDatatype(fieldInfo.Datatype, value); checked && !ok {
				diagnostics = append(diagnostics, makeDiagnostic(
					text, rep.Span, enc,
					protocol.DiagnosticSeverityInformation, CodeInvalidDatatype,
					fmt.Sprintf("%q does not match datatype %s", value, fieldInfo.Datatype),
				))
			}
		}
	}
	return diagnostics
}

// checkEncodingCharacters reports an MSH.2 that is not exactly four
// distinct characters.
func (a *Analyzer) checkEncodingCharacters(diagnostics []protocol.Diagnostic, text string, seg *hl7.Segment, enc PositionEncoding) []protocol.Diagnostic {
	f2 := seg.Field(2)
	if f2 == nil {
		return diagnostics
	}
	value := hl7.Value(text, f2.Span)

	distinct := make(map[byte]struct{}, len(value))
	for i := 0; i < len(value); i++ {
		distinct[value[i]] = struct{}{}
	}
	if len(value) == 4 && len(distinct) == 4 {
		return diagnostics
	}
	return append(diagnostics, makeDiagnostic(
		text, f2.Span, enc,
		protocol.DiagnosticSeverityWarning, CodeEncodingCharacters,
		fmt.Sprintf("MSH.2 must contain exactly four distinct encoding characters, got %q", value),
	))
}

// makeDiagnostic builds one protocol diagnostic for a span.
func makeDiagnostic(text string, sp hl7.Span, enc PositionEncoding, severity protocol.DiagnosticSeverity, code, message string) protocol.Diagnostic {
	source := diagnosticSource
	return protocol.Diagnostic{
		Range:    rangeFromSpan(text, sp, enc),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: code},
		Source:   &source,
		Message:  message,
	}
}
