package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
	"github.com/hl7tools/hl7ls/schema"
)

func analyze(t *testing.T, cfg Config, text string, overlays ...*schema.File) []protocol.Diagnostic {
	t.Helper()
	registry := schema.NewRegistry()
	for i, f := range overlays {
		registry.Apply(string(rune('a'+i))+".hl7v.toml", f)
	}
	a := NewAnalyzer(nil, cfg)
	return a.Analyze(text, hl7.Parse(text), registry.Snapshot(), PositionEncodingUTF16)
}

func codesOf(diagnostics []protocol.Diagnostic) []string {
	codes := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		codes = append(codes, d.Code.Value.(string))
	}
	return codes
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	diagnostics := analyze(t, Config{}, "")
	assert.Empty(t, diagnostics)
	assert.NotNil(t, diagnostics, "publishes an empty set, not nil")
}

func TestAnalyzeCleanMessage(t *testing.T) {
	text := "MSH|^~\\&|APP|FAC|APP2|FAC2|20240101120000||ADT^A01|MSG01|P|2.5\rPID|1||123||Doe^John"
	diagnostics := analyze(t, Config{}, text)
	assert.Empty(t, diagnostics, "got: %v", codesOf(diagnostics))
}

func TestAnalyzeParseError(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\ngarbage line"
	diagnostics := analyze(t, Config{}, text)
	require.NotEmpty(t, diagnostics)
	assert.Equal(t, CodeParseError, diagnostics[0].Code.Value)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diagnostics[0].Severity)
	assert.Equal(t, diagnosticSource, *diagnostics[0].Source)
	// The range spans the offending line.
	assert.Equal(t, protocol.UInteger(1), diagnostics[0].Range.Start.Line)
	assert.Equal(t, protocol.UInteger(0), diagnostics[0].Range.Start.Character)
	assert.Equal(t, protocol.UInteger(12), diagnostics[0].Range.End.Character)
}

func TestAnalyzeUnknownSegment(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rXYZ|1"
	diagnostics := analyze(t, Config{}, text)
	assert.Contains(t, codesOf(diagnostics), CodeUnknownSegment)

	// VS Code renders unknown segments through its grammar.
	diagnostics = analyze(t, Config{VSCode: true}, text)
	assert.NotContains(t, codesOf(diagnostics), CodeUnknownSegment)
}

func TestAnalyzeRequiredFieldMissing(t *testing.T) {
	// PID.3 is required by the standard.
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPID|1"
	diagnostics := analyze(t, Config{}, text)
	codes := codesOf(diagnostics)
	assert.Equal(t, []string{CodeRequiredFieldMissing}, codes)
	assert.Contains(t, diagnostics[0].Message, "PID.3")
}

func TestAnalyzeUnknownTableValue(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPID|1||123||Doe||19800101|X9"
	diagnostics := analyze(t, Config{}, text)
	require.NotEmpty(t, diagnostics)
	last := diagnostics[len(diagnostics)-1]
	assert.Equal(t, CodeUnknownTableValue, last.Code.Value)
	assert.Equal(t, protocol.DiagnosticSeverityInformation, *last.Severity)
	assert.Contains(t, last.Message, `"X9"`)
	assert.Contains(t, last.Message, "PID.8")
}

func TestDisableStdTableValidations(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPV1|1|Q"
	cfg := Config{DisableStdTableValidations: true}

	diagnostics := analyze(t, cfg, text)
	assert.NotContains(t, codesOf(diagnostics), CodeUnknownTableValue,
		"standard-table validation is muted")

	// A workspace-declared table is validated regardless.
	overlay := &schema.File{Segments: []schema.FileSegment{{
		Name: "PV1",
		Fields: map[string]schema.FileField{
			"2": {AllowedValues: [][]string{{"I", "Inpatient"}, {"O", "Outpatient"}}},
		},
	}}}
	diagnostics = analyze(t, cfg, text, overlay)
	assert.Contains(t, codesOf(diagnostics), CodeUnknownTableValue,
		"workspace tables are always validated")
}

func TestAnalyzeInvalidDatatype(t *testing.T) {
	// PID.7 is a TS; "tomorrow" does not match.
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPID|1||123||Doe||tomorrow"
	diagnostics := analyze(t, Config{}, text)
	codes := codesOf(diagnostics)
	assert.Contains(t, codes, CodeInvalidDatatype)
}

func TestAnalyzeEncodingCharacterAnomaly(t *testing.T) {
	for name, header := range map[string]string{
		"too few":   "MSH|^~\\|A",
		"repeated":  "MSH|^~^&|A",
		"too many":  "MSH|^~\\&#|A",
	} {
		t.Run(name, func(t *testing.T) {
			diagnostics := analyze(t, Config{}, header)
			assert.Contains(t, codesOf(diagnostics), CodeEncodingCharacters)
		})
	}

	diagnostics := analyze(t, Config{}, "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5")
	assert.NotContains(t, codesOf(diagnostics), CodeEncodingCharacters)
}

func TestAnalyzeMSHOnlyBoundary(t *testing.T) {
	diagnostics := analyze(t, Config{}, "MSH|^~\\&")
	for _, d := range diagnostics {
		assert.Equal(t, CodeRequiredFieldMissing, d.Code.Value,
			"only MSH-specific required-field diagnostics expected, got %s", d.Message)
		assert.Contains(t, d.Message, "MSH.")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	// The diagnostic set depends only on (text, delimiters, schema).
	text := "MSH|^~\\&|A|B|C|D|bad-ts||ZZZ^A99|X|Q|2.5\rXYZ|1\rPV1|1|Q"
	first := analyze(t, Config{}, text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, analyze(t, Config{}, text))
	}
}

func TestRequiredFieldOverlayOverride(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPID|1||123||Doe"

	// Overlay may mark a standard-optional field required...
	overlay := &schema.File{Segments: []schema.FileSegment{{
		Name:   "PID",
		Fields: map[string]schema.FileField{"4": {Required: boolPtr(true)}},
	}}}
	diagnostics := analyze(t, Config{}, text, overlay)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, CodeRequiredFieldMissing, diagnostics[0].Code.Value)
	assert.Contains(t, diagnostics[0].Message, "PID.4")

	// ...and may mark a standard-required field optional.
	relaxed := &schema.File{Segments: []schema.FileSegment{{
		Name: "PID",
		Fields: map[string]schema.FileField{
			"3": {Required: boolPtr(false)},
		},
	}}}
	diagnostics = analyze(t, Config{}, "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPID|1", relaxed)
	assert.Empty(t, diagnostics)
}

func boolPtr(b bool) *bool { return &b }
