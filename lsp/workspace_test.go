package lsp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/schema"
)

// overlayRequiring builds an overlay file marking one field required.
func overlayRequiring(segment, field string) *schema.File {
	required := true
	return &schema.File{Segments: []schema.FileSegment{{
		Name:   segment,
		Fields: map[string]schema.FileField{field: {Required: &required}},
	}}}
}

type diagnosticRecorder struct {
	mu     sync.Mutex
	params []protocol.PublishDiagnosticsParams
}

func (r *diagnosticRecorder) notifier() Notifier {
	return func(method string, params any) {
		if method != protocol.ServerTextDocumentPublishDiagnostics {
			return
		}
		p, ok := params.(protocol.PublishDiagnosticsParams)
		if !ok {
			return
		}
		r.mu.Lock()
		r.params = append(r.params, p)
		r.mu.Unlock()
	}
}

func (r *diagnosticRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.params)
}

func wholeChange(text string) []any {
	return []any{protocol.TextDocumentContentChangeEventWhole{Text: text}}
}

func TestWorkspaceOpenSnapshot(t *testing.T) {
	w := NewWorkspace(nil, Config{})
	w.Open("file:///a.hl7", 1, "MSH|^~\\&|APP")

	snap := w.Snapshot("file:///a.hl7")
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "MSH|^~\\&|APP", snap.Text)
	require.Len(t, snap.Tree.Segments, 1)
	assert.Equal(t, byte('|'), snap.Delimiters().Field)

	assert.Nil(t, w.Snapshot("file:///other.hl7"))
}

func TestWorkspaceChangeVersionSequencing(t *testing.T) {
	w := NewWorkspace(nil, Config{})
	w.Open("file:///a.hl7", 1, "MSH|^~\\&")

	// Version must be exactly previous+1.
	err := w.Change("file:///a.hl7", 3, wholeChange("MSH|^~\\&|X"))
	assert.ErrorIs(t, err, ErrInvalidVersion)

	err = w.Change("file:///a.hl7", 1, wholeChange("MSH|^~\\&|X"))
	assert.ErrorIs(t, err, ErrInvalidVersion)

	// Document state is unchanged after a rejected edit.
	snap := w.Snapshot("file:///a.hl7")
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "MSH|^~\\&", snap.Text)

	require.NoError(t, w.Change("file:///a.hl7", 2, wholeChange("MSH|^~\\&|X")))
	snap = w.Snapshot("file:///a.hl7")
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, "MSH|^~\\&|X", snap.Text)

	err = w.Change("file:///missing.hl7", 1, wholeChange("x"))
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestWorkspaceIncrementalEdits(t *testing.T) {
	w := NewWorkspace(nil, Config{})
	w.Open("file:///a.hl7", 1, "MSH|^~\\&|AAA\nPID|1")

	// Replace "AAA" with "BB" then append to line 1, in one change batch:
	// the final text equals sequential application of the edits.
	edits := []any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 9},
				End:   protocol.Position{Line: 0, Character: 12},
			},
			Text: "BB",
		},
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 1, Character: 5},
				End:   protocol.Position{Line: 1, Character: 5},
			},
			Text: "|X",
		},
	}
	require.NoError(t, w.Change("file:///a.hl7", 2, edits))

	snap := w.Snapshot("file:///a.hl7")
	assert.Equal(t, "MSH|^~\\&|BB\nPID|1|X", snap.Text)
	// The tree was re-parsed against the new text.
	pid := snap.Tree.Segments.First("PID")
	require.NotNil(t, pid)
	assert.Len(t, pid.Fields, 2)
}

func TestWorkspaceSnapshotIsolation(t *testing.T) {
	w := NewWorkspace(nil, Config{})
	w.Open("file:///a.hl7", 1, "MSH|^~\\&|one")

	snap := w.Snapshot("file:///a.hl7")
	require.NoError(t, w.Change("file:///a.hl7", 2, wholeChange("MSH|^~\\&|two")))

	// A snapshot taken before the mutation remains valid for its holder.
	assert.Equal(t, "MSH|^~\\&|one", snap.Text)
	assert.Equal(t, 1, snap.Version)
}

func TestWorkspacePublishesOnOpenChangeClose(t *testing.T) {
	rec := &diagnosticRecorder{}
	w := NewWorkspace(nil, Config{})
	w.SetNotifier(rec.notifier())

	w.Open("file:///a.hl7", 1, "MSH|^~\\&\rPID|1")
	require.Equal(t, 1, rec.count())
	assert.NotEmpty(t, rec.params[0].Diagnostics, "PID required fields missing")

	require.NoError(t, w.Change("file:///a.hl7", 2,
		wholeChange("MSH|^~\\&|A|B|C|D|20240101||ADT^A01|X|P|2.5\rPID|1||123||Doe")))
	require.Equal(t, 2, rec.count())
	assert.Empty(t, rec.params[1].Diagnostics)

	w.Close("file:///a.hl7")
	require.Equal(t, 3, rec.count())
	assert.Empty(t, rec.params[2].Diagnostics, "closing clears diagnostics")
	assert.Nil(t, w.Snapshot("file:///a.hl7"))
}

func TestWorkspaceReanalyzeAll(t *testing.T) {
	rec := &diagnosticRecorder{}
	w := NewWorkspace(nil, Config{})
	w.SetNotifier(rec.notifier())

	w.Open("file:///a.hl7", 1, "MSH|^~\\&\rPV1|1|I")
	before := rec.count()

	// Overlay change invalidates analyses; re-analysis republishes.
	w.Registry().Apply("/ws/x.hl7v.toml", overlayRequiring("PV1", "7"))
	w.ReanalyzeAll()

	require.Equal(t, before+1, rec.count())
	last := rec.params[rec.count()-1]
	found := false
	for _, d := range last.Diagnostics {
		if d.Code.Value == CodeRequiredFieldMissing {
			found = true
		}
	}
	assert.True(t, found, "new overlay requirement shows up after re-analysis")
}

func TestWorkspaceEncodingDefaultsToUTF16(t *testing.T) {
	w := NewWorkspace(nil, Config{})
	assert.Equal(t, PositionEncodingUTF16, w.PositionEncoding())
	w.SetPositionEncoding(PositionEncodingUTF8)
	assert.Equal(t, PositionEncodingUTF8, w.PositionEncoding())
}
