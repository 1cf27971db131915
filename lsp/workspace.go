package lsp

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
	"github.com/hl7tools/hl7ls/schema"
)

// Errors surfaced from document-store operations.
var (
	// ErrInvalidVersion is returned when a didChange arrives out of
	// sequence. The document state is left unchanged.
	ErrInvalidVersion = errors.New("document version out of sequence")

	// ErrUnknownDocument is returned for operations on a URI that is not
	// open.
	ErrUnknownDocument = errors.New("document is not open")
)

// Notifier sends LSP notifications. Capturing only the notification
// capability (rather than a whole glsp.Context) keeps the workspace
// testable without a transport.
type Notifier func(method string, params any)

// Document is an open text document with its cached parse tree.
type Document struct {
	URI     string
	Version int
	Text    string
	Tree    *hl7.Message
}

// DocumentSnapshot is an immutable view of a document at a point in
// time: handlers read it outside any lock without racing live edits.
type DocumentSnapshot struct {
	URI     string
	Version int
	Text    string
	Tree    *hl7.Message
}

// Delimiters returns the delimiter set in effect for the snapshot.
func (d *DocumentSnapshot) Delimiters() hl7.Delimiters {
	return d.Tree.Delimiters
}

// Workspace is the document store: a concurrent URI-to-document map, the
// schema registry, and the negotiated position encoding. Writers are
// serialised per store; readers take snapshots.
type Workspace struct {
	mu sync.RWMutex

	logger   *slog.Logger
	cfg      Config
	roots    []string
	open     map[string]*Document
	registry *schema.Registry
	analyzer *Analyzer

	// published tracks the last published diagnostic version per URI so
	// diagnostics are published in strictly non-decreasing version order.
	published map[string]int

	posEncoding PositionEncoding

	// notify is bound to the connection once the client is initialized.
	notify Notifier
}

// NewWorkspace creates an empty workspace over a fresh schema registry.
func NewWorkspace(logger *slog.Logger, cfg Config) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		logger:      logger.With(slog.String("component", "workspace")),
		cfg:         cfg,
		open:        make(map[string]*Document),
		registry:    schema.NewRegistry(),
		analyzer:    NewAnalyzer(logger, cfg),
		published:   make(map[string]int),
		posEncoding: PositionEncodingUTF16,
	}
}

// Registry exposes the schema registry for the watcher and providers.
func (w *Workspace) Registry() *schema.Registry { return w.registry }

// AddRoot records a workspace root directory.
func (w *Workspace) AddRoot(uri string) {
	path, err := URIToPath(uri)
	if err != nil {
		w.logger.Warn("ignoring workspace root with unusable URI",
			slog.String("uri", uri), slog.String("error", err.Error()))
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.roots {
		if r == path {
			return
		}
	}
	w.roots = append(w.roots, path)
	w.logger.Debug("added workspace root", slog.String("path", path))
}

// Roots returns the recorded workspace roots.
func (w *Workspace) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.roots))
	copy(out, w.roots)
	return out
}

// SetPositionEncoding records the encoding negotiated at initialize.
func (w *Workspace) SetPositionEncoding(enc PositionEncoding) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posEncoding = enc
}

// PositionEncoding returns the negotiated position encoding.
func (w *Workspace) PositionEncoding() PositionEncoding {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.posEncoding
}

// SetNotifier binds the connection's notification function. Passing nil
// (as tests do) computes diagnostics without publishing them.
func (w *Workspace) SetNotifier(n Notifier) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = n
}

// Open registers a document, parses it, and publishes its diagnostics.
func (w *Workspace) Open(uri string, version int, text string) {
	doc := &Document{URI: uri, Version: version, Text: text, Tree: hl7.Parse(text)}

	w.mu.Lock()
	w.open[uri] = doc
	w.mu.Unlock()

	w.analyzeAndPublish(doc.snapshot())
}

// Change applies LSP content changes in order. The incoming version must
// be exactly the previous version plus one; anything else is rejected
// with ErrInvalidVersion and leaves the document unchanged.
func (w *Workspace) Change(uri string, version int, changes []any) error {
	w.mu.Lock()
	doc, ok := w.open[uri]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	if version != doc.Version+1 {
		cur := doc.Version
		w.mu.Unlock()
		return fmt.Errorf("%w: have %d, got %d", ErrInvalidVersion, cur, version)
	}

	text := doc.Text
	enc := w.posEncoding
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = change.Text
		case protocol.TextDocumentContentChangeEvent:
			text = applyIncrementalChange(text, change, enc)
		}
	}

	doc.Version = version
	doc.Text = text
	doc.Tree = hl7.Parse(text)
	snap := doc.snapshot()
	w.mu.Unlock()

	w.analyzeAndPublish(snap)
	return nil
}

// applyIncrementalChange splices one incremental edit into the text.
// A change without a range replaces the whole document.
func applyIncrementalChange(text string, change protocol.TextDocumentContentChangeEvent, enc PositionEncoding) string {
	if change.Range == nil {
		return change.Text
	}
	start, ok := OffsetFromPosition(text, int(change.Range.Start.Line), int(change.Range.Start.Character), enc)
	if !ok {
		return change.Text
	}
	end, ok := OffsetFromPosition(text, int(change.Range.End.Line), int(change.Range.End.Character), enc)
	if !ok || end < start {
		return change.Text
	}
	return text[:start] + change.Text + text[end:]
}

// Close drops a document and clears its diagnostics.
func (w *Workspace) Close(uri string) {
	w.mu.Lock()
	delete(w.open, uri)
	delete(w.published, uri)
	notify := w.notify
	w.mu.Unlock()

	if notify != nil {
		notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []protocol.Diagnostic{},
		})
	}
}

// Snapshot returns an immutable view of an open document, or nil.
func (w *Workspace) Snapshot(uri string) *DocumentSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.open[uri]
	if !ok {
		return nil
	}
	return doc.snapshot()
}

func (d *Document) snapshot() *DocumentSnapshot {
	return &DocumentSnapshot{URI: d.URI, Version: d.Version, Text: d.Text, Tree: d.Tree}
}

// ReanalyzeAll recomputes diagnostics for every open document. The
// watcher calls this after an overlay change.
func (w *Workspace) ReanalyzeAll() {
	w.mu.RLock()
	snaps := make([]*DocumentSnapshot, 0, len(w.open))
	for _, doc := range w.open {
		snaps = append(snaps, doc.snapshot())
	}
	w.mu.RUnlock()

	for _, snap := range snaps {
		w.analyzeAndPublish(snap)
	}
}

// analyzeAndPublish runs the analysis for a snapshot and publishes the
// result, unless a newer version has already been published or the
// document moved on while the analysis ran (stale results are dropped,
// never published).
func (w *Workspace) analyzeAndPublish(snap *DocumentSnapshot) {
	view := w.registry.Snapshot()
	diagnostics := w.analyzer.Analyze(snap.Text, snap.Tree, view, w.PositionEncoding())

	w.mu.Lock()
	cur, stillOpen := w.open[snap.URI]
	if !stillOpen || cur.Version != snap.Version || w.published[snap.URI] > snap.Version {
		w.mu.Unlock()
		w.logger.Debug("dropping stale analysis",
			slog.String("uri", snap.URI), slog.Int("version", snap.Version))
		return
	}
	w.published[snap.URI] = snap.Version
	notify := w.notify
	w.mu.Unlock()

	if notify == nil {
		return
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         snap.URI,
		Diagnostics: diagnostics,
	})
}
