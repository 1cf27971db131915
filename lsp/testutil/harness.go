// Package testutil provides an in-process harness for integration
// testing the HL7 language server at the protocol handler level, without
// a transport.
package testutil

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/lsp"
)

// Harness drives a full server through its protocol handler and records
// published diagnostics.
type Harness struct {
	t      *testing.T
	server *lsp.Server

	// Root is the workspace directory for this harness.
	Root string

	mu        sync.Mutex
	published map[string][][]protocol.Diagnostic
}

// NewHarness creates a server over a fresh temporary workspace root.
func NewHarness(t *testing.T, cfg lsp.Config) *Harness {
	t.Helper()
	return &Harness{
		t:         t,
		server:    lsp.NewServer(nil, cfg),
		Root:      t.TempDir(),
		published: make(map[string][][]protocol.Diagnostic),
	}
}

// Server returns the underlying server for direct assertions.
func (h *Harness) Server() *lsp.Server { return h.server }

// Initialize performs the initialize/initialized handshake. Optional
// position encodings are offered as the client's preferred list.
func (h *Harness) Initialize(encodings ...string) (any, error) {
	h.t.Helper()

	rootURI := lsp.PathToURI(h.Root)
	params := &protocol.InitializeParams{
		RootURI: &rootURI,
		WorkspaceFolders: []protocol.WorkspaceFolder{{
			URI:  rootURI,
			Name: filepath.Base(h.Root),
		}},
	}

	// The positionEncodings capability is LSP 3.17 and only readable from
	// the raw params, so it is injected through the context.
	raw, err := json.Marshal(map[string]any{
		"capabilities": map[string]any{
			"general": map[string]any{
				"positionEncodings": encodings,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	ctx := &glsp.Context{Method: "initialize", Params: raw}

	result, err := h.server.Handler().Initialize(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := h.server.Handler().Initialized(nil, &protocol.InitializedParams{}); err != nil {
		return nil, err
	}

	// Record published diagnostics for assertions.
	h.server.Workspace().SetNotifier(func(method string, params any) {
		if method != protocol.ServerTextDocumentPublishDiagnostics {
			return
		}
		p, ok := params.(protocol.PublishDiagnosticsParams)
		if !ok {
			return
		}
		h.mu.Lock()
		h.published[p.URI] = append(h.published[p.URI], p.Diagnostics)
		h.mu.Unlock()
	})

	return result, nil
}

// URI converts a path relative to the harness root into a file URI.
func (h *Harness) URI(rel string) string {
	return lsp.PathToURI(filepath.Join(h.Root, rel))
}

// Open opens a document with version 1.
func (h *Harness) Open(rel, content string) error {
	h.t.Helper()
	return h.server.Handler().TextDocumentDidOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        h.URI(rel),
			LanguageID: "hl7",
			Version:    1,
			Text:       content,
		},
	})
}

// Change replaces a document's full content at the given version.
func (h *Harness) Change(rel, content string, version int) error {
	h.t.Helper()
	return h.server.Handler().TextDocumentDidChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: h.URI(rel)},
			Version:                protocol.Integer(version),
		},
		ContentChanges: []any{
			protocol.TextDocumentContentChangeEventWhole{Text: content},
		},
	})
}

// ChangeIncremental applies one ranged edit at the given version.
func (h *Harness) ChangeIncremental(rel string, rng protocol.Range, text string, version int) error {
	h.t.Helper()
	return h.server.Handler().TextDocumentDidChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: h.URI(rel)},
			Version:                protocol.Integer(version),
		},
		ContentChanges: []any{
			protocol.TextDocumentContentChangeEvent{Range: &rng, Text: text},
		},
	})
}

// Close closes a document.
func (h *Harness) Close(rel string) error {
	h.t.Helper()
	return h.server.Handler().TextDocumentDidClose(nil, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.URI(rel)},
	})
}

// Diagnostics returns the most recently published diagnostics for a
// document, or nil when none were published.
func (h *Harness) Diagnostics(rel string) []protocol.Diagnostic {
	h.mu.Lock()
	defer h.mu.Unlock()
	history := h.published[h.URI(rel)]
	if len(history) == 0 {
		return nil
	}
	return history[len(history)-1]
}

// Hover requests hover info at a position.
func (h *Harness) Hover(rel string, line, char int) (*protocol.Hover, error) {
	h.t.Helper()
	return h.server.Handler().TextDocumentHover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: positionParams(h.URI(rel), line, char),
	})
}

// Completion requests completion items at a position.
func (h *Harness) Completion(rel string, line, char int) ([]protocol.CompletionItem, error) {
	h.t.Helper()
	result, err := h.server.Handler().TextDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: positionParams(h.URI(rel), line, char),
	})
	if err != nil || result == nil {
		return nil, err
	}
	items, _ := result.([]protocol.CompletionItem)
	return items, nil
}

// DocumentSymbols requests the document symbol tree.
func (h *Harness) DocumentSymbols(rel string) ([]protocol.DocumentSymbol, error) {
	h.t.Helper()
	result, err := h.server.Handler().TextDocumentDocumentSymbol(nil, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.URI(rel)},
	})
	if err != nil || result == nil {
		return nil, err
	}
	symbols, _ := result.([]protocol.DocumentSymbol)
	return symbols, nil
}

// SelectionRanges requests selection ranges for positions.
func (h *Harness) SelectionRanges(rel string, positions ...protocol.Position) ([]protocol.SelectionRange, error) {
	h.t.Helper()
	return h.server.Handler().TextDocumentSelectionRange(nil, &protocol.SelectionRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.URI(rel)},
		Positions:    positions,
	})
}

// SignatureHelp requests signature help at a position.
func (h *Harness) SignatureHelp(rel string, line, char int) (*protocol.SignatureHelp, error) {
	h.t.Helper()
	return h.server.Handler().TextDocumentSignatureHelp(nil, &protocol.SignatureHelpParams{
		TextDocumentPositionParams: positionParams(h.URI(rel), line, char),
	})
}

// CodeActions requests code actions for a range.
func (h *Harness) CodeActions(rel string, rng protocol.Range) ([]protocol.CodeAction, error) {
	h.t.Helper()
	result, err := h.server.Handler().TextDocumentCodeAction(nil, &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: h.URI(rel)},
		Range:        rng,
	})
	if err != nil || result == nil {
		return nil, err
	}
	actions, _ := result.([]protocol.CodeAction)
	return actions, nil
}

// ExecuteCommand runs a workspace command.
func (h *Harness) ExecuteCommand(command string, args ...any) (any, error) {
	h.t.Helper()
	return h.server.Handler().WorkspaceExecuteCommand(nil, &protocol.ExecuteCommandParams{
		Command:   command,
		Arguments: args,
	})
}

func positionParams(uri string, line, char int) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position: protocol.Position{
			Line:      protocol.UInteger(line), //nolint:gosec // test positions are small
			Character: protocol.UInteger(char), //nolint:gosec // test positions are small
		},
	}
}
