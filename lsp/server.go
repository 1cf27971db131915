// Package lsp implements the HL7 v2 language server: the LSP lifecycle
// and dispatch, the document store, the semantic analysis pipeline, the
// feature providers, and the workspace schema watcher.
package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	// commonlog is a required dependency of github.com/tliron/glsp. It is
	// silenced in NewServer via commonlog.Configure(0, nil) because this
	// server logs through slog. The blank import of the "simple" backend
	// is required by glsp at runtime.
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple" // required backend for glsp
)

const serverName = "hl7-ls"

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// Server lifecycle states.
const (
	stateCreated int32 = iota
	stateInitialized
	stateShuttingDown
	stateExited
)

// Lifecycle errors. Handlers return them to glsp as plain errors; no
// JSON-RPC error code is attached to them here.
var (
	errNotInitialized     = errors.New("server not initialized")
	errAlreadyInitialized = errors.New("server already initialized")
)

// Config holds the server configuration derived from the CLI.
type Config struct {
	// DisableStdTableValidations mutes UnknownTableValue diagnostics for
	// standard-origin tables. Workspace tables stay validated.
	DisableStdTableValidations bool

	// VSCode relaxes diagnostics the VS Code client renders itself.
	VSCode bool
}

// Server is the HL7 language server.
type Server struct {
	logger    *slog.Logger
	config    Config
	handler   protocol.Handler
	server    *glspserver.Server
	workspace *Workspace
	watcher   *Watcher
	executor  *Executor

	state atomic.Int32

	// closeOnce makes Close idempotent.
	closeOnce sync.Once
	closeErr  error
}

// NewServer creates the language server. A nil logger falls back to
// slog.Default().
func NewServer(logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:    logger.With(slog.String("component", "server")),
		config:    cfg,
		workspace: NewWorkspace(logger, cfg),
	}
	s.watcher = NewWatcher(logger, s.workspace)
	s.executor = NewExecutor(logger, s.workspace)

	// Silence commonlog; glsp uses it internally but all server logging
	// goes through slog.
	commonlog.Configure(0, nil)

	s.handler = protocol.Handler{
		Initialize:    s.initialize,
		Initialized:   s.initialized,
		Shutdown:      s.shutdown,
		Exit:          s.exit,
		SetTrace:      s.setTrace,
		CancelRequest: s.cancelRequest,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:          s.textDocumentHover,
		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
		TextDocumentCodeAction:     s.textDocumentCodeAction,
		TextDocumentSelectionRange: s.textDocumentSelectionRange,
		TextDocumentSignatureHelp:  s.textDocumentSignatureHelp,

		WorkspaceExecuteCommand:            s.workspaceExecuteCommand,
		WorkspaceDidChangeWorkspaceFolders: s.workspaceDidChangeWorkspaceFolders,
	}

	s.server = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// Handler exposes the protocol handler for in-process tests.
func (s *Server) Handler() *protocol.Handler { return &s.handler }

// Workspace exposes the document store for in-process tests.
func (s *Server) Workspace() *Workspace { return s.workspace }

// Executor exposes the command executor for in-process tests.
func (s *Server) Executor() *Executor { return s.executor }

// RunStdio serves LSP over stdin/stdout until the connection closes.
func (s *Server) RunStdio() error {
	if err := s.server.RunStdio(); err != nil {
		return fmt.Errorf("run stdio: %w", err)
	}
	return nil
}

// Shutdown stops background work (the watcher) ahead of process exit.
func (s *Server) Shutdown() {
	s.logger.Info("initiating shutdown")
	s.watcher.Stop()
}

// Close closes the JSON-RPC connection, causing RunStdio to return.
// Idempotent; safe to call before RunStdio (returns nil and can be
// retried once the connection exists).
func (s *Server) Close() error {
	conn := s.server.GetStdio()
	if conn == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		if err := conn.Close(); err != nil {
			s.closeErr = fmt.Errorf("close connection: %w", err)
		}
	})
	return s.closeErr
}

// requireInitialized gates requests on the lifecycle state machine:
// anything but initialize/exit outside the Initialized state fails.
func (s *Server) requireInitialized() error {
	if s.state.Load() != stateInitialized {
		return errNotInitialized
	}
	return nil
}

// initializeResult mirrors protocol.InitializeResult with map-based
// capabilities, so LSP 3.17 fields (positionEncoding) can be advertised
// even though glsp's typed structs stop at 3.16.
type initializeResult struct {
	Capabilities map[string]any                       `json:"capabilities"`
	ServerInfo   *protocol.InitializeResultServerInfo `json:"serverInfo,omitempty"`
}

// initialize handles the initialize request: it stores workspace roots,
// negotiates the position encoding from the client's preferred list, and
// advertises capabilities.
func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if s.state.Load() != stateCreated {
		return nil, errAlreadyInitialized
	}

	s.logger.Info("initialize request received",
		slog.String("client", clientName(params)),
	)

	switch {
	case params.WorkspaceFolders != nil:
		for _, folder := range params.WorkspaceFolders {
			s.workspace.AddRoot(folder.URI)
		}
	case params.RootURI != nil:
		s.workspace.AddRoot(*params.RootURI)
	case params.RootPath != nil:
		s.workspace.AddRoot(PathToURI(*params.RootPath))
	}

	enc := negotiateEncoding(clientPositionEncodings(ctx))
	s.workspace.SetPositionEncoding(enc)
	s.logger.Info("negotiated position encoding", slog.String("encoding", string(enc)))

	syncKind := protocol.TextDocumentSyncKindIncremental
	openClose := true
	capabilities := map[string]any{
		"textDocumentSync": protocol.TextDocumentSyncOptions{
			OpenClose: &openClose,
			Change:    &syncKind,
		},
		"hoverProvider":          true,
		"completionProvider":     protocol.CompletionOptions{},
		"documentSymbolProvider": true,
		"codeActionProvider":     true,
		"selectionRangeProvider": true,
		"signatureHelpProvider":  protocol.SignatureHelpOptions{},
		"executeCommandProvider": protocol.ExecuteCommandOptions{
			Commands: CommandNames,
		},
		// LSP 3.17 field, absent from glsp's 3.16 structs.
		"positionEncoding": string(enc),
	}

	version := Version
	return initializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

// clientPositionEncodings extracts general.positionEncodings from the raw
// initialize params. The field is LSP 3.17; glsp's typed ClientCapabilities
// predate it, so it is read from the raw JSON.
func clientPositionEncodings(ctx *glsp.Context) []string {
	if ctx == nil || len(ctx.Params) == 0 {
		return nil
	}
	var probe struct {
		Capabilities struct {
			General struct {
				PositionEncodings []string `json:"positionEncodings"`
			} `json:"general"`
		} `json:"capabilities"`
	}
	if err := json.Unmarshal(ctx.Params, &probe); err != nil {
		return nil
	}
	return probe.Capabilities.General.PositionEncodings
}

// initialized handles the initialized notification: the lifecycle enters
// the Initialized state, the notifier binds to the connection, and the
// workspace watcher starts.
func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.state.Store(stateInitialized)

	if ctx != nil && ctx.Notify != nil {
		notify := ctx.Notify
		s.workspace.SetNotifier(func(method string, params any) {
			notify(method, params)
		})
	}

	if err := s.watcher.Start(s.workspace.Roots()); err != nil {
		s.logger.Warn("workspace watcher failed to start", slog.String("error", err.Error()))
	}

	s.logger.Info("server initialized")
	return nil
}

// shutdown handles the shutdown request: pending work is drained and the
// server stops accepting feature requests.
func (s *Server) shutdown(_ *glsp.Context) error {
	s.logger.Info("shutdown request received")
	s.state.Store(stateShuttingDown)
	s.watcher.Stop()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

// exit handles the exit notification. Exit code is 0 after a shutdown
// request, 1 otherwise, per the LSP lifecycle.
func (s *Server) exit(_ *glsp.Context) error {
	exitCode := 0
	if s.state.Load() != stateShuttingDown {
		s.logger.Warn("exit called without shutdown")
		exitCode = 1
	}
	s.state.Store(stateExited)
	s.logger.Info("exit notification received", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
	return nil // unreachable
}

// setTrace handles $/setTrace.
func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// cancelRequest handles $/cancelRequest. The glsp transport aborts
// queued requests at the JSON-RPC level; feature handlers here run
// synchronously against a snapshot, so a response computed for an older
// document version is impossible by construction. This handler is the
// hook for additional cancellation bookkeeping.
func (s *Server) cancelRequest(_ *glsp.Context, params *protocol.CancelParams) error {
	s.logger.Debug("cancelRequest", slog.Any("id", params.ID))
	return nil
}

// textDocumentDidOpen handles textDocument/didOpen.
func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.bindNotifier(ctx)
	s.logger.Debug("textDocument/didOpen",
		slog.String("uri", params.TextDocument.URI),
		slog.Int("version", int(params.TextDocument.Version)),
	)
	s.workspace.Open(params.TextDocument.URI, int(params.TextDocument.Version), params.TextDocument.Text)
	return nil
}

// textDocumentDidChange handles textDocument/didChange. Out-of-sequence
// versions are rejected and leave the document untouched.
func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.bindNotifier(ctx)
	uri := params.TextDocument.URI
	version := int(params.TextDocument.Version)

	if err := s.workspace.Change(uri, version, params.ContentChanges); err != nil {
		s.logger.Warn("rejecting document change",
			slog.String("uri", uri),
			slog.Int("version", version),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// textDocumentDidClose handles textDocument/didClose.
func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.workspace.Close(params.TextDocument.URI)
	return nil
}

// workspaceExecuteCommand handles workspace/executeCommand.
func (s *Server) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, params)
}

// workspaceDidChangeWorkspaceFolders handles folder add/remove. New
// folders are scanned for schema files by restarting the watcher.
func (s *Server) workspaceDidChangeWorkspaceFolders(_ *glsp.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	for _, folder := range params.Event.Added {
		s.workspace.AddRoot(folder.URI)
	}
	s.watcher.Stop()
	s.watcher = NewWatcher(s.logger, s.workspace)
	if err := s.watcher.Start(s.workspace.Roots()); err != nil {
		s.logger.Warn("workspace watcher failed to restart", slog.String("error", err.Error()))
	}
	return nil
}

// bindNotifier captures the connection's notify function on first use so
// diagnostics can be published from watcher callbacks too.
func (s *Server) bindNotifier(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	notify := ctx.Notify
	s.workspace.SetNotifier(func(method string, params any) {
		notify(method, params)
	})
}

func clientName(params *protocol.InitializeParams) string {
	if params.ClientInfo != nil {
		if params.ClientInfo.Version != nil {
			return params.ClientInfo.Name + " " + *params.ClientInfo.Version
		}
		return params.ClientInfo.Name
	}
	return "unknown"
}
