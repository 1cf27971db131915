package lsp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
	"github.com/hl7tools/hl7ls/mllp"
)

// Workspace command identifiers, advertised verbatim in the server
// capabilities.
const (
	CommandSetTimestampToNow = "hl7.setTimestampToNow"
	CommandGenerateControlID = "hl7.generateControlId"
	CommandSendMessage       = "hl7.sendMessage"
	CommandEncodeText        = "hl7.encodeText"
	CommandDecodeText        = "hl7.decodeText"
	CommandEncodeSelection   = "hl7.encodeSelection"
	CommandDecodeSelection   = "hl7.decodeSelection"
)

// CommandNames lists every command the server executes.
var CommandNames = []string{
	CommandSetTimestampToNow,
	CommandGenerateControlID,
	CommandSendMessage,
	CommandEncodeText,
	CommandDecodeText,
	CommandEncodeSelection,
	CommandDecodeSelection,
}

// ErrInvalidArguments is returned when a command's arguments do not
// validate. The server loop returns it unchanged; no InvalidParams code is
// attached to it.
var ErrInvalidArguments = errors.New("invalid command arguments")

// controlIDAlphabet and controlIDLength shape generated control IDs.
const (
	controlIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	controlIDLength   = 20
)

// timestampLayout is the HL7 TS rendering of a local time.
const timestampLayout = "20060102150405"

// Executor runs workspace/executeCommand requests. Mutating commands
// produce a WorkspaceEdit that is both applied via workspace/applyEdit
// and returned as the request result.
type Executor struct {
	logger *slog.Logger
	ws     *Workspace
	client *mllp.Client

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewExecutor creates a command executor over the workspace.
func NewExecutor(logger *slog.Logger, ws *Workspace) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger: logger.With(slog.String("component", "commands")),
		ws:     ws,
		client: &mllp.Client{},
		now:    time.Now,
	}
}

// Execute dispatches one command.
func (e *Executor) Execute(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	e.logger.Debug("executing command", slog.String("command", params.Command))

	switch params.Command {
	case CommandSetTimestampToNow:
		return e.setTimestampToNow(ctx, params.Arguments)
	case CommandGenerateControlID:
		return e.generateControlID(ctx, params.Arguments)
	case CommandSendMessage:
		return e.sendMessage(params.Arguments)
	case CommandEncodeText:
		return e.transformText(params.Arguments, hl7.Encode)
	case CommandDecodeText:
		return e.transformText(params.Arguments, hl7.Decode)
	case CommandEncodeSelection:
		return e.transformSelection(ctx, params.Arguments, hl7.Encode)
	case CommandDecodeSelection:
		return e.transformSelection(ctx, params.Arguments, hl7.Decode)
	}
	return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidArguments, params.Command)
}

func (e *Executor) setTimestampToNow(ctx *glsp.Context, args []any) (any, error) {
	uri, err := argString(args, 0, "uri")
	if err != nil {
		return nil, err
	}
	rng, err := argRange(args, 1)
	if err != nil {
		return nil, err
	}
	if e.ws.Snapshot(uri) == nil {
		return nil, fmt.Errorf("%w: %s is not open", ErrInvalidArguments, uri)
	}

	edit := singleEdit(uri, rng, e.now().Format(timestampLayout))
	e.applyEdit(ctx, "Set timestamp to now", edit)
	return edit, nil
}

func (e *Executor) generateControlID(ctx *glsp.Context, args []any) (any, error) {
	uri, err := argString(args, 0, "uri")
	if err != nil {
		return nil, err
	}
	doc := e.ws.Snapshot(uri)
	if doc == nil {
		return nil, fmt.Errorf("%w: %s is not open", ErrInvalidArguments, uri)
	}
	msh := doc.Tree.Segments.First("MSH")
	if msh == nil {
		return nil, fmt.Errorf("%w: document has no MSH segment", ErrInvalidArguments)
	}
	field := msh.Field(10)
	if field == nil {
		return nil, fmt.Errorf("%w: MSH.10 is not present", ErrInvalidArguments)
	}

	id, err := newControlID()
	if err != nil {
		return nil, fmt.Errorf("generate control id: %w", err)
	}

	rng := rangeFromSpan(doc.Text, field.Span, e.ws.PositionEncoding())
	edit := singleEdit(uri, rng, id)
	e.applyEdit(ctx, "Generate control ID", edit)
	return edit, nil
}

// sendMessageArgs are the positional arguments of hl7.sendMessage.
type sendMessageArgs struct {
	uri      string
	hostname string
	port     int
	timeout  time.Duration
}

func (e *Executor) sendMessage(args []any) (any, error) {
	parsed, err := parseSendArgs(args)
	if err != nil {
		return nil, err
	}
	doc := e.ws.Snapshot(parsed.uri)
	if doc == nil {
		return nil, fmt.Errorf("%w: %s is not open", ErrInvalidArguments, parsed.uri)
	}

	// Segments travel CR-separated on the wire regardless of how the
	// buffer stores its line endings.
	payload := strings.ReplaceAll(doc.Text, "\r\n", "\r")
	payload = strings.ReplaceAll(payload, "\n", "\r")

	client := *e.client
	client.Timeout = parsed.timeout

	addr := net.JoinHostPort(parsed.hostname, strconv.Itoa(parsed.port))
	e.logger.Info("sending message",
		slog.String("uri", parsed.uri),
		slog.String("addr", addr),
		slog.Duration("timeout", parsed.timeout),
	)

	resp, err := client.Exchange(context.Background(), addr, []byte(payload))
	if err != nil {
		return nil, err
	}
	return string(resp), nil
}

func parseSendArgs(args []any) (sendMessageArgs, error) {
	parsed := sendMessageArgs{timeout: mllp.DefaultTimeout}

	var err error
	if parsed.uri, err = argString(args, 0, "uri"); err != nil {
		return parsed, err
	}
	if parsed.hostname, err = argString(args, 1, "hostname"); err != nil {
		return parsed, err
	}
	if parsed.hostname == "" {
		return parsed, fmt.Errorf("%w: hostname is empty", ErrInvalidArguments)
	}

	port, err := argNumber(args, 2, "port")
	if err != nil {
		// Ports may also arrive as strings from client prompt boxes.
		str, serr := argString(args, 2, "port")
		if serr != nil {
			return parsed, err
		}
		if port, serr = strconv.Atoi(str); serr != nil {
			return parsed, fmt.Errorf("%w: port %q is not a number", ErrInvalidArguments, str)
		}
	}
	if port < 1 || port > 65535 {
		return parsed, fmt.Errorf("%w: port %d out of range", ErrInvalidArguments, port)
	}
	parsed.port = port

	if len(args) > 3 && args[3] != nil {
		secs, err := argNumber(args, 3, "timeout")
		if err != nil {
			return parsed, err
		}
		if secs > 0 {
			parsed.timeout = time.Duration(secs) * time.Second
		}
	}
	return parsed, nil
}

// transformText implements hl7.encodeText / hl7.decodeText: args are
// (text, uri?) and the result is the transformed string. The document's
// delimiters apply when a URI is given, defaults otherwise.
func (e *Executor) transformText(args []any, transform func(string, hl7.Delimiters) string) (any, error) {
	text, err := argString(args, 0, "text")
	if err != nil {
		return nil, err
	}

	delims := hl7.DefaultDelimiters()
	if len(args) > 1 && args[1] != nil {
		uri, err := argString(args, 1, "uri")
		if err != nil {
			return nil, err
		}
		doc := e.ws.Snapshot(uri)
		if doc == nil {
			return nil, fmt.Errorf("%w: %s is not open", ErrInvalidArguments, uri)
		}
		delims = doc.Delimiters()
	}
	return transform(text, delims), nil
}

// transformSelection implements hl7.encodeSelection / hl7.decodeSelection:
// the range content is transformed in place via a WorkspaceEdit.
func (e *Executor) transformSelection(ctx *glsp.Context, args []any, transform func(string, hl7.Delimiters) string) (any, error) {
	uri, err := argString(args, 0, "uri")
	if err != nil {
		return nil, err
	}
	rng, err := argRange(args, 1)
	if err != nil {
		return nil, err
	}
	doc := e.ws.Snapshot(uri)
	if doc == nil {
		return nil, fmt.Errorf("%w: %s is not open", ErrInvalidArguments, uri)
	}

	enc := e.ws.PositionEncoding()
	start, ok := OffsetFromPosition(doc.Text, int(rng.Start.Line), int(rng.Start.Character), enc)
	if !ok {
		return nil, fmt.Errorf("%w: range start out of document", ErrInvalidArguments)
	}
	end, ok := OffsetFromPosition(doc.Text, int(rng.End.Line), int(rng.End.Character), enc)
	if !ok || end < start {
		return nil, fmt.Errorf("%w: range end out of document", ErrInvalidArguments)
	}

	replaced := transform(doc.Text[start:end], doc.Delimiters())
	edit := singleEdit(uri, rng, replaced)
	e.applyEdit(ctx, "Transform selection", edit)
	return edit, nil
}

// applyEdit pushes a WorkspaceEdit to the client. Without a connection
// (tests), the edit is only returned to the caller.
func (e *Executor) applyEdit(ctx *glsp.Context, label string, edit protocol.WorkspaceEdit) {
	if ctx == nil || ctx.Call == nil {
		return
	}
	var result struct {
		Applied bool `json:"applied"`
	}
	ctx.Call(protocol.ServerWorkspaceApplyEdit, protocol.ApplyWorkspaceEditParams{
		Label: &label,
		Edit:  edit,
	}, &result)
	if !result.Applied {
		e.logger.Warn("client did not apply edit", slog.String("label", label))
	}
}

// singleEdit builds a WorkspaceEdit replacing one range in one document.
func singleEdit(uri string, rng protocol.Range, newText string) protocol.WorkspaceEdit {
	return protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentUri][]protocol.TextEdit{
			uri: {{Range: rng, NewText: newText}},
		},
	}
}

// newControlID draws a 20-character alphanumeric ID from crypto/rand.
func newControlID() (string, error) {
	max := big.NewInt(int64(len(controlIDAlphabet)))
	b := make([]byte, controlIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = controlIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

// argString extracts a positional string argument.
func argString(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidArguments, name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArguments, name)
	}
	return s, nil
}

// argNumber extracts a positional numeric argument. JSON numbers decode
// as float64.
func argNumber(args []any, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidArguments, name)
	}
	switch v := args[i].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidArguments, name)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidArguments, name)
}

// argRange extracts a positional Range argument. Ranges arrive either as
// protocol structs (in-process callers) or as decoded JSON maps.
func argRange(args []any, i int) (protocol.Range, error) {
	if i >= len(args) {
		return protocol.Range{}, fmt.Errorf("%w: missing range", ErrInvalidArguments)
	}
	if rng, ok := args[i].(protocol.Range); ok {
		return rng, nil
	}
	raw, err := json.Marshal(args[i])
	if err != nil {
		return protocol.Range{}, fmt.Errorf("%w: range is not serialisable", ErrInvalidArguments)
	}
	var rng protocol.Range
	if err := json.Unmarshal(raw, &rng); err != nil {
		return protocol.Range{}, fmt.Errorf("%w: malformed range", ErrInvalidArguments)
	}
	return rng, nil
}
