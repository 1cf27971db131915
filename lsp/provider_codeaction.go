package lsp

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/schema"
)

// textDocumentCodeAction handles textDocument/codeAction. Each supported
// server command whose precondition holds at the cursor becomes an action
// carrying that command with arguments pre-filled from the document URI
// and the resolved range.
func (s *Server) textDocumentCodeAction(_ *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	uri := params.TextDocument.URI
	doc := s.workspace.Snapshot(uri)
	if doc == nil {
		return nil, nil
	}

	enc := s.workspace.PositionEncoding()
	view := s.workspace.Registry().Snapshot()
	hasMSH := doc.Tree.Segments.First("MSH") != nil

	var actions []protocol.CodeAction

	// setTimestampToNow: the cursor must resolve to a timestamp field.
	offset, ok := OffsetFromPosition(doc.Text, int(params.Range.Start.Line), int(params.Range.Start.Character), enc)
	if ok {
		if loc, resolved := doc.Tree.Resolve(offset); resolved && loc.HasField() {
			if fi, known := view.LookupField(loc.Segment, loc.Field); known && schema.IsTimestampDatatype(fi.Datatype) {
				fieldLoc := loc
				fieldLoc.Component = -1
				fieldLoc.SubComponent = -1
				if span, ok := doc.Tree.SpanOf(fieldLoc); ok {
					actions = append(actions, commandAction(
						"Set timestamp to now", protocol.CodeActionKindQuickFix,
						CommandSetTimestampToNow,
						uri, rangeFromSpan(doc.Text, span, enc),
					))
				}
			}
		}
	}

	if hasMSH {
		actions = append(actions, commandAction(
			"Generate a new control ID", protocol.CodeActionKindQuickFix,
			CommandGenerateControlID,
			uri,
		))
		actions = append(actions, commandAction(
			"Send message to a listener", protocol.CodeActionKindSource,
			CommandSendMessage,
			// Hostname and port stay blank: the client prompts for them.
			uri, "", "",
		))
	}

	if params.Range.Start != params.Range.End {
		actions = append(actions, commandAction(
			"Encode selection", protocol.CodeActionKindRefactorRewrite,
			CommandEncodeSelection,
			uri, params.Range,
		))
		actions = append(actions, commandAction(
			"Decode selection", protocol.CodeActionKindRefactorRewrite,
			CommandDecodeSelection,
			uri, params.Range,
		))
	}

	return actions, nil
}

// commandAction wraps a server command as a code action.
func commandAction(title string, kind protocol.CodeActionKind, command string, args ...any) protocol.CodeAction {
	return protocol.CodeAction{
		Title: title,
		Kind:  &kind,
		Command: &protocol.Command{
			Title:     title,
			Command:   command,
			Arguments: args,
		},
	}
}
