package lsp

import (
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
	"github.com/hl7tools/hl7ls/schema"
)

// textDocumentHover handles textDocument/hover.
//
//nolint:nilnil // LSP protocol: nil result means "no hover info"
func (s *Server) textDocumentHover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	doc := s.workspace.Snapshot(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	enc := s.workspace.PositionEncoding()
	offset, ok := OffsetFromPosition(doc.Text, int(params.Position.Line), int(params.Position.Character), enc)
	if !ok {
		return nil, nil
	}

	loc, ok := doc.Tree.Resolve(offset)
	if !ok {
		return nil, nil
	}

	view := s.workspace.Registry().Snapshot()
	content := hoverContent(doc, loc, view)
	if content == "" {
		return nil, nil
	}

	span, ok := doc.Tree.SpanOf(loc)
	if !ok {
		return nil, nil
	}
	rng := rangeFromSpan(doc.Text, span, enc)

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: content,
		},
		Range: &rng,
	}, nil
}

// hoverContent renders the Markdown for a resolved structural path. The
// effective schema wins over the standard (the view is already merged).
func hoverContent(doc *DocumentSnapshot, loc hl7.Location, view *schema.View) string {
	segInfo, knownSeg := view.LookupSegment(loc.Segment)

	var b strings.Builder

	if !loc.HasField() {
		fmt.Fprintf(&b, "**%s**", loc.Segment)
		if knownSeg && segInfo.Description != "" {
			fmt.Fprintf(&b, " — %s", segInfo.Description)
		}
		b.WriteString("\n")
		if knownSeg && segInfo.Workspace {
			b.WriteString("\nDefined by a workspace schema.\n")
		}
		return b.String()
	}

	fieldInfo, knownField := view.LookupField(loc.Segment, loc.Field)

	fmt.Fprintf(&b, "**%s.%d**", loc.Segment, loc.Field)
	if knownField && fieldInfo.Description != "" {
		fmt.Fprintf(&b, " — %s", fieldInfo.Description)
	}
	b.WriteString("\n")

	if loc.HasComponent() || (loc.HasRepetition() && loc.Repetition > 0) {
		fmt.Fprintf(&b, "\n`%s`\n", loc)
	}

	if knownField {
		b.WriteString("\n")
		if fieldInfo.Datatype != "" {
			fmt.Fprintf(&b, "- Datatype: `%s`\n", fieldInfo.Datatype)
		}
		if fieldInfo.Required {
			b.WriteString("- Required\n")
		}
	}

	// When hovering a table value, add the code's description.
	if table := view.AllowedValues(loc.Segment, loc.Field); table != nil {
		if span, ok := doc.Tree.SpanOf(loc); ok {
			code := hl7.Value(doc.Text, span)
			if entry, found := table.Lookup(code); found {
				origin := "standard table"
				if table.Workspace {
					origin = "workspace table"
				}
				fmt.Fprintf(&b, "\n**%s** — %s (%s)\n", entry.Code, entry.Description, origin)
			}
		}
	}

	return b.String()
}
