package lsp

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/schema"
)

// textDocumentCompletion handles textDocument/completion. Two contexts
// produce items: the start of a line offers segment names (standard
// first, then workspace-defined), and a field with an effective
// allowed-values table offers its codes.
func (s *Server) textDocumentCompletion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
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

	view := s.workspace.Registry().Snapshot()

	if atSegmentStart(doc.Text, offset, doc.Delimiters().Field) {
		return segmentNameItems(view), nil
	}

	loc, ok := doc.Tree.Resolve(offset)
	if !ok || !loc.HasField() {
		return nil, nil
	}
	table := view.AllowedValues(loc.Segment, loc.Field)
	if table == nil {
		return nil, nil
	}
	return tableValueItems(table), nil
}

// atSegmentStart reports whether the offset sits in the leading run of a
// line, before any field separator: the position where a segment name is
// being typed.
func atSegmentStart(text string, offset int, fieldSep byte) bool {
	lineStart := offset
	for lineStart > 0 && text[lineStart-1] != '\n' && text[lineStart-1] != '\r' {
		lineStart--
	}
	if offset-lineStart > 3 {
		return false
	}
	for i := lineStart; i < offset; i++ {
		if text[i] == fieldSep {
			return false
		}
	}
	return true
}

// segmentNameItems builds completion items for every known segment name,
// ranked standard-first then workspace-defined via SortText.
func segmentNameItems(view *schema.View) []protocol.CompletionItem {
	names := view.SegmentNames()
	items := make([]protocol.CompletionItem, 0, len(names))
	for _, name := range names {
		seg, _ := view.LookupSegment(name)
		kind := protocol.CompletionItemKindClass
		detail := seg.Description
		rank := "0"
		if seg.Workspace {
			rank = "1"
		}
		sortText := fmt.Sprintf("%s-%s", rank, name)
		items = append(items, protocol.CompletionItem{
			Label:    name,
			Kind:     &kind,
			Detail:   &detail,
			SortText: &sortText,
		})
	}
	return items
}

// tableValueItems builds completion items for a field's allowed codes,
// with the code description as detail.
func tableValueItems(table *schema.Table) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(table.Entries))
	for _, entry := range table.Entries {
		entry := entry
		kind := protocol.CompletionItemKindValue
		items = append(items, protocol.CompletionItem{
			Label:  entry.Code,
			Kind:   &kind,
			Detail: &entry.Description,
		})
	}
	return items
}
