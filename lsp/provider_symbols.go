package lsp

import (
	"fmt"
	"sort"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
)

// textDocumentDocumentSymbol handles textDocument/documentSymbol. One
// top-level symbol per segment occurrence, suffixed when the segment name
// repeats; children are the fields that carry a non-empty description in
// the effective schema.
func (s *Server) textDocumentDocumentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	doc := s.workspace.Snapshot(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	enc := s.workspace.PositionEncoding()
	view := s.workspace.Registry().Snapshot()

	occurrences := make(map[string]int)
	for i := range doc.Tree.Segments {
		occurrences[doc.Tree.Segments[i].Name]++
	}
	seen := make(map[string]int)

	symbols := make([]protocol.DocumentSymbol, 0, len(doc.Tree.Segments))
	for i := range doc.Tree.Segments {
		seg := &doc.Tree.Segments[i]

		name := seg.Name
		seen[seg.Name]++
		if occurrences[seg.Name] > 1 {
			name = fmt.Sprintf("%s #%d", seg.Name, seen[seg.Name])
		}

		segRange := rangeFromSpan(doc.Text, seg.Span, enc)
		nameRange := rangeFromSpan(doc.Text, spanOfName(seg.Span), enc)

		sym := protocol.DocumentSymbol{
			Name:           name,
			Kind:           protocol.SymbolKindStruct,
			Range:          segRange,
			SelectionRange: nameRange,
		}
		if info, ok := view.LookupSegment(seg.Name); ok {
			if info.Description != "" {
				detail := info.Description
				sym.Detail = &detail
			}

			fieldNums := make([]int, 0, len(seg.Fields))
			for n := 1; n <= len(seg.Fields); n++ {
				if fi, ok := info.Fields[n]; ok && fi.Description != "" {
					fieldNums = append(fieldNums, n)
				}
			}
			sort.Ints(fieldNums)

			for _, n := range fieldNums {
				field := seg.Field(n)
				detail := info.Fields[n].Description
				fieldRange := rangeFromSpan(doc.Text, field.Span, enc)
				sym.Children = append(sym.Children, protocol.DocumentSymbol{
					Name:           fmt.Sprintf("%s.%d", seg.Name, n),
					Detail:         &detail,
					Kind:           protocol.SymbolKindField,
					Range:          fieldRange,
					SelectionRange: fieldRange,
				})
			}
		}
		symbols = append(symbols, sym)
	}

	return symbols, nil
}

// spanOfName narrows a segment span to its three-character name.
func spanOfName(segSpan hl7.Span) hl7.Span {
	end := segSpan.Start + 3
	if end > segSpan.End {
		end = segSpan.End
	}
	return hl7.Span{Start: segSpan.Start, End: end}
}
