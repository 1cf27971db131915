package lsp

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
)

// textDocumentSelectionRange handles textDocument/selectionRange. For
// each position it returns the chain subcomponent ⊂ component ⊂
// repetition ⊂ field ⊂ segment ⊂ document, skipping levels that do not
// exist at that position.
func (s *Server) textDocumentSelectionRange(_ *glsp.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	doc := s.workspace.Snapshot(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	enc := s.workspace.PositionEncoding()
	docSpan := hl7.Span{Start: 0, End: len(doc.Text)}

	out := make([]protocol.SelectionRange, 0, len(params.Positions))
	for _, pos := range params.Positions {
		offset, ok := OffsetFromPosition(doc.Text, int(pos.Line), int(pos.Character), enc)
		if !ok {
			out = append(out, protocol.SelectionRange{Range: rangeFromSpan(doc.Text, docSpan, enc)})
			continue
		}

		chain := doc.Tree.SpanChain(offset)
		if len(chain) == 0 || chain[len(chain)-1] != docSpan {
			chain = append(chain, docSpan)
		}

		// Build the linked list outermost-first so each inner range
		// points at its parent.
		var parent *protocol.SelectionRange
		for i := len(chain) - 1; i >= 0; i-- {
			sr := &protocol.SelectionRange{
				Range:  rangeFromSpan(doc.Text, chain[i], enc),
				Parent: parent,
			}
			parent = sr
		}
		out = append(out, *parent)
	}
	return out, nil
}
