package lsp

import (
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentSignatureHelp handles textDocument/signatureHelp. Inside a
// field it renders a single signature SEG|f1|f2|… whose active parameter
// is the current 1-based field number; parameter labels carry the field
// descriptions from the effective schema.
//
//nolint:nilnil // LSP protocol: nil result means "no signature help"
func (s *Server) textDocumentSignatureHelp(_ *glsp.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
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
	if !ok || !loc.HasField() {
		return nil, nil
	}

	view := s.workspace.Registry().Snapshot()
	info, known := view.LookupSegment(loc.Segment)
	if !known {
		return nil, nil
	}

	fieldCount := info.MaxFieldNumber()
	if loc.Field > fieldCount {
		fieldCount = loc.Field
	}

	labels := make([]string, 0, fieldCount)
	parameters := make([]protocol.ParameterInformation, 0, fieldCount)
	for n := 1; n <= fieldCount; n++ {
		label := fmt.Sprintf("%s.%d", loc.Segment, n)
		if fi, ok := info.Fields[n]; ok && fi.Description != "" {
			label = fi.Description
		}
		labels = append(labels, label)
		parameters = append(parameters, protocol.ParameterInformation{Label: label})
	}

	signatureLabel := loc.Segment + "|" + strings.Join(labels, "|")
	active := toUInteger(loc.Field - 1)

	return &protocol.SignatureHelp{
		Signatures: []protocol.SignatureInformation{{
			Label:      signatureLabel,
			Parameters: parameters,
		}},
		ActiveSignature: ptrUInteger(0),
		ActiveParameter: &active,
	}, nil
}

func ptrUInteger(v protocol.UInteger) *protocol.UInteger { return &v }
