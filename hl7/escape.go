package hl7

import "strings"

// Escape sequence letters per the HL7 v2 standard.
const (
	escField        = 'F'
	escComponent    = 'S'
	escSubcomponent = 'T'
	escRepetition   = 'R'
	escEscape       = 'E'
)

// Encode applies HL7 escape rules to raw text so it can be embedded in a
// field without breaking the message structure: the escape character
// itself becomes \E\, the field separator \F\, the component separator
// \S\, the subcomponent separator \T\, and the repetition separator \R\
// (shown here with the default escape character).
func Encode(text string, d Delimiters) string {
	var sb strings.Builder
	sb.Grow(len(text))
	esc := func(letter byte) {
		sb.WriteByte(d.Escape)
		sb.WriteByte(letter)
		sb.WriteByte(d.Escape)
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case d.Escape:
			esc(escEscape)
		case d.Field:
			esc(escField)
		case d.Component:
			esc(escComponent)
		case d.Subcomponent:
			esc(escSubcomponent)
		case d.Repetition:
			esc(escRepetition)
		default:
			sb.WriteByte(text[i])
		}
	}
	return sb.String()
}

// Decode reverses Encode. Unknown escape sequences, and a dangling escape
// character with no closing delimiter, are passed through verbatim.
func Decode(text string, d Delimiters) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] != d.Escape {
			sb.WriteByte(text[i])
			continue
		}
		end := strings.IndexByte(text[i+1:], d.Escape)
		if end < 0 {
			sb.WriteString(text[i:])
			break
		}
		seq := text[i+1 : i+1+end]
		if r, ok := decodeSequence(seq, d); ok {
			sb.WriteByte(r)
			i += end + 1
			continue
		}
		// Unknown escape: emit verbatim including both escape chars.
		sb.WriteString(text[i : i+end+2])
		i += end + 1
	}
	return sb.String()
}

func decodeSequence(seq string, d Delimiters) (byte, bool) {
	if len(seq) != 1 {
		return 0, false
	}
	switch seq[0] {
	case escField:
		return d.Field, true
	case escComponent:
		return d.Component, true
	case escSubcomponent:
		return d.Subcomponent, true
	case escRepetition:
		return d.Repetition, true
	case escEscape:
		return d.Escape, true
	}
	return 0, false
}
