package lsp

import (
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hl7tools/hl7ls/hl7"
)

// PositionEncoding is how LSP character offsets are counted within a
// line. LSP 3.17 negotiates this at initialize; prior versions mandated
// UTF-16.
type PositionEncoding string

const (
	// PositionEncodingUTF8 counts positions in UTF-8 bytes.
	PositionEncodingUTF8 PositionEncoding = "utf-8"

	// PositionEncodingUTF16 counts positions in UTF-16 code units. This
	// is the default: VS Code and most editors use UTF-16 internally.
	PositionEncodingUTF16 PositionEncoding = "utf-16"

	// PositionEncodingUTF32 counts positions in Unicode code points.
	PositionEncodingUTF32 PositionEncoding = "utf-32"
)

// supportedEncodings lists the encodings this server can serve, in the
// order they are preferred when the client expresses no preference.
var supportedEncodings = []PositionEncoding{
	PositionEncodingUTF16,
	PositionEncodingUTF8,
	PositionEncodingUTF32,
}

// negotiateEncoding picks the first client-preferred encoding the server
// supports, defaulting to UTF-16 per the protocol.
func negotiateEncoding(clientPreferred []string) PositionEncoding {
	for _, pref := range clientPreferred {
		for _, sup := range supportedEncodings {
			if PositionEncoding(pref) == sup {
				return sup
			}
		}
	}
	return PositionEncodingUTF16
}

// OffsetFromPosition converts an LSP position to a byte offset. Lines are
// split on \n; a trailing \r belongs to the preceding line. Character
// offsets past the end of a line clamp to the line end; a line past the
// end of the document reports ok=false.
//
// Under UTF-16, a character offset landing on the second half of a
// surrogate pair floors to the start of that rune.
func OffsetFromPosition(text string, line, char int, enc PositionEncoding) (int, bool) {
	lineStart := 0
	for l := 0; l < line; l++ {
		nl := strings.IndexByte(text[lineStart:], '\n')
		if nl < 0 {
			return 0, false
		}
		lineStart += nl + 1
	}

	pos := lineStart
	units := 0
	for pos < len(text) && units < char {
		if text[pos] == '\n' {
			break
		}
		r, size := utf8.DecodeRuneInString(text[pos:])
		if r == utf8.RuneError && size <= 1 {
			units++
			pos++
			continue
		}
		switch enc {
		case PositionEncodingUTF8:
			if pos+size > lineStart+char {
				return pos, true // mid-rune request: floor to rune start
			}
			units += size
		case PositionEncodingUTF32:
			units++
		default: // UTF-16
			if r > 0xFFFF {
				if units+1 == char {
					return pos, true // mid-surrogate: floor to rune start
				}
				units += 2
			} else {
				units++
			}
		}
		pos += size
	}
	return pos, true
}

// PositionFromOffset converts a byte offset to an LSP position under the
// given encoding. Offsets out of range are clamped to the document.
func PositionFromOffset(text string, offset int, enc PositionEncoding) (line, char int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	lineStart := 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}

	pos := lineStart
	for pos < offset {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if r == utf8.RuneError && size <= 1 {
			char++
			pos++
			continue
		}
		if pos+size > offset {
			break // offset is mid-rune; report the rune start
		}
		switch enc {
		case PositionEncodingUTF8:
			char += size
		case PositionEncodingUTF32:
			char++
		default: // UTF-16
			if r > 0xFFFF {
				char += 2
			} else {
				char++
			}
		}
		pos += size
	}
	return line, char
}

// rangeFromSpan converts a byte span to an LSP range.
func rangeFromSpan(text string, sp hl7.Span, enc PositionEncoding) protocol.Range {
	sl, sc := PositionFromOffset(text, sp.Start, enc)
	el, ec := PositionFromOffset(text, sp.End, enc)
	return protocol.Range{
		Start: protocol.Position{Line: toUInteger(sl), Character: toUInteger(sc)},
		End:   protocol.Position{Line: toUInteger(el), Character: toUInteger(ec)},
	}
}

// toUInteger converts a non-negative int to the protocol integer type.
func toUInteger(i int) protocol.UInteger {
	if i < 0 {
		return 0
	}
	return protocol.UInteger(i)
}
