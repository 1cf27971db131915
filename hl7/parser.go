package hl7

import (
	"strings"
)

// segmentNameOK reports whether the first three bytes of a line form a
// valid segment identifier: an uppercase letter followed by two uppercase
// alphanumerics.
func segmentNameOK(line string) bool {
	if len(line) < 3 {
		return false
	}
	if line[0] < 'A' || line[0] > 'Z' {
		return false
	}
	for i := 1; i < 3; i++ {
		c := line[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Parse builds the parse tree for a document. It never fails: lines that
// cannot be recognised as segments are recorded as Issues and skipped.
// Delimiters are re-derived from the first segment on every parse, so a
// tree never mixes old delimiters with new text.
func Parse(text string) *Message {
	msg := &Message{Delimiters: DefaultDelimiters()}

	lines := splitLines(text)
	if len(lines) > 0 {
		first := Value(text, lines[0])
		if d, err := ParseDelimiters([]byte(first)); err == nil {
			msg.Delimiters = d
		} else if strings.HasPrefix(first, "MSH") && len(first) > 3 {
			// Partial header: honour the declared field separator,
			// keep defaults for the encoding characters.
			msg.Delimiters.Field = first[3]
		}
	}

	for _, lineSpan := range lines {
		line := Value(text, lineSpan)
		if line == "" {
			continue
		}
		if !segmentNameOK(line) {
			msg.Issues = append(msg.Issues, ParseIssue{
				Span:    lineSpan,
				Message: "unrecognised segment line",
			})
			continue
		}
		if len(line) > 3 && line[3] != msg.Delimiters.Field {
			msg.Issues = append(msg.Issues, ParseIssue{
				Span:    lineSpan,
				Message: "expected field separator after segment name",
			})
			continue
		}
		msg.Segments = append(msg.Segments, parseSegment(text, lineSpan, msg.Delimiters))
	}

	return msg
}

// splitLines returns the span of every line in the text. Lines end at
// \r\n, \r, or \n; the terminator is excluded from the span.
func splitLines(text string) []Span {
	var spans []Span
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			spans = append(spans, Span{Start: start, End: i})
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		case '\n':
			spans = append(spans, Span{Start: start, End: i})
			start = i + 1
		}
	}
	if start < len(text) {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// parseSegment splits one segment line into the field hierarchy.
func parseSegment(text string, lineSpan Span, d Delimiters) Segment {
	seg := Segment{
		Name: text[lineSpan.Start : lineSpan.Start+3],
		Span: lineSpan,
	}

	rest := lineSpan.Start + 3 // offset of the first field separator
	if rest >= lineSpan.End {
		return seg
	}

	if seg.Name == "MSH" {
		// MSH.1 is the separator byte itself, MSH.2 the encoding
		// characters; neither is split on the delimiters it declares.
		sep := Span{Start: rest, End: rest + 1}
		seg.Fields = append(seg.Fields, opaqueField(text, sep))

		msh2End := lineSpan.End
		for i := rest + 1; i < lineSpan.End; i++ {
			if text[i] == d.Field {
				msh2End = i
				break
			}
		}
		seg.Fields = append(seg.Fields, opaqueField(text, Span{Start: rest + 1, End: msh2End}))

		if msh2End >= lineSpan.End {
			return seg
		}
		rest = msh2End
	}

	for _, fs := range splitOn(text, Span{Start: rest + 1, End: lineSpan.End}, d.Field) {
		seg.Fields = append(seg.Fields, parseField(text, fs, d))
	}
	return seg
}

// opaqueField wraps a span as a field with a single leaf, used for MSH.1
// and MSH.2.
func opaqueField(text string, sp Span) Field {
	return Field{
		Span: sp,
		Repetitions: []Repetition{{
			Span: sp,
			Components: []Component{{
				Span: sp,
				Subcomponents: []Subcomponent{{
					Span:  sp,
					Value: Value(text, sp),
				}},
			}},
		}},
	}
}

func parseField(text string, sp Span, d Delimiters) Field {
	f := Field{Span: sp}
	for _, rs := range splitOn(text, sp, d.Repetition) {
		f.Repetitions = append(f.Repetitions, parseRepetition(text, rs, d))
	}
	return f
}

func parseRepetition(text string, sp Span, d Delimiters) Repetition {
	r := Repetition{Span: sp}
	for _, cs := range splitOn(text, sp, d.Component) {
		c := Component{Span: cs}
		for _, ss := range splitOn(text, cs, d.Subcomponent) {
			c.Subcomponents = append(c.Subcomponents, Subcomponent{
				Span:  ss,
				Value: Value(text, ss),
			})
		}
		r.Components = append(r.Components, c)
	}
	return r
}

// splitOn splits a span on a delimiter byte, returning the sub-spans
// between delimiters. An empty span yields a single zero-length sub-span,
// so empty elements keep a resolvable position.
func splitOn(text string, sp Span, delim byte) []Span {
	var out []Span
	start := sp.Start
	for i := sp.Start; i < sp.End; i++ {
		if text[i] == delim {
			out = append(out, Span{Start: start, End: i})
			start = i + 1
		}
	}
	out = append(out, Span{Start: start, End: sp.End})
	return out
}
