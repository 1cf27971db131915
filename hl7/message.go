package hl7

// Span is a half-open byte range [Start, End) into the document text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether the byte offset lies within the span.
// Zero-length spans contain their own start offset, so empty elements
// at a delimiter boundary remain resolvable.
func (s Span) Contains(offset int) bool {
	if s.Start == s.End {
		return offset == s.Start
	}
	return offset >= s.Start && offset < s.End
}

// Subcomponent is a leaf of the parse tree.
type Subcomponent struct {
	Span  Span
	Value string
}

// Component holds one or more subcomponents.
type Component struct {
	Span          Span
	Subcomponents []Subcomponent
}

// Repetition holds one or more components.
type Repetition struct {
	Span       Span
	Components []Component
}

// Field holds one or more repetitions. Fields[i] of a Segment is field
// number i+1 in HL7 notation.
type Field struct {
	Span        Span
	Repetitions []Repetition
}

// Segment is one line of an HL7 message. For MSH segments, Fields[0] is
// the field separator itself (MSH.1) and Fields[1] the raw encoding
// characters (MSH.2); neither is split on the delimiters it declares.
type Segment struct {
	Name   string
	Span   Span // excludes the line terminator
	Fields []Field
}

// Field returns the field with the given 1-based number, or nil.
func (s *Segment) Field(n int) *Field {
	if n < 1 || n > len(s.Fields) {
		return nil
	}
	return &s.Fields[n-1]
}

// ParseIssue records a line the parser could not recognise as a segment.
type ParseIssue struct {
	Span    Span
	Message string
}

// Message is a parsed HL7 document: the segment sequence, the delimiter
// set in effect, and any unparseable lines. A Message is immutable once
// built; snapshots hand it out across goroutines without copying.
type Message struct {
	Segments   Segments
	Delimiters Delimiters
	Issues     []ParseIssue
}

// Segments is a slice of segments ordered by span.
type Segments []Segment

// First returns the first segment with the given name, or nil.
func (ss Segments) First(name string) *Segment {
	for i := range ss {
		if ss[i].Name == name {
			return &ss[i]
		}
	}
	return nil
}

// Value returns the text covered by a span within the original document.
// Callers hold the document text alongside the tree; the tree itself only
// stores leaf values.
func Value(text string, sp Span) string {
	if sp.Start < 0 || sp.End > len(text) || sp.Start > sp.End {
		return ""
	}
	return text[sp.Start:sp.End]
}
