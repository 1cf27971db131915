// Package schema holds the HL7 segment/field/datatype/table catalogue:
// an immutable standard baked in at build time, layered under mutable
// workspace overlays loaded from .hl7v.toml files. Lookups go through an
// immutable merged View so analyses that outlive an overlay change keep a
// consistent picture.
package schema

import "regexp"

// TableEntry is one allowed code with its human description.
type TableEntry struct {
	Code        string
	Description string
}

// Table is the set of allowed values for a field. Workspace reports
// whether the effective table was declared by a workspace overlay rather
// than the standard; workspace tables are validated unconditionally.
type Table struct {
	Workspace bool
	Entries   []TableEntry
}

// Lookup returns the entry for a code, if present.
func (t *Table) Lookup(code string) (TableEntry, bool) {
	if t == nil {
		return TableEntry{}, false
	}
	for _, e := range t.Entries {
		if e.Code == code {
			return e, true
		}
	}
	return TableEntry{}, false
}

// Field describes one field of a segment.
type Field struct {
	Description string
	Datatype    string
	Required    bool
	Table       *Table
}

// Segment describes a segment: its description plus a sparse mapping from
// 1-based field number to field info.
type Segment struct {
	Name        string
	Description string
	Workspace   bool // defined (not merely overridden) by an overlay
	Fields      map[int]Field
}

// MaxFieldNumber returns the highest declared field number.
func (s Segment) MaxFieldNumber() int {
	max := 0
	for n := range s.Fields {
		if n > max {
			max = n
		}
	}
	return max
}

// Datatype value shapes for the handful of primitive types the analyzer
// checks. Anything not listed is unconstrained.
var datatypeShapes = map[string]*regexp.Regexp{
	"NM":  regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`),
	"SI":  regexp.MustCompile(`^\d{1,4}$`),
	"DT":  regexp.MustCompile(`^\d{4}(\d{2}(\d{2})?)?$`),
	"TM":  regexp.MustCompile(`^\d{2}(\d{2}(\d{2}(\.\d{1,4})?)?)?([+-]\d{4})?$`),
	"TS":  regexp.MustCompile(`^\d{4,14}(\.\d{1,4})?([+-]\d{4})?$`),
	"DTM": regexp.MustCompile(`^\d{4,14}(\.\d{1,4})?([+-]\d{4})?$`),
}

// CheckDatatype reports whether value conforms to the named datatype's
// shape. checked is false when the datatype has no shape to validate
// against, in which case ok is meaningless.
func CheckDatatype(datatype, value string) (ok, checked bool) {
	re, found := datatypeShapes[datatype]
	if !found {
		return false, false
	}
	return re.MatchString(value), true
}

// IsTimestampDatatype reports whether the datatype denotes a point or
// partial point in time, the precondition for the set-timestamp action.
func IsTimestampDatatype(datatype string) bool {
	switch datatype {
	case "TS", "DTM", "DT", "TM":
		return true
	}
	return false
}
