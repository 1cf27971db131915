package hl7

import (
	"fmt"
	"strings"
)

// Location identifies an element inside a parsed message. Field,
// Component, and SubComponent are 1-based per the HL7 standard;
// SegmentIndex and Repetition are 0-based. A value of -1 means the level
// is not part of the path.
//
// String renderings follow HL7 path notation:
//
//	"PID"          segment only
//	"PID.5"        field
//	"PID.5[2].2"   second repetition, component 2
//	"PID.5.1.2"    component 1, subcomponent 2
type Location struct {
	Segment      string
	SegmentIndex int
	Field        int
	Repetition   int
	Component    int
	SubComponent int
}

// NewLocation returns a Location naming a segment occurrence with no
// deeper levels set.
func NewLocation(segment string, segmentIndex int) Location {
	return Location{
		Segment:      strings.ToUpper(segment),
		SegmentIndex: segmentIndex,
		Field:        -1,
		Repetition:   -1,
		Component:    -1,
		SubComponent: -1,
	}
}

// HasField reports whether the path reaches field depth.
func (l Location) HasField() bool { return l.Field >= 1 }

// HasRepetition reports whether the path names a specific repetition.
func (l Location) HasRepetition() bool { return l.Repetition >= 0 }

// HasComponent reports whether the path reaches component depth.
func (l Location) HasComponent() bool { return l.Component >= 1 }

// HasSubComponent reports whether the path reaches subcomponent depth.
func (l Location) HasSubComponent() bool { return l.SubComponent >= 1 }

// String renders the path in HL7 notation. The repetition index is shown
// 1-based in brackets, and only for repetitions after the first.
func (l Location) String() string {
	var sb strings.Builder
	sb.WriteString(l.Segment)
	if !l.HasField() {
		return sb.String()
	}
	fmt.Fprintf(&sb, ".%d", l.Field)
	if l.HasRepetition() && l.Repetition > 0 {
		fmt.Fprintf(&sb, "[%d]", l.Repetition+1)
	}
	if l.HasComponent() {
		fmt.Fprintf(&sb, ".%d", l.Component)
		if l.HasSubComponent() {
			fmt.Fprintf(&sb, ".%d", l.SubComponent)
		}
	}
	return sb.String()
}
