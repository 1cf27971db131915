// Package hl7 provides the structural model for HL7 v2 messages as they
// appear in an editor buffer: a tolerant parser that never rejects a
// document, a parse tree whose every node carries its byte span, delimiter
// extraction from MSH.1/MSH.2, offset-to-path resolution, and the HL7
// escape codec.
//
// The tree mirrors the HL7 hierarchy: a Message is a sequence of Segments;
// a Segment has Fields; a Field has Repetitions; a Repetition has
// Components; a Component has Subcomponents. Field, component, and
// subcomponent indices are 1-based per HL7 convention; repetition indices
// are 0-based.
package hl7
