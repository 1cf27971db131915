package hl7

import "sort"

// Resolve maps a byte offset to the structural path of the element at (or
// immediately following) that offset. A cursor sitting on a delimiter
// resolves to the element after it. Component and subcomponent levels are
// reported only where the text actually splits at that level, so hovering
// an unsplit field yields "PID.3" rather than "PID.3.1.1".
func (m *Message) Resolve(offset int) (Location, bool) {
	seg, segIdx := m.segmentAt(offset)
	if seg == nil {
		return Location{}, false
	}

	loc := NewLocation(seg.Name, segIdx)
	if offset < seg.Span.Start+3 || len(seg.Fields) == 0 {
		return loc, true
	}

	fieldIdx := childAt(offset, len(seg.Fields), func(i int) Span { return seg.Fields[i].Span })
	field := &seg.Fields[fieldIdx]
	loc.Field = fieldIdx + 1

	repIdx := childAt(offset, len(field.Repetitions), func(i int) Span { return field.Repetitions[i].Span })
	rep := &field.Repetitions[repIdx]
	loc.Repetition = repIdx

	compIdx := childAt(offset, len(rep.Components), func(i int) Span { return rep.Components[i].Span })
	comp := &rep.Components[compIdx]

	subIdx := childAt(offset, len(comp.Subcomponents), func(i int) Span { return comp.Subcomponents[i].Span })

	if len(rep.Components) > 1 || len(comp.Subcomponents) > 1 {
		loc.Component = compIdx + 1
	}
	if len(comp.Subcomponents) > 1 {
		loc.SubComponent = subIdx + 1
	}
	return loc, true
}

// SpanOf returns the byte span of the element the path names. Levels the
// path leaves unset widen the span to the enclosing element.
func (m *Message) SpanOf(loc Location) (Span, bool) {
	if loc.SegmentIndex < 0 || loc.SegmentIndex >= len(m.Segments) {
		return Span{}, false
	}
	seg := &m.Segments[loc.SegmentIndex]
	if seg.Name != loc.Segment {
		return Span{}, false
	}
	if !loc.HasField() {
		return seg.Span, true
	}
	field := seg.Field(loc.Field)
	if field == nil {
		return Span{}, false
	}
	rep := 0
	if loc.HasRepetition() {
		rep = loc.Repetition
	}
	if rep >= len(field.Repetitions) {
		return Span{}, false
	}
	r := &field.Repetitions[rep]
	if !loc.HasComponent() {
		if loc.HasRepetition() && len(field.Repetitions) > 1 {
			return r.Span, true
		}
		return field.Span, true
	}
	if loc.Component > len(r.Components) {
		return Span{}, false
	}
	c := &r.Components[loc.Component-1]
	if !loc.HasSubComponent() {
		return c.Span, true
	}
	if loc.SubComponent > len(c.Subcomponents) {
		return Span{}, false
	}
	return c.Subcomponents[loc.SubComponent-1].Span, true
}

// SpanChain returns the spans enclosing the offset, innermost first:
// subcomponent, component, repetition, field, segment. Levels whose span
// equals the next level out are collapsed, so the chain only contains
// strictly widening ranges.
func (m *Message) SpanChain(offset int) []Span {
	seg, _ := m.segmentAt(offset)
	if seg == nil {
		return nil
	}

	var chain []Span
	push := func(sp Span) {
		if len(chain) == 0 || chain[len(chain)-1] != sp {
			chain = append(chain, sp)
		}
	}

	if offset >= seg.Span.Start+3 && len(seg.Fields) > 0 {
		fieldIdx := childAt(offset, len(seg.Fields), func(i int) Span { return seg.Fields[i].Span })
		field := &seg.Fields[fieldIdx]
		repIdx := childAt(offset, len(field.Repetitions), func(i int) Span { return field.Repetitions[i].Span })
		rep := &field.Repetitions[repIdx]
		compIdx := childAt(offset, len(rep.Components), func(i int) Span { return rep.Components[i].Span })
		comp := &rep.Components[compIdx]
		subIdx := childAt(offset, len(comp.Subcomponents), func(i int) Span { return comp.Subcomponents[i].Span })

		push(comp.Subcomponents[subIdx].Span)
		push(comp.Span)
		push(rep.Span)
		push(field.Span)
	}
	push(seg.Span)
	return chain
}

// segmentAt finds the segment containing the offset. Offsets on a line
// terminator belong to the preceding segment.
func (m *Message) segmentAt(offset int) (*Segment, int) {
	n := len(m.Segments)
	if n == 0 || offset < 0 {
		return nil, -1
	}
	i := sort.Search(n, func(i int) bool { return m.Segments[i].Span.End >= offset })
	if i == n {
		i = n - 1
	}
	return &m.Segments[i], i
}

// childAt returns the index of the child whose span contains the offset,
// following the delimiter policy: the first child whose span ends after
// the offset, clamped to the last child.
func childAt(offset, n int, span func(int) Span) int {
	for i := 0; i < n; i++ {
		if span(i).End > offset || span(i).Contains(offset) {
			return i
		}
	}
	return n - 1
}
