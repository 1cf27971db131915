package schema

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry layers workspace overlays over the standard catalogue.
// Mutations are serialised and publish a fresh immutable View; readers
// capture the View once per analysis and never observe a partial merge.
type Registry struct {
	mu       sync.Mutex
	overlays map[string]*File // keyed by absolute schema-file path
	view     atomic.Pointer[View]
	gen      atomic.Uint64
}

// View is an immutable merged catalogue. It must not be mutated after
// publication.
type View struct {
	Generation uint64
	segments   map[string]Segment
}

// NewRegistry returns a registry holding only the standard catalogue.
func NewRegistry() *Registry {
	r := &Registry{overlays: make(map[string]*File)}
	r.view.Store(&View{Generation: 0, segments: standardSegments()})
	return r
}

// Snapshot returns the current merged view.
func (r *Registry) Snapshot() *View {
	return r.view.Load()
}

// Apply installs or replaces the overlay loaded from path and publishes a
// new view. It returns the affected segment names, or ["*"] when neither
// the previous nor the new version of the file declares segments.
func (r *Registry) Apply(path string, f *File) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := affectedNames(r.overlays[path], f)
	r.overlays[path] = f
	r.rebuild()
	return affected
}

// Remove drops the overlay previously loaded from path. Removing an
// unknown path is a no-op and returns nil.
func (r *Registry) Remove(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.overlays[path]
	if !ok {
		return nil
	}
	delete(r.overlays, path)
	r.rebuild()
	return affectedNames(old, nil)
}

// OverlayCount returns the number of loaded overlay files.
func (r *Registry) OverlayCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.overlays)
}

// affectedNames is the union of segment names touched by the old and new
// versions of an overlay file, or ["*"] when neither declares segments.
func affectedNames(old, updated *File) []string {
	set := make(map[string]struct{})
	for _, f := range []*File{old, updated} {
		if f == nil {
			continue
		}
		for _, name := range f.SegmentNames() {
			set[name] = struct{}{}
		}
	}
	if len(set) == 0 {
		return []string{"*"}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// rebuild merges the standard catalogue with all overlays, in sorted path
// order for determinism, and publishes the result. Must be called with
// r.mu held.
func (r *Registry) rebuild() {
	merged := standardSegments()

	paths := make([]string, 0, len(r.overlays))
	for p := range r.overlays {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		for _, fs := range r.overlays[p].Segments {
			mergeSegment(merged, fs)
		}
	}

	r.view.Store(&View{Generation: r.gen.Add(1), segments: merged})
}

// mergeSegment applies one overlay segment entry. Overlay attributes win
// per attribute; allowed_values replaces the standard table wholesale,
// and an explicitly empty list disables it. Overlays never delete
// standard entries.
func mergeSegment(merged map[string]Segment, fs FileSegment) {
	name := strings.ToUpper(fs.Name)
	seg, ok := merged[name]
	if !ok {
		seg = Segment{Name: name, Workspace: true, Fields: make(map[int]Field)}
	} else {
		// Copy the field map so the standard template stays untouched.
		fields := make(map[int]Field, len(seg.Fields))
		for k, v := range seg.Fields {
			fields[k] = v
		}
		seg.Fields = fields
	}

	if fs.Description != nil {
		seg.Description = *fs.Description
	}

	for num, ff := range fs.Fields {
		n, err := strconv.Atoi(num)
		if err != nil || n < 1 {
			continue // rejected at decode time; belt and braces
		}
		fld := seg.Fields[n]
		if ff.Description != nil {
			fld.Description = *ff.Description
		}
		if ff.Datatype != nil {
			fld.Datatype = *ff.Datatype
		}
		if ff.Required != nil {
			fld.Required = *ff.Required
		}
		if ff.AllowedValues != nil {
			if len(ff.AllowedValues) == 0 {
				fld.Table = nil
			} else {
				t := &Table{Workspace: true}
				for _, pair := range ff.AllowedValues {
					t.Entries = append(t.Entries, TableEntry{Code: pair[0], Description: pair[1]})
				}
				fld.Table = t
			}
		}
		seg.Fields[n] = fld
	}

	merged[name] = seg
}

// LookupSegment returns the merged info for a segment name.
func (v *View) LookupSegment(name string) (Segment, bool) {
	seg, ok := v.segments[strings.ToUpper(name)]
	return seg, ok
}

// LookupField returns the merged info for a 1-based field number.
func (v *View) LookupField(segment string, n int) (Field, bool) {
	seg, ok := v.LookupSegment(segment)
	if !ok {
		return Field{}, false
	}
	f, ok := seg.Fields[n]
	return f, ok
}

// AllowedValues returns the effective table for a field, or nil when the
// field has none (including when an overlay disabled it).
func (v *View) AllowedValues(segment string, n int) *Table {
	f, ok := v.LookupField(segment, n)
	if !ok {
		return nil
	}
	return f.Table
}

// SegmentNames returns all known segment names: standard segments first,
// then workspace-defined ones, each group alphabetical. This is the
// completion ranking order.
func (v *View) SegmentNames() []string {
	var std, ws []string
	for name, seg := range v.segments {
		if seg.Workspace {
			ws = append(ws, name)
		} else {
			std = append(std, name)
		}
	}
	sort.Strings(std)
	sort.Strings(ws)
	return append(std, ws...)
}
