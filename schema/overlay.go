package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileExtension is the suffix that marks a workspace schema file.
const FileExtension = ".hl7v.toml"

// File is the parsed form of a workspace schema file.
type File struct {
	Name     string        `toml:"name"`
	Segments []FileSegment `toml:"segments"`
}

// FileSegment is one [[segments]] entry. Pointer attributes distinguish
// "not set" from an explicit zero value so overlays can override
// individual attributes without clobbering the rest.
type FileSegment struct {
	Name        string               `toml:"name"`
	Description *string              `toml:"description"`
	Fields      map[string]FileField `toml:"fields"`
}

// FileField is one [segments.fields.<N>] subtable.
type FileField struct {
	Description   *string    `toml:"description"`
	Required      *bool      `toml:"required"`
	Datatype      *string    `toml:"datatype"`
	AllowedValues [][]string `toml:"allowed_values"`
}

// DecodeFile parses schema-file content. It returns the parsed file and
// the list of unknown keys, which callers log and otherwise ignore.
func DecodeFile(data []byte) (*File, []string, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: decode overlay: %w", err)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	sort.Strings(unknown)

	for _, seg := range f.Segments {
		if seg.Name == "" {
			return nil, unknown, fmt.Errorf("schema: overlay segment without a name")
		}
		for num, fld := range seg.Fields {
			if _, err := strconv.Atoi(num); err != nil {
				return nil, unknown, fmt.Errorf("schema: segment %s: field key %q is not a number", seg.Name, num)
			}
			for _, pair := range fld.AllowedValues {
				if len(pair) != 2 {
					return nil, unknown, fmt.Errorf("schema: segment %s field %s: allowed_values entries must be [code, description] pairs", seg.Name, num)
				}
			}
		}
	}

	return &f, unknown, nil
}

// SegmentNames returns the names of the segments the file touches, upper-
// cased, in sorted order.
func (f *File) SegmentNames() []string {
	names := make([]string, 0, len(f.Segments))
	for _, s := range f.Segments {
		names = append(names, strings.ToUpper(s.Name))
	}
	sort.Strings(names)
	return names
}
