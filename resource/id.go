package resource

import (
	"cmp"
	"path/filepath"
	"strings"
)

// ID identifies a game resource by name and type extension.
//
// Both parts are lower-cased on construction, so IDs compare
// case-insensitively with ==.
type ID struct {
	name string
	typ  string
}

// NewID returns the ID for name and type extension (without the dot).
func NewID(name, typ string) ID {
	return ID{
		name: strings.ToLower(name),
		typ:  strings.ToLower(strings.TrimPrefix(typ, ".")),
	}
}

// ParseFileName converts a filename like "Classes.2DA" into an ID.
// Directory components are ignored. A name without an extension yields
// an empty type.
func ParseFileName(fileName string) ID {
	base := filepath.Base(fileName)
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		return NewID(base, "")
	}
	return NewID(base[:dot], base[dot+1:])
}

// Name returns the lower-cased resource name.
func (id ID) Name() string { return id.name }

// Type returns the lower-cased type extension.
func (id ID) Type() string { return id.typ }

// FileName returns the canonical filename, "name.type".
func (id ID) FileName() string {
	if id.typ == "" {
		return id.name
	}
	return id.name + "." + id.typ
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return id.FileName()
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool {
	return id.name == "" && id.typ == ""
}

// Compare orders IDs by name, then type.
func Compare(a, b ID) int {
	if c := cmp.Compare(a.name, b.name); c != 0 {
		return c
	}
	return cmp.Compare(a.typ, b.typ)
}
