// Package jsonvalue implements the path and value primitives shared by the
// query plan executor: an ordered path of segments over a JSON-shaped value
// tree, and the deep-merge operation used to stitch subgraph responses
// together.
package jsonvalue

import (
	"fmt"
	"strconv"
	"strings"
)

// SegmentKind discriminates the variant carried by a Segment.
type SegmentKind int

const (
	// Key selects a field of an object.
	Key SegmentKind = iota
	// Index selects an element of an array.
	Index
	// TypeCondition narrows execution to values of a given __typename.
	TypeCondition
	// Flatten fans a path out over every element of an array.
	Flatten
)

// Segment is one step of a Path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// KeySegment builds a field-name segment.
func KeySegment(key string) Segment { return Segment{Kind: Key, Key: key} }

// IndexSegment builds an array-index segment.
func IndexSegment(i int) Segment { return Segment{Kind: Index, Index: i} }

// TypeConditionSegment builds a type-condition segment.
func TypeConditionSegment(typeName string) Segment {
	return Segment{Kind: TypeCondition, Key: typeName}
}

// FlattenSegment builds a flatten segment.
func FlattenSegment() Segment { return Segment{Kind: Flatten} }

func (s Segment) String() string {
	switch s.Kind {
	case Key:
		return s.Key
	case Index:
		return strconv.Itoa(s.Index)
	case TypeCondition:
		return "... on " + s.Key
	case Flatten:
		return "@"
	default:
		return "?"
	}
}

// Path is an ordered sequence of path segments identifying a location (or,
// after Flatten segments, a set of locations) in a Value tree.
type Path struct {
	segments []Segment
}

// Empty returns the root path.
func Empty() Path { return Path{} }

// NewPath builds a Path from segments.
func NewPath(segments ...Segment) Path {
	return Path{segments: append([]Segment(nil), segments...)}
}

// Segments returns the path's segments. The returned slice must not be mutated.
func (p Path) Segments() []Segment { return p.segments }

// Len reports the number of segments.
func (p Path) Len() int { return len(p.segments) }

// Join appends other's segments after p's and returns the new Path. Neither
// receiver is mutated.
func (p Path) Join(other Path) Path {
	out := make([]Segment, 0, len(p.segments)+len(other.segments))
	out = append(out, p.segments...)
	out = append(out, other.segments...)
	return Path{segments: out}
}

// WithSegment appends a single segment.
func (p Path) WithSegment(s Segment) Path {
	out := make([]Segment, 0, len(p.segments)+1)
	out = append(out, p.segments...)
	out = append(out, s)
	return Path{segments: out}
}

// String renders the path in GraphQL error-path style, e.g. "me/reviews/0/body".
func (p Path) String() string {
	parts := make([]string, 0, len(p.segments))
	for _, s := range p.segments {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "/")
}

// GraphQLPath converts the path into the []interface{} shape used by the
// GraphQL error "path" field (string or int entries; TypeCondition and
// Flatten segments are not addressable and are skipped).
func (p Path) GraphQLPath() []interface{} {
	out := make([]interface{}, 0, len(p.segments))
	for _, s := range p.segments {
		switch s.Kind {
		case Key:
			out = append(out, s.Key)
		case Index:
			out = append(out, s.Index)
		}
	}
	return out
}

// Location is a resolved location in a Value tree produced by Resolve. Get
// reads the current value there; Set writes through to the real
// container (the enclosing *Object or []interface{} slot) the location
// was found in, not a detached copy — so a write performed after Resolve
// has already returned is still observed by the tree Resolve was called
// on.
type Location struct {
	Path Path
	Get  func() interface{}
	Set  func(interface{})
}

// Resolve walks root following p's segments and returns every location the
// path identifies. Flatten segments fan out over arrays: resolving a
// Flatten segment against an array yields one location per element;
// resolving it against null yields no locations (null is a terminal
// no-write location, never created). Resolving a Key segment against null
// replaces the null with a new empty object; resolving it against an
// object that does not yet contain that key yields a location that reads
// as nil and inserts the key only when Set is called. Index segments
// never grow arrays.
func Resolve(root *interface{}, p Path) []Location {
	get := func() interface{} { return *root }
	set := func(v interface{}) { *root = v }
	return resolveFrom(get, set, Empty(), p.segments)
}

// ResolveFrom walks p starting from an already-resolved location's
// get/set accessors, rather than from a fresh *interface{} root. Used to
// apply a Rewrite's From/To paths relative to a fetch's own result instead
// of the whole document.
func ResolveFrom(get func() interface{}, set func(interface{}), p Path) []Location {
	return resolveFrom(get, set, Empty(), p.segments)
}

func resolveFrom(get func() interface{}, set func(interface{}), prefix Path, remaining []Segment) []Location {
	if len(remaining) == 0 {
		return []Location{{Path: prefix, Get: get, Set: set}}
	}

	seg := remaining[0]
	rest := remaining[1:]

	switch seg.Kind {
	case Key:
		obj, ok := get().(*Object)
		if !ok {
			if get() == nil {
				obj = NewObject()
				set(obj)
			} else {
				return nil
			}
		}
		childGet := func() interface{} {
			v, _ := obj.Get(seg.Key)
			return v
		}
		childSet := func(v interface{}) { obj.Set(seg.Key, v) }
		return resolveFrom(childGet, childSet, prefix.WithSegment(seg), rest)

	case Index:
		arr, ok := get().([]interface{})
		if !ok || seg.Index < 0 || seg.Index >= len(arr) {
			return nil
		}
		idx := seg.Index
		childGet := func() interface{} { return arr[idx] }
		childSet := func(v interface{}) { arr[idx] = v }
		return resolveFrom(childGet, childSet, prefix.WithSegment(seg), rest)

	case TypeCondition:
		// A type condition narrows but does not change location; callers that
		// need typename filtering inspect "__typename" on the resolved value.
		return resolveFrom(get, set, prefix, rest)

	case Flatten:
		if get() == nil {
			return nil
		}
		arr, ok := get().([]interface{})
		if !ok {
			// A lone non-array value under Flatten is treated as a 1-element
			// fan-out, matching the planner's guarantee that Flatten only
			// wraps list-typed fields; defensive fallback for scalars.
			return resolveFrom(get, set, prefix, rest)
		}
		locs := make([]Location, 0, len(arr))
		for i := range arr {
			idx := i
			childGet := func() interface{} { return arr[idx] }
			childSet := func(v interface{}) { arr[idx] = v }
			locs = append(locs, resolveFrom(childGet, childSet, prefix.WithSegment(IndexSegment(idx)), rest)...)
		}
		return locs

	default:
		panic(fmt.Sprintf("jsonvalue: unknown segment kind %d", seg.Kind))
	}
}
