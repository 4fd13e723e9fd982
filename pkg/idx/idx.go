// Package idx defines labelled index variables (Index) and the orbital-space
// taxonomy (Space) that drives contraction and canonicalization rules
// throughout the generator.
package idx

import "fmt"

// Space is an orbital subspace tag. Space-tag ordering drives which index in
// a delta-pair survives during canonicalization: the fixed priority
// closed < active < virtual, with general permissive of either side.
type Space int

const (
	SpaceClosed Space = iota
	SpaceActive
	SpaceVirtual
	SpaceGeneral
	SpaceCI
)

// String returns the conventional single-letter tag for a Space.
func (s Space) String() string {
	switch s {
	case SpaceClosed:
		return "c"
	case SpaceActive:
		return "x"
	case SpaceVirtual:
		return "a"
	case SpaceGeneral:
		return "g"
	case SpaceCI:
		return "i"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Priority returns this Space's position in the c < x < a survivor ordering.
// SpaceGeneral has no fixed priority: it is compatible with either side of a
// delta-pair, so callers must special-case it rather than compare priorities.
func (s Space) Priority() int {
	switch s {
	case SpaceClosed:
		return 0
	case SpaceActive:
		return 1
	case SpaceVirtual:
		return 2
	default:
		return -1
	}
}

// Compatible reports whether two spaces may be identified by a delta-pair:
// c with c, a with a, x with x, i with i, or either side being general.
func Compatible(a, b Space) bool {
	if a == SpaceGeneral || b == SpaceGeneral {
		return true
	}
	return a == b
}

// Index is a value-typed labelled index variable. Two indices are identical
// iff their ids match; mutating an existing Index is disallowed, so every
// field is unexported and set only at construction or through With*.
type Index struct {
	id     int
	space  Space
	dagger bool
}

// New constructs an Index with the given id, space, and dagger flag. Callers
// normally obtain ids from a pkg/genid.Counter shared across one generation
// run, but the id is caller-supplied so tests can construct fixed indices.
func New(id int, space Space, dagger bool) Index {
	return Index{id: id, space: space, dagger: dagger}
}

// ID returns the index's unique identifier.
func (i Index) ID() int { return i.id }

// Space returns the index's orbital subspace.
func (i Index) Space() Space { return i.space }

// Dagger reports whether this index slot is a creation (daggered) operator.
func (i Index) Dagger() bool { return i.dagger }

// Active reports whether the index lives in the active subspace.
func (i Index) Active() bool { return i.space == SpaceActive }

// Equal reports whether two indices are identical, i.e. share the same id.
func (i Index) Equal(other Index) bool { return i.id == other.id }

// WithDagger returns a copy of i with the dagger flag replaced. This does not
// mutate i: renumbering or re-flagging an index always produces a new value.
func (i Index) WithDagger(dagger bool) Index {
	return Index{id: i.id, space: i.space, dagger: dagger}
}

// Renumber returns a copy of i with a new id, used when canonicalizing dummy
// indices to their minimal numbering.
func (i Index) Renumber(id int) Index {
	return Index{id: id, space: i.space, dagger: i.dagger}
}

// String renders an Index as e.g. "x3" or "a5+" (the trailing '+' marks a
// daggered slot).
func (i Index) String() string {
	if i.dagger {
		return fmt.Sprintf("%s%d+", i.space, i.id)
	}
	return fmt.Sprintf("%s%d", i.space, i.id)
}

// Range is a bundle of indices grouped by space: closed, active, virtual,
// plus CI for indices in the CI space.
type Range struct {
	Closed  []Index
	Active  []Index
	Virtual []Index
	CI      []Index
}

// NewRange groups an arbitrary slice of indices into a Range by their space.
// CI-space indices are only populated into the CI field; callers that do not
// need dedci handling can ignore it.
func NewRange(indices []Index) Range {
	var r Range
	for _, i := range indices {
		switch i.space {
		case SpaceClosed:
			r.Closed = append(r.Closed, i)
		case SpaceActive:
			r.Active = append(r.Active, i)
		case SpaceVirtual, SpaceGeneral:
			r.Virtual = append(r.Virtual, i)
		case SpaceCI:
			r.CI = append(r.CI, i)
		}
	}
	return r
}
