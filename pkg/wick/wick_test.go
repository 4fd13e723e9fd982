package wick

import (
	"testing"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/tensor"
)

// TestContractSingleMatch checks the simplest nontrivial case: two tensors
// each carrying one creation and one annihilation slot over the closed
// space produce exactly the contractions that pair creation with
// annihilation across the two tensors.
func TestContractSingleMatch(t *testing.T) {
	c0 := idx.New(0, idx.SpaceClosed, true)
	c1 := idx.New(1, idx.SpaceClosed, false)
	c2 := idx.New(2, idx.SpaceClosed, true)
	c3 := idx.New(3, idx.SpaceClosed, false)

	ta := tensor.New("f1", c0, c1)
	tb := tensor.New("f1", c2, c3)
	d := diagram.New("eq", ta, tb)

	out := Contract(d)
	if len(out) == 0 {
		t.Fatalf("expected at least one contraction")
	}
	for _, od := range out {
		if err := od.Validate(); err != nil {
			t.Fatalf("contracted diagram invalid: %v", err)
		}
		if len(od.Deltas) != 2 {
			t.Fatalf("expected 2 deltas, got %d", len(od.Deltas))
		}
	}
}

// TestContractSkipsActivePairs ensures active-space operators are left
// uncontracted by the Wick engine (deferred to the RDM resolver).
func TestContractSkipsActivePairs(t *testing.T) {
	x0 := idx.New(0, idx.SpaceActive, true)
	x1 := idx.New(1, idx.SpaceActive, false)
	ta := tensor.New("v2", x0, x1)
	d := diagram.New("eq", ta)

	out := Contract(d)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 (empty) matching for all-active operators, got %d", len(out))
	}
	if len(out[0].Deltas) != 0 {
		t.Fatalf("active slots must not be contracted by Wick, got %d deltas", len(out[0].Deltas))
	}
}

// TestContractRejectsIncompatibleSpaces verifies that closed and virtual
// operators of opposite dagger kind are never paired (space tags must
// match, general permissive aside): with no valid pairing there is no full
// contraction, so no diagram is produced.
func TestContractRejectsIncompatibleSpaces(t *testing.T) {
	c0 := idx.New(0, idx.SpaceClosed, true)
	a0 := idx.New(1, idx.SpaceVirtual, false)
	ta := tensor.New("f1", c0)
	tb := tensor.New("f1", a0)
	d := diagram.New("eq", ta, tb)

	out := Contract(d)
	if len(out) != 0 {
		t.Fatalf("expected no matchings (no valid contraction), got %d matchings", len(out))
	}
}
