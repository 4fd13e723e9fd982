package main

import (
	"testing"

	"github.com/dshills/spingen/pkg/genid"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/method"
	"github.com/dshills/spingen/pkg/wick"
)

func TestCASPT2FilterYieldsCanonicalPatternCount(t *testing.T) {
	patterns := caspt2ResidualPatterns()
	if len(patterns) != 15 {
		t.Fatalf("expected 15 canonical patterns out of 81, got %d: %v", len(patterns), patterns)
	}
	seen := make(map[[4]idx.Space]bool)
	for _, p := range patterns {
		if seen[p] {
			t.Fatalf("duplicate pattern %v", p)
		}
		seen[p] = true
		if !passesCASPT2Filter(p) {
			t.Fatalf("pattern %v in the enumerated set fails its own filter", p)
		}
	}
}

func TestCASPT2FilterRejectsAllActive(t *testing.T) {
	p := [4]idx.Space{idx.SpaceActive, idx.SpaceActive, idx.SpaceActive, idx.SpaceActive}
	if passesCASPT2Filter(p) {
		t.Fatalf("all-active pattern should be rejected")
	}
}

func TestCASPT2FilterRejectsVirtualInLeftmostSlots(t *testing.T) {
	p := [4]idx.Space{idx.SpaceVirtual, idx.SpaceClosed, idx.SpaceActive, idx.SpaceActive}
	if passesCASPT2Filter(p) {
		t.Fatalf("virtual in leftmost slot should be rejected")
	}
}

func TestCASPT2FilterRejectsClosedInRightmostSlots(t *testing.T) {
	p := [4]idx.Space{idx.SpaceClosed, idx.SpaceClosed, idx.SpaceActive, idx.SpaceClosed}
	if passesCASPT2Filter(p) {
		t.Fatalf("closed in rightmost slot should be rejected")
	}
}

func TestCASPT2FilterAcceptsKnownCanonicalPattern(t *testing.T) {
	p := [4]idx.Space{idx.SpaceClosed, idx.SpaceClosed, idx.SpaceActive, idx.SpaceActive}
	if !passesCASPT2Filter(p) {
		t.Fatalf("pattern %v should pass the canonical CASPT2 filter", p)
	}
}

func TestBuildEquationsProducesOneDiagramPerPattern(t *testing.T) {
	cfg := &method.Config{Method: method.CASPT2}
	eqs := buildEquations(cfg)
	if len(eqs) != 1 {
		t.Fatalf("expected one equation, got %d", len(eqs))
	}
	eq := eqs[0]
	if len(eq.Diagrams) != len(caspt2ResidualPatterns()) {
		t.Fatalf("expected %d diagrams, got %d", len(caspt2ResidualPatterns()), len(eq.Diagrams))
	}
	for _, d := range eq.Diagrams {
		contractions := wick.Contract(d)
		if len(contractions) == 0 {
			t.Fatalf("diagram %s: expected at least one Wick contraction pairing t2's internal index with f1", d.Label)
		}
		for _, c := range contractions {
			if err := c.Validate(); err != nil {
				t.Fatalf("diagram %s contraction failed closure validation: %v", d.Label, err)
			}
		}
	}
}

func TestBuildResidualDiagramSharesProjIndicesWithT2(t *testing.T) {
	ids := genid.NewCounter()
	pattern := [4]idx.Space{idx.SpaceClosed, idx.SpaceClosed, idx.SpaceActive, idx.SpaceActive}
	proj, f1, t2 := buildResidualDiagram(pattern, ids)

	for i := 0; i < 3; i++ {
		if proj.Indices[i].ID() != t2.Indices[i].ID() {
			t.Fatalf("t2 index %d (id %d) should share proj's id %d", i, t2.Indices[i].ID(), proj.Indices[i].ID())
		}
	}
	if f1.Indices[1].ID() != proj.Indices[3].ID() {
		t.Fatalf("f1's second index should share proj's fourth index")
	}
	if t2.Indices[3].ID() == f1.Indices[0].ID() {
		t.Fatalf("t2's internal index and f1's matching index must be distinct ids for Wick contraction to discover the pairing")
	}
}
