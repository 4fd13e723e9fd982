package equation

import (
	"errors"
	"testing"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/tensor"
	"pgregory.net/rapid"
)

func newDiagramWithFactor(t0 tensor.Tensor, factor float64) diagram.Diagram {
	d := diagram.New("eq", t0.WithFactor(factor))
	return d
}

// TestNewCartesianProduct covers spec §8 scenario 3: two input vectors of
// sizes 2 and 3 produce 6 diagrams, each a distinct combination.
func TestNewCartesianProduct(t *testing.T) {
	f1a := tensor.New("f1", idx.New(0, idx.SpaceClosed, true))
	f1b := tensor.New("f1", idx.New(1, idx.SpaceClosed, true))
	t2a := tensor.New("t2", idx.New(2, idx.SpaceVirtual, true))
	t2b := tensor.New("t2", idx.New(3, idx.SpaceVirtual, true))
	t2c := tensor.New("t2", idx.New(4, idx.SpaceVirtual, true))

	vecs := [][]tensor.Tensor{{f1a, f1b}, {t2a, t2b, t2c}}
	eq := New("eq", vecs, 1.0, "", Residual, false, false)

	if len(eq.Diagrams) != 6 {
		t.Fatalf("expected 6 diagrams, got %d", len(eq.Diagrams))
	}
	for _, d := range eq.Diagrams {
		if len(d.Tensors) != 2 {
			t.Fatalf("expected 2 tensors per diagram, got %d", len(d.Tensors))
		}
	}
}

func TestNewAppliesFactorAndScalar(t *testing.T) {
	v2 := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true))
	eq := New("eq", [][]tensor.Tensor{{v2}}, 0.5, "fac2", Energy, true, false)
	if len(eq.Diagrams) != 1 {
		t.Fatalf("expected 1 diagram, got %d", len(eq.Diagrams))
	}
	d := eq.Diagrams[0]
	if d.Tensors[0].Factor != 0.5 {
		t.Fatalf("expected factor 0.5, got %v", d.Tensors[0].Factor)
	}
	if d.Tensors[0].Scalar != "fac2" {
		t.Fatalf("expected scalar fac2, got %q", d.Tensors[0].Scalar)
	}
}

func TestMergeConcatenatesDiagrams(t *testing.T) {
	v2 := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true))
	t2 := tensor.New("t2", idx.New(1, idx.SpaceVirtual, true))
	a := New("a", [][]tensor.Tensor{{v2}}, 1.0, "", Residual, false, false)
	b := New("b", [][]tensor.Tensor{{t2}}, 1.0, "", Residual, false, false)

	a.Merge(b)
	if len(a.Diagrams) != 2 {
		t.Fatalf("expected 2 diagrams after merge, got %d", len(a.Diagrams))
	}
}

// TestDuplicatesCoalescesAndSums checks that two structurally identical
// diagrams (same tensor shapes, different dummy-index numbering) coalesce
// with summed coefficients: here +1 and -1 sum to zero, so none remains.
func TestDuplicatesCoalescesAndSums(t *testing.T) {
	v2a := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true), idx.New(1, idx.SpaceVirtual, false))
	v2b := tensor.New("v2", idx.New(2, idx.SpaceVirtual, true), idx.New(3, idx.SpaceVirtual, false))

	eq := &Equation{Label: "eq"}
	eq.Diagrams = append(eq.Diagrams, newDiagramWithFactor(v2a, 1.0))
	eq.Diagrams = append(eq.Diagrams, newDiagramWithFactor(v2b, -1.0))

	eq.Duplicates()
	if len(eq.Diagrams) != 0 {
		t.Fatalf("expected cancelling diagrams to vanish, got %d", len(eq.Diagrams))
	}
}

// TestDuplicatesIdempotent checks that running Duplicates twice leaves the
// diagram list unchanged.
func TestDuplicatesIdempotent(t *testing.T) {
	v2a := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true), idx.New(1, idx.SpaceVirtual, false))
	v2b := tensor.New("v2", idx.New(2, idx.SpaceVirtual, true), idx.New(3, idx.SpaceVirtual, false))

	eq := &Equation{Label: "eq"}
	eq.Diagrams = append(eq.Diagrams, newDiagramWithFactor(v2a, 1.0))
	eq.Diagrams = append(eq.Diagrams, newDiagramWithFactor(v2b, 2.0))

	eq.Duplicates()
	first := len(eq.Diagrams)
	firstCoeff := eq.Diagrams[0].Coefficient()

	eq.Duplicates()
	if len(eq.Diagrams) != first || eq.Diagrams[0].Coefficient() != firstCoeff {
		t.Fatalf("duplicates is not idempotent: (%d,%v) -> (%d,%v)",
			first, firstCoeff, len(eq.Diagrams), eq.Diagrams[0].Coefficient())
	}
}

// TestDuplicatesIdempotentProperty is a property test (spec §8): for any
// number of structurally identical copies of the same shape (each with an
// arbitrary nonzero factor), running Duplicates a second time never changes
// the diagram count or any surviving diagram's coefficient.
func TestDuplicatesIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		eq := &Equation{Label: "eq"}
		for i := 0; i < n; i++ {
			factor := rapid.Float64Range(-10, 10).Draw(rt, "factor")
			if factor > -0.01 && factor < 0.01 {
				factor = 1.0
			}
			id0 := 2 * i
			t0 := tensor.New("v2", idx.New(id0, idx.SpaceVirtual, true), idx.New(id0+1, idx.SpaceVirtual, false))
			eq.Diagrams = append(eq.Diagrams, newDiagramWithFactor(t0, factor))
		}

		eq.Duplicates()
		first := len(eq.Diagrams)
		firstKeys := make([]string, first)
		firstCoeffs := make([]float64, first)
		for i, d := range eq.Diagrams {
			firstKeys[i] = d.Key()
			firstCoeffs[i] = d.Coefficient()
		}

		eq.Duplicates()
		if len(eq.Diagrams) != first {
			rt.Fatalf("diagram count changed on second pass: %d -> %d", first, len(eq.Diagrams))
		}
		for i, d := range eq.Diagrams {
			if d.Key() != firstKeys[i] || d.Coefficient() != firstCoeffs[i] {
				rt.Fatalf("diagram %d changed on second pass", i)
			}
		}
	})
}

func TestParseTreeTypeUnknown(t *testing.T) {
	_, err := ParseTreeType("Bogus")
	if !errors.Is(err, ErrUnknownTreeType) {
		t.Fatalf("expected ErrUnknownTreeType, got %v", err)
	}
}

func TestParseTreeTypeRoundTrip(t *testing.T) {
	for _, tt := range []TreeType{Residual, Energy, Dedci, Correction, Density, Density1, Density2} {
		got, err := ParseTreeType(tt.String())
		if err != nil {
			t.Fatalf("ParseTreeType(%s): %v", tt.String(), err)
		}
		if got != tt {
			t.Fatalf("round trip mismatch: %v -> %q -> %v", tt, tt.String(), got)
		}
	}
}
