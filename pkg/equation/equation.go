// Package equation implements Equation (spec §4.4): the Cartesian-product
// expansion of input tensor-vectors into a Diagram list, plus merge,
// ket-absorption, deduplication, and active-operator resolution.
package equation

import (
	"errors"
	"fmt"
	"math"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/rdm"
	"github.com/dshills/spingen/pkg/tensor"
)

// ErrUnknownTreeType is raised when an Equation's tree-type tag is not one
// of the seven allowed variants (spec §7).
var ErrUnknownTreeType = errors.New("equation: unknown tree type")

// duplicateThreshold is the coefficient-rounding tolerance used by
// Duplicates to drop a coalesced sum that rounds to zero (which diagrams
// coalesce is decided by their canonical Key). This threshold is load-bearing for diagram
// merging (spec §9) and must stay exact.
const duplicateThreshold = 1e-10

// TreeType tags which emitted wrapper class an Equation's Tree belongs to
// (spec §4.7, §9): a single sum type, not a class hierarchy.
type TreeType int

const (
	Residual TreeType = iota
	Energy
	Dedci
	Correction
	Density
	Density1
	Density2
)

// String names the TreeType the way it appears in emitted wrapper classes.
func (t TreeType) String() string {
	switch t {
	case Residual:
		return "Residual"
	case Energy:
		return "Energy"
	case Dedci:
		return "Dedci"
	case Correction:
		return "Correction"
	case Density:
		return "Density"
	case Density1:
		return "Density1"
	case Density2:
		return "Density2"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// HasCI reports whether this tree-type's IndexRange grows a fourth (ci_)
// field — true only for Dedci (spec §4.7, §8 scenario 6).
func (t TreeType) HasCI() bool { return t == Dedci }

// TargetLabel names the short output-tensor label the emitter gives this
// tree type's final target (spec §4.7, §9; see DESIGN.md for the mapping
// decision).
func (t TreeType) TargetLabel() string {
	switch t {
	case Residual:
		return "r"
	case Energy:
		return "e"
	case Dedci:
		return "deci"
	case Correction:
		return "s"
	case Density:
		return "den2"
	case Density1:
		return "den1"
	case Density2:
		return "Den1"
	default:
		return "out"
	}
}

// ParseTreeType maps a name to its TreeType, or ErrUnknownTreeType.
func ParseTreeType(name string) (TreeType, error) {
	for _, t := range []TreeType{Residual, Energy, Dedci, Correction, Density, Density1, Density2} {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTreeType, name)
}

// Equation owns a list of Diagrams that all contribute to the same target.
type Equation struct {
	Label    string
	Factor   float64
	Type     TreeType
	Bra, Ket bool
	Diagrams []diagram.Diagram
}

// New builds an Equation by forming the Cartesian product of the input
// tensor-vectors: one Diagram per combination, labelled "<label>_<n>".
// factor scales every produced diagram; scalar, if non-empty, is attached
// as a named scalar on each diagram's first tensor.
func New(label string, vecs [][]tensor.Tensor, factor float64, scalar string, typ TreeType, bra, ket bool) *Equation {
	eq := &Equation{Label: label, Factor: factor, Type: typ, Bra: bra, Ket: ket}

	combos := cartesianProduct(vecs)
	for n, combo := range combos {
		d := diagram.New(fmt.Sprintf("%s_%d", label, n), combo...)
		d.Bra, d.Ket = bra, ket
		if factor != 1.0 {
			d.Scale(factor)
		}
		if scalar != "" && len(d.Tensors) > 0 {
			d.Tensors[0] = d.Tensors[0].WithScalar(scalar)
		}
		eq.Diagrams = append(eq.Diagrams, d)
	}
	return eq
}

// cartesianProduct enumerates every combination choosing one tensor from
// each input vector, in vector order.
func cartesianProduct(vecs [][]tensor.Tensor) [][]tensor.Tensor {
	if len(vecs) == 0 {
		return nil
	}
	combos := [][]tensor.Tensor{{}}
	for _, vec := range vecs {
		var next [][]tensor.Tensor
		for _, c := range combos {
			for _, t := range vec {
				nc := append(append([]tensor.Tensor(nil), c...), t)
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

// Merge concatenates other's diagrams onto e's, preserving order (spec
// §4.4).
func (e *Equation) Merge(other *Equation) {
	e.Diagrams = append(e.Diagrams, other.Diagrams...)
}

// AbsorbKet rewrites every diagram's ket projection into a delta constraint
// on the given CI index, when e.Ket is set (spec §4.4).
func (e *Equation) AbsorbKet(ci idx.Index) {
	if !e.Ket {
		return
	}
	for i := range e.Diagrams {
		e.Diagrams[i].AbsorbKet(ci)
	}
}

// Duplicates canonicalizes each diagram (sorts tensors, renames dummy
// indices to minimal canonical form) and coalesces diagrams with identical
// canonical form by summing their scalar factors, dropping any whose summed
// factor rounds to zero within duplicateThreshold. Running Duplicates twice
// yields an equal diagram list (spec §8): the second pass's diagrams are
// already canonical and already distinct, so no further merges occur.
func (e *Equation) Duplicates() {
	order := make([]string, 0, len(e.Diagrams))
	byKey := make(map[string]diagram.Diagram)
	coeff := make(map[string]float64)

	for _, d := range e.Diagrams {
		c := d.Canonical()
		key := c.Key()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
			rep := c
			rep.Sign = 1
			if len(rep.Tensors) > 0 {
				rep.Tensors[0] = rep.Tensors[0].WithFactor(1.0)
			}
			byKey[key] = rep
		}
		coeff[key] += d.Canonical().Coefficient()
	}

	out := make([]diagram.Diagram, 0, len(order))
	for _, key := range order {
		f := coeff[key]
		if math.Abs(f) < duplicateThreshold {
			continue
		}
		d := byKey[key]
		d.Sign = 1
		if len(d.Tensors) > 0 {
			d.Tensors[0] = d.Tensors[0].WithFactor(f)
		}
		out = append(out, d)
	}
	e.Diagrams = out
}

// Active triggers RDM resolution (pkg/rdm) on every diagram, replacing each
// one with its resolved form. The first resolution failure aborts and is
// returned to the caller (spec §7: no partial output after an error).
func (e *Equation) Active() error {
	for i, d := range e.Diagrams {
		resolved, err := rdm.Resolve(d)
		if err != nil {
			return fmt.Errorf("equation %s: %w", e.Label, err)
		}
		e.Diagrams[i] = resolved
	}
	return nil
}
