// Package diagram implements the Diagram type: a signed product of Tensors
// together with a set of contraction delta-pairs, plus the canonicalization
// used to deduplicate diagrams that differ only by dummy-index naming.
package diagram

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/tensor"
)

// Error kinds raised by diagram construction and validation (spec §7). All
// are fatal to the current generation run.
var (
	ErrInvalidIndexSpace = errors.New("diagram: delta-pair couples incompatible index spaces")
	ErrMalformedDiagram  = errors.New("diagram: index count or delta-closure violated")
)

// DeltaPair is an unordered identification of two index ids, produced by a
// Wick contraction or an RDM absorption step.
type DeltaPair struct {
	A, B idx.Index
}

// Canonical returns the pair ordered so the lower-priority-surviving index
// (per the c < x < a ordering, general permissive) comes first, matching the
// convention used when rendering delta guards in emitted code.
func (d DeltaPair) Canonical() DeltaPair {
	pa, pb := d.A.Space().Priority(), d.B.Space().Priority()
	if pa == -1 {
		pa = pb
	}
	if pb == -1 {
		pb = pa
	}
	if pb < pa || (pb == pa && d.B.ID() < d.A.ID()) {
		return DeltaPair{A: d.B, B: d.A}
	}
	return d
}

// Diagram is a single symbolic summand: an ordered product of Tensors, an
// overall sign, a set of delta-pairs, and optional bra/ket flags marking CI
// derivative context.
type Diagram struct {
	Label   string
	Tensors []tensor.Tensor
	Sign    int
	Deltas  []DeltaPair
	Bra     bool
	Ket     bool
}

// New constructs a Diagram with sign +1 and no deltas.
func New(label string, tensors ...tensor.Tensor) Diagram {
	return Diagram{Label: label, Tensors: append([]tensor.Tensor(nil), tensors...), Sign: 1}
}

// AddDelta appends a delta-pair after checking the two indices' spaces are
// contraction-compatible (c-c, x-x, a-a, or either side general).
func (d *Diagram) AddDelta(a, b idx.Index) error {
	if !idx.Compatible(a.Space(), b.Space()) {
		return fmt.Errorf("%w: %s vs %s", ErrInvalidIndexSpace, a.Space(), b.Space())
	}
	d.Deltas = append(d.Deltas, DeltaPair{A: a, B: b})
	return nil
}

// Negate flips the diagram's sign in place.
func (d *Diagram) Negate() { d.Sign = -d.Sign }

// Scale multiplies the diagram's effective coefficient by factor, folding it
// into the first tensor's Factor rather than touching every tensor's own
// factor, matching how Equation construction distributes a top-level factor
// across a diagram's tensor product.
func (d *Diagram) Scale(factor float64) {
	if len(d.Tensors) == 0 || factor == 1.0 {
		return
	}
	d.Tensors[0] = d.Tensors[0].WithFactor(d.Tensors[0].Factor * factor)
}

// AbsorbKet rewrites the diagram's projection indices into delta constraints
// against the given CI index, as required when (bra,ket) = (?, true) (spec
// §4.3, §4.4): the ket projection no longer stands for a free external
// index, it is absorbed into the CI-derivative index.
func (d *Diagram) AbsorbKet(ci idx.Index) {
	if !d.Ket {
		return
	}
	for _, t := range d.Tensors {
		if !t.IsProjection() {
			continue
		}
		for _, ix := range t.Indices {
			d.Deltas = append(d.Deltas, DeltaPair{A: ix, B: ci})
		}
	}
}

// deltaSet returns the set of index ids that participate in some delta-pair.
func (d Diagram) deltaSet() map[int]bool {
	set := make(map[int]bool, len(d.Deltas)*2)
	for _, dp := range d.Deltas {
		set[dp.A.ID()] = true
		set[dp.B.ID()] = true
	}
	return set
}

// Validate checks the contraction-closure invariant: every non-delta index
// must appear in exactly two tensor slots, except indices fixed by an
// external projection tensor (label "proj"), which may appear once.
func (d Diagram) Validate() error {
	counts := make(map[int]int)
	projected := make(map[int]bool)
	for _, t := range d.Tensors {
		isProj := t.IsProjection()
		for _, ix := range t.Indices {
			counts[ix.ID()]++
			if isProj {
				projected[ix.ID()] = true
			}
		}
	}
	deltas := d.deltaSet()
	for id, n := range counts {
		if deltas[id] {
			continue
		}
		if projected[id] && n == 1 {
			continue
		}
		if n != 2 {
			return fmt.Errorf("%w: index id %d appears %d times", ErrMalformedDiagram, id, n)
		}
	}
	return nil
}

// Canonical returns a copy of the diagram with tensors sorted into a fixed
// order (by label+index-signature) and dummy indices renamed to their
// minimal canonical numbering, as required by Equation.Duplicates to
// recognize diagrams that differ only by dummy-index choice.
func (d Diagram) Canonical() Diagram {
	out := Diagram{Label: d.Label, Sign: d.Sign, Bra: d.Bra, Ket: d.Ket}
	out.Tensors = append([]tensor.Tensor(nil), d.Tensors...)

	sort.SliceStable(out.Tensors, func(i, j int) bool {
		return out.Tensors[i].Signature() < out.Tensors[j].Signature()
	})

	renumber := make(map[int]int)
	next := 0
	assign := func(i idx.Index) idx.Index {
		n, ok := renumber[i.ID()]
		if !ok {
			n = next
			renumber[i.ID()] = n
			next++
		}
		return i.Renumber(n)
	}

	for ti, t := range out.Tensors {
		newIndices := make([]idx.Index, len(t.Indices))
		for ii, ix := range t.Indices {
			newIndices[ii] = assign(ix)
		}
		t.Indices = newIndices
		out.Tensors[ti] = t
	}
	for _, dp := range d.Deltas {
		out.Deltas = append(out.Deltas, DeltaPair{A: assign(dp.A), B: assign(dp.B)})
	}
	sort.Slice(out.Deltas, func(i, j int) bool {
		ci, cj := out.Deltas[i].Canonical(), out.Deltas[j].Canonical()
		if ci.A.ID() != cj.A.ID() {
			return ci.A.ID() < cj.A.ID()
		}
		return ci.B.ID() < cj.B.ID()
	})
	return out
}

// Key returns a string uniquely identifying the diagram's canonical shape
// (tensors + deltas + bra/ket), ignoring sign and factor — used to coalesce
// diagrams that are identical up to dummy relabeling.
func (d Diagram) Key() string {
	c := d.Canonical()
	s := fmt.Sprintf("bra=%v ket=%v |", c.Bra, c.Ket)
	for _, t := range c.Tensors {
		s += t.Signature() + ";"
	}
	for _, dp := range c.Deltas {
		s += fmt.Sprintf("d(%d,%d);", dp.A.ID(), dp.B.ID())
	}
	return s
}

// Coefficient returns the diagram's net scalar factor: its sign times the
// product of every tensor's Factor field.
func (d Diagram) Coefficient() float64 {
	f := float64(d.Sign)
	for _, t := range d.Tensors {
		f *= t.Factor
	}
	return f
}
