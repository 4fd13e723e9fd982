// Package listtensor implements ListTensor (spec §4.5): a single diagram
// flattened, after active resolution, into (target, sign, ordered tensor
// product) — the direct input to factorization.
package listtensor

import (
	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/tensor"
)

// ListTensor is one diagram's tensor product projected to a flat, ordered
// list, ready for binary-contraction factorization.
type ListTensor struct {
	Target  tensor.Tensor
	Sign    int
	Tensors []tensor.Tensor
}

// FromDiagram flattens a (Wick-contracted, RDM-resolved) Diagram into a
// ListTensor against the given output target tensor. The diagram's δ-pairs
// (produced by Wick contraction: two distinct index ids identified as the
// same contracted leg) are collapsed onto a single shared id across the
// tensors they couple, since factorization and intermediate-target
// synthesis downstream identify a contracted leg by matching index id
// rather than by consulting Deltas directly.
func FromDiagram(d diagram.Diagram, target tensor.Tensor) ListTensor {
	canon := canonicalIDs(d.Deltas)
	tensors := make([]tensor.Tensor, len(d.Tensors))
	for i, t := range d.Tensors {
		newIndices := make([]idx.Index, len(t.Indices))
		for j, ix := range t.Indices {
			if c, ok := canon[ix.ID()]; ok {
				newIndices[j] = ix.Renumber(c)
			} else {
				newIndices[j] = ix
			}
		}
		t.Indices = newIndices
		tensors[i] = t
	}
	return ListTensor{
		Target:  target,
		Sign:    d.Sign,
		Tensors: tensors,
	}
}

// canonicalIDs maps every index id touched by a δ-pair to one representative
// id per connected group, via union-find over the pair list.
func canonicalIDs(deltas []diagram.DeltaPair) map[int]int {
	parent := make(map[int]int)
	var find func(x int) int
	find = func(x int) int {
		p, ok := parent[x]
		if !ok {
			parent[x] = x
			return x
		}
		if p != x {
			parent[x] = find(p)
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}
	for _, dp := range deltas {
		union(dp.A.ID(), dp.B.ID())
	}
	out := make(map[int]int, len(parent))
	for k := range parent {
		out[k] = find(k)
	}
	return out
}

// Front returns the head tensor of the product.
func (l ListTensor) Front() tensor.Tensor { return l.Tensors[0] }

// Rest returns the tail of the product, with the same target and sign.
func (l ListTensor) Rest() ListTensor {
	return ListTensor{Target: l.Target, Sign: l.Sign, Tensors: l.Tensors[1:]}
}

// Empty reports whether no tensors remain in the product.
func (l ListTensor) Empty() bool { return len(l.Tensors) == 0 }

// AbsorbAllInternal moves every internal (Gamma-labelled, i.e.
// already-resolved RDM) tensor to the tail of the product, leaving the
// externally-visible tensors (f1/h1/v2/t2/r/proj) at the head where
// factorization chooses its binary contractions (spec §4.5). Gamma tensors
// are evaluated last in the emitted queue (spec §4.7) precisely because
// they are folded here rather than treated as ordinary contraction targets.
func (l ListTensor) AbsorbAllInternal() ListTensor {
	external := make([]tensor.Tensor, 0, len(l.Tensors))
	internal := make([]tensor.Tensor, 0, len(l.Tensors))
	for _, t := range l.Tensors {
		if t.IsGamma() {
			internal = append(internal, t)
		} else {
			external = append(external, t)
		}
	}
	out := make([]tensor.Tensor, 0, len(l.Tensors))
	out = append(out, external...)
	out = append(out, internal...)
	return ListTensor{Target: l.Target, Sign: l.Sign, Tensors: out}
}
