// Package wick implements the Wick contraction engine (spec §4.2): given a
// diagram whose tensors still carry free (uncontracted) operator indices, it
// enumerates every way to fully contract the non-active operator pairs
// between distinct tensors, producing one output Diagram per contraction
// pattern with the fermion sign and delta-pairs recorded.
package wick

import (
	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/tensor"
)

// flatSlot is one contractable operator slot, carrying enough identity to
// tell distinct tensors apart and to compute the positional fermion sign.
type flatSlot struct {
	tensorIdx int
	index     idx.Index
}

// Contract enumerates all fully-contracted Diagrams obtainable from d by
// pairing creation/annihilation operators between distinct tensors.
// Active-active pairs are left uncontracted (deferred to the RDM resolver,
// spec §4.3); indices already fixed by the projection tensor ("proj") are
// treated as external and excluded from matching, since they were assigned
// their shared identity at Equation-construction time rather than via a
// delta.
func Contract(d diagram.Diagram) []diagram.Diagram {
	projIDs := make(map[int]bool)
	for _, t := range d.Tensors {
		if t.IsProjection() {
			for _, ix := range t.Indices {
				projIDs[ix.ID()] = true
			}
		}
	}

	var slots []flatSlot
	for ti, t := range d.Tensors {
		if t.IsProjection() {
			continue
		}
		for _, ix := range t.Indices {
			if ix.Space() == idx.SpaceActive {
				continue
			}
			if projIDs[ix.ID()] {
				continue
			}
			slots = append(slots, flatSlot{tensorIdx: ti, index: ix})
		}
	}

	matchings := enumerate(slots)

	out := make([]diagram.Diagram, 0, len(matchings))
	for _, m := range matchings {
		nd := d
		nd.Tensors = append([]tensor.Tensor(nil), d.Tensors...)
		nd.Deltas = append([]diagram.DeltaPair(nil), d.Deltas...)
		nd.Deltas = append(nd.Deltas, m.deltas...)
		nd.Sign = d.Sign * m.sign
		out = append(out, nd)
	}
	return out
}

type matching struct {
	deltas []diagram.DeltaPair
	sign   int
}

// enumerate recursively pairs off the leftmost remaining slot with every
// compatible partner, accumulating the fermion sign from the number of
// still-unmatched slots it must cross to become adjacent to its partner.
// This recursive "contract the leftmost operator first" reduction is the
// standard way to compute Wick contraction signs and composes correctly
// across recursive calls.
func enumerate(slots []flatSlot) []matching {
	if len(slots) == 0 {
		return []matching{{sign: 1}}
	}

	head := slots[0]
	rest := slots[1:]

	var out []matching
	for k, cand := range rest {
		if !compatiblePartners(head, cand) {
			continue
		}
		gap := k // number of slots strictly between head and cand in `rest`
		gapSign := 1
		if gap%2 != 0 {
			gapSign = -1
		}

		remaining := make([]flatSlot, 0, len(rest)-1)
		remaining = append(remaining, rest[:k]...)
		remaining = append(remaining, rest[k+1:]...)

		for _, sub := range enumerate(remaining) {
			dp := diagram.DeltaPair{A: head.index, B: cand.index}
			deltas := make([]diagram.DeltaPair, 0, len(sub.deltas)+1)
			deltas = append(deltas, dp)
			deltas = append(deltas, sub.deltas...)
			out = append(out, matching{deltas: deltas, sign: gapSign * sub.sign})
		}
	}
	return out
}

// compatiblePartners reports whether two slots may be Wick-contracted: they
// must come from distinct tensors, have opposite dagger kind (one creation,
// one annihilation), and share a contraction-compatible index space.
func compatiblePartners(a, b flatSlot) bool {
	if a.tensorIdx == b.tensorIdx {
		return false
	}
	if a.index.Dagger() == b.index.Dagger() {
		return false
	}
	return idx.Compatible(a.index.Space(), b.index.Space())
}
