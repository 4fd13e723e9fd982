// Package rdm implements the active-operator / RDM resolver (spec §4.3): it
// replaces maximal contiguous runs of active operator slots by a reduced
// density matrix tensor Gamma_n, where n is the number of creation/
// annihilation pairs in the run.
package rdm

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/tensor"
)

// ErrUnresolvedActive is raised when a run of active operators cannot be
// resolved into a balanced creation/annihilation Gamma tensor — spec §7.
var ErrUnresolvedActive = errors.New("rdm: unresolved active operators")

// gammaLabel names the RDM tensor of the given rank. Resolve never constructs
// a rank-0 Gamma tensor: every run resolveRun accepts is non-empty and
// balanced, so it holds at least one creation/annihilation pair.
func gammaLabel(rank int) string {
	return tensor.LabelGamma + strconv.Itoa(rank)
}

// slotRef locates one index within the diagram's tensor list, so a resolved
// run's indices can be removed from their host tensor.
type slotRef struct {
	tensorIdx int
	indexIdx  int
	index     idx.Index
}

// Resolve replaces every maximal contiguous run of active, not-yet-contracted
// operator indices in d with a Gamma tensor of the matching rank. A run is
// "contiguous" in the flattened left-to-right order of the diagram's
// (non-projection) tensor indices — it may span a tensor boundary. The
// overall sign is preserved unchanged, per spec §4.3.
func Resolve(d diagram.Diagram) (diagram.Diagram, error) {
	deltas := make(map[int]bool)
	for _, dp := range d.Deltas {
		deltas[dp.A.ID()] = true
		deltas[dp.B.ID()] = true
	}

	var flat []slotRef
	for ti, t := range d.Tensors {
		if t.IsProjection() || t.IsGamma() {
			continue
		}
		for ii, ix := range t.Indices {
			flat = append(flat, slotRef{tensorIdx: ti, indexIdx: ii, index: ix})
		}
	}

	runs := activeRuns(flat, deltas)
	if len(runs) == 0 {
		return d, nil
	}

	removed := make(map[int]map[int]bool) // tensorIdx -> set of indexIdx to remove
	out := d
	out.Tensors = append([]tensor.Tensor(nil), d.Tensors...)

	for _, run := range runs {
		g, err := resolveRun(run)
		if err != nil {
			return diagram.Diagram{}, err
		}
		if g != nil {
			out.Tensors = append(out.Tensors, *g)
		}
		for _, s := range run {
			if removed[s.tensorIdx] == nil {
				removed[s.tensorIdx] = make(map[int]bool)
			}
			removed[s.tensorIdx][s.indexIdx] = true
		}
	}

	for ti, drop := range removed {
		t := out.Tensors[ti]
		kept := make([]idx.Index, 0, len(t.Indices))
		for ii, ix := range t.Indices {
			if !drop[ii] {
				kept = append(kept, ix)
			}
		}
		t.Indices = kept
		out.Tensors[ti] = t
	}

	return out, nil
}

// activeRuns scans flat for maximal contiguous runs of active, unresolved
// (not already in a delta-pair) indices.
func activeRuns(flat []slotRef, deltas map[int]bool) [][]slotRef {
	var runs [][]slotRef
	var current []slotRef
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, current)
			current = nil
		}
	}
	for _, s := range flat {
		if s.index.Space() == idx.SpaceActive && !deltas[s.index.ID()] {
			current = append(current, s)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

// resolveRun turns one maximal run of active slots into a Gamma tensor. The
// run must contain equal numbers of creation and annihilation slots; an odd
// or unbalanced run cannot be resolved and is reported as UnresolvedActive.
func resolveRun(run []slotRef) (*tensor.Tensor, error) {
	creation, annihilation := 0, 0
	for _, s := range run {
		if s.index.Dagger() {
			creation++
		} else {
			annihilation++
		}
	}
	if creation != annihilation {
		return nil, fmt.Errorf("%w: run of %d active slots has %d creation / %d annihilation",
			ErrUnresolvedActive, len(run), creation, annihilation)
	}
	rank := creation

	indices := make([]idx.Index, len(run))
	for i, s := range run {
		indices[i] = s.index
	}
	g := tensor.New(gammaLabel(rank), indices...)
	return &g, nil
}
