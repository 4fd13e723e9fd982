// Package factor implements the binary-contraction factorization tree
// (spec §4.6, §9): Tree and BinaryContraction nodes linked by non-owning
// parent back-references, plus the common-subexpression-elimination pass
// that merges structurally-identical sibling contractions.
package factor

import (
	"strconv"

	"github.com/dshills/spingen/pkg/genid"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/listtensor"
	"github.com/dshills/spingen/pkg/op"
	"github.com/dshills/spingen/pkg/tensor"
)

// BinaryContraction represents one left tensor applied to the product of
// its child subtrees: target = left * (product of Children's targets).
// parent is a non-owning back-reference to the Tree this BinaryContraction
// belongs to; it is never used for ownership (set only by SetParentSub) and
// never forms a cycle, since Children are the only owning edges.
type BinaryContraction struct {
	Target   tensor.Tensor
	Left     tensor.Tensor
	Children []*Tree
	parent   *Tree
}

// Tree is a node owning a list of BinaryContraction children that together
// sum to Target. Ops carries the second-quantized operator structure behind
// Target's index list (spec §3's "target-tensor, list of BinaryContraction
// children, ops, dagger"), consumed by the emitter's depth-0 residual
// accumulation to compute the sign of the bra/ket index swap (spec §4.7).
// parent is a non-owning back-reference to the BinaryContraction this Tree is
// a subtree of (nil at the root).
type Tree struct {
	Target   tensor.Tensor
	Children []*BinaryContraction
	Ops      []op.Operator
	Dagger   bool
	parent   *BinaryContraction
}

// Parent returns the BinaryContraction this Tree is a subtree of, or nil at
// the root.
func (t *Tree) Parent() *BinaryContraction { return t.parent }

// Depth returns the tree's nesting depth: 0 at the root.
func (t *Tree) Depth() int {
	if t.parent == nil {
		return 0
	}
	return t.parent.Depth() + 1
}

// Parent returns the Tree owning this BinaryContraction.
func (bc *BinaryContraction) Parent() *Tree { return bc.parent }

// Depth returns the BinaryContraction's distance from the root: a direct
// child of the root Tree (one Equation-level summand) is depth 0 — the
// "residual equation leaf" of spec §4.7, emitted by accumulating directly
// into the residual tensor rather than by computing and storing an
// intermediate product.
func (bc *BinaryContraction) Depth() int {
	if bc.parent == nil {
		return 0
	}
	return bc.parent.Depth()
}

// BuildRoot builds the factorization tree for one Equation target: one
// BinaryContraction child per input ListTensor (one per diagram), all
// contributing to the shared root Target. ids supplies fresh labels for
// synthetic intermediate tensors produced while peeling a diagram's tensor
// product down to a single binary contraction at a time (spec §4.6 step 1).
func BuildRoot(target tensor.Tensor, diagrams []listtensor.ListTensor, ids *genid.Counter) *Tree {
	root := &Tree{Target: target, Ops: operatorsOf(target)}
	for _, lt := range diagrams {
		root.Children = append(root.Children, buildBC(lt, ids))
	}
	return root
}

// operatorsOf derives the operator structure backing a tensor's index list:
// one Operator whose pairs are the tensor's indices taken two at a time, in
// order, tagged Creation/Annihilation by each index's dagger flag. This is
// the same pairing the emitted code relies on when swapping consecutive
// index pairs to match bra/ket convention (spec §4.7).
func operatorsOf(t tensor.Tensor) []op.Operator {
	if len(t.Indices) < 2 {
		return nil
	}
	pairs := make([]op.Pair, 0, len(t.Indices)/2)
	for i := 0; i+1 < len(t.Indices); i += 2 {
		pairs = append(pairs, op.Pair{
			First:  op.Slot{Index: t.Indices[i], Kind: slotKind(t.Indices[i])},
			Second: op.Slot{Index: t.Indices[i+1], Kind: slotKind(t.Indices[i+1])},
		})
	}
	return []op.Operator{*op.New(pairs)}
}

func slotKind(ix idx.Index) op.DaggerKind {
	if ix.Dagger() {
		return op.Creation
	}
	return op.Annihilation
}

func buildBC(lt listtensor.ListTensor, ids *genid.Counter) *BinaryContraction {
	bc := &BinaryContraction{Left: lt.Front()}
	rest := lt.Rest()
	if rest.Empty() {
		bc.Target = lt.Front()
		return bc
	}
	bc.Target = intermediateTarget(lt.Tensors, ids)
	bc.Children = []*Tree{buildTree(rest, ids)}
	return bc
}

func buildTree(lt listtensor.ListTensor, ids *genid.Counter) *Tree {
	bc := buildBC(lt, ids)
	return &Tree{Target: bc.Target, Children: []*BinaryContraction{bc}, Ops: operatorsOf(bc.Target)}
}

// intermediateTarget synthesizes the tensor a partial product contracts to:
// every index that appears exactly once across the product's tensors (an
// externally-visible index, not contracted away) survives onto the
// intermediate; a fresh "i<id>" label keeps successive intermediates from
// colliding and lets Factorize compare them structurally.
func intermediateTarget(tensors []tensor.Tensor, ids *genid.Counter) tensor.Tensor {
	counts := make(map[int]int)
	order := make([]idx.Index, 0)
	for _, t := range tensors {
		for _, ix := range t.Indices {
			if counts[ix.ID()] == 0 {
				order = append(order, ix)
			}
			counts[ix.ID()]++
		}
	}
	free := make([]idx.Index, 0, len(order))
	for _, ix := range order {
		if counts[ix.ID()] == 1 {
			free = append(free, ix)
		}
	}
	return tensor.New("i"+strconv.Itoa(ids.Next()), free...)
}

// Factorize merges structurally-equal sibling BinaryContractions (same
// Left tensor, including its index daggerness) at this Tree node, then
// recurses into each surviving sibling's own subtrees. Siblings are scanned
// in order; the first occurrence wins and absorbs the later ones' children,
// so factorization is deterministic and stable under repeated application
// (spec §4.6, §8).
func (t *Tree) Factorize() {
	kept := make([]*BinaryContraction, 0, len(t.Children))
	for _, bc := range t.Children {
		merged := false
		for _, k := range kept {
			if bc.Left.Equal(k.Left) {
				k.Children = append(k.Children, bc.Children...)
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, bc)
		}
	}
	t.Children = kept

	for _, bc := range t.Children {
		for _, sub := range bc.Children {
			sub.Factorize()
		}
	}
}

// SetParentSub re-establishes the parent back-references throughout the
// tree after construction or factorization (spec §4.6 step 3).
func (t *Tree) SetParentSub() {
	for _, bc := range t.Children {
		bc.parent = t
		for _, sub := range bc.Children {
			sub.parent = bc
			sub.SetParentSub()
		}
	}
}

// Walk visits every Tree node in the graph reachable from t (pre-order),
// calling fn once per node.
func (t *Tree) Walk(fn func(*Tree)) {
	fn(t)
	for _, bc := range t.Children {
		for _, sub := range bc.Children {
			sub.Walk(fn)
		}
	}
}

// PostOrder returns every Tree node reachable from t in post-order (children
// before parents), matching the order the emitter numbers Task<i> classes
// (spec §4.7: "class i is a globally increasing counter keyed by node order
// in a post-order walk").
func (t *Tree) PostOrder() []*Tree {
	var out []*Tree
	var visit func(*Tree)
	visit = func(n *Tree) {
		for _, bc := range n.Children {
			for _, sub := range bc.Children {
				visit(sub)
			}
		}
		out = append(out, n)
	}
	visit(t)
	return out
}
