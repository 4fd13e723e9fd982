package factor

import (
	"testing"

	"github.com/dshills/spingen/pkg/genid"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/listtensor"
	"github.com/dshills/spingen/pkg/tensor"
	"pgregory.net/rapid"
)

// TestFactorizeMergesSharedHead covers spec §8 scenario 5: two sibling
// BinaryContractions with the same head tensor (v2, same indices, same
// dagger) factorize into one node with two subtrees.
func TestFactorizeMergesSharedHead(t *testing.T) {
	v2i := []idx.Index{idx.New(0, idx.SpaceVirtual, true), idx.New(1, idx.SpaceVirtual, false)}
	v2 := tensor.New("v2", v2i...)

	t2a := tensor.New("t2", idx.New(2, idx.SpaceVirtual, true), idx.New(3, idx.SpaceVirtual, false))
	t2b := tensor.New("t2", idx.New(4, idx.SpaceVirtual, true), idx.New(5, idx.SpaceVirtual, false))

	lt1 := listtensor.ListTensor{Target: tensor.New("r"), Sign: 1, Tensors: []tensor.Tensor{v2, t2a}}
	lt2 := listtensor.ListTensor{Target: tensor.New("r"), Sign: 1, Tensors: []tensor.Tensor{v2, t2b}}

	ids := genid.NewCounter()
	root := BuildRoot(tensor.New("r"), []listtensor.ListTensor{lt1, lt2}, ids)

	if len(root.Children) != 2 {
		t.Fatalf("expected 2 unfactorized children, got %d", len(root.Children))
	}

	root.Factorize()
	root.SetParentSub()

	if len(root.Children) != 1 {
		t.Fatalf("expected factorization to merge into 1 sibling, got %d", len(root.Children))
	}
	if len(root.Children[0].Children) != 2 {
		t.Fatalf("expected merged node to carry 2 subtrees, got %d", len(root.Children[0].Children))
	}
	if !root.Children[0].Left.Equal(v2) {
		t.Fatalf("merged node's Left should be v2, got %v", root.Children[0].Left)
	}
}

// TestFactorizeIdempotent checks that applying Factorize twice yields the
// same tree shape (spec §8: "applying factorize() twice produces an
// identical tree").
func TestFactorizeIdempotent(t *testing.T) {
	v2 := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true), idx.New(1, idx.SpaceVirtual, false))
	t2a := tensor.New("t2", idx.New(2, idx.SpaceVirtual, true), idx.New(3, idx.SpaceVirtual, false))
	t2b := tensor.New("t2", idx.New(4, idx.SpaceVirtual, true), idx.New(5, idx.SpaceVirtual, false))

	lt1 := listtensor.ListTensor{Target: tensor.New("r"), Sign: 1, Tensors: []tensor.Tensor{v2, t2a}}
	lt2 := listtensor.ListTensor{Target: tensor.New("r"), Sign: 1, Tensors: []tensor.Tensor{v2, t2b}}

	ids := genid.NewCounter()
	root := BuildRoot(tensor.New("r"), []listtensor.ListTensor{lt1, lt2}, ids)
	root.Factorize()
	first := len(root.Children)
	firstSub := len(root.Children[0].Children)

	root.Factorize()
	if len(root.Children) != first || len(root.Children[0].Children) != firstSub {
		t.Fatalf("factorize is not idempotent: (%d,%d) -> (%d,%d)",
			first, firstSub, len(root.Children), len(root.Children[0].Children))
	}
}

// TestDepthRootChildrenAreZero checks that direct children of the root tree
// report depth 0 (the residual equation leaf, spec §4.7), while their
// subtrees report a positive depth.
func TestDepthRootChildrenAreZero(t *testing.T) {
	v2 := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true))
	t2 := tensor.New("t2", idx.New(1, idx.SpaceVirtual, true))
	lt := listtensor.ListTensor{Target: tensor.New("r"), Sign: 1, Tensors: []tensor.Tensor{v2, t2}}

	ids := genid.NewCounter()
	root := BuildRoot(tensor.New("r"), []listtensor.ListTensor{lt}, ids)
	root.SetParentSub()

	if got := root.Children[0].Depth(); got != 0 {
		t.Fatalf("root child depth = %d, want 0", got)
	}
	sub := root.Children[0].Children[0]
	if got := sub.Children[0].Depth(); got != 1 {
		t.Fatalf("nested child depth = %d, want 1", got)
	}
}

// TestFactorizeIdempotentProperty is a property test (spec §8): for any
// number of sibling two-tensor products sharing the same head tensor,
// applying Factorize twice produces an identical tree shape.
func TestFactorizeIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		v2 := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true), idx.New(1, idx.SpaceVirtual, false))

		lts := make([]listtensor.ListTensor, n)
		nextID := 2
		for i := 0; i < n; i++ {
			ti := tensor.New("t2", idx.New(nextID, idx.SpaceVirtual, true), idx.New(nextID+1, idx.SpaceVirtual, false))
			nextID += 2
			lts[i] = listtensor.ListTensor{Target: tensor.New("r"), Sign: 1, Tensors: []tensor.Tensor{v2, ti}}
		}

		ids := genid.NewCounter()
		root := BuildRoot(tensor.New("r"), lts, ids)
		root.Factorize()
		root.SetParentSub()
		firstChildren := len(root.Children)
		var firstSub int
		if firstChildren > 0 {
			firstSub = len(root.Children[0].Children)
		}

		root.Factorize()
		root.SetParentSub()
		if len(root.Children) != firstChildren {
			rt.Fatalf("factorize is not idempotent on child count: %d -> %d", firstChildren, len(root.Children))
		}
		if firstChildren > 0 && len(root.Children[0].Children) != firstSub {
			rt.Fatalf("factorize is not idempotent on subtree count: %d -> %d", firstSub, len(root.Children[0].Children))
		}
	})
}
