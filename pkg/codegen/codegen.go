// Package codegen implements the code emitter (spec §4.7, C10): it walks a
// factorization Tree and renders task classes, subtask classes, compute
// bodies, queue wiring, and gamma-summation bodies into five text streams,
// concatenated in a fixed order. It never imports or type-checks against the
// host runtime; runtime_names.go's constants are printed as opaque text.
package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/equation"
	"github.com/dshills/spingen/pkg/factor"
	"github.com/dshills/spingen/pkg/genid"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/op"
)

// Error kinds raised by emission (spec §7). Both are fatal: the caller
// aborts the run with no partial output.
var (
	ErrIrrationalFactor = errors.New("codegen: factor has no p/q approximation within threshold")
	ErrEmptyLoop        = errors.New("codegen: compute body has no loop indices to emit")
)

const (
	prefacThreshold = 1.0e-10
	prefacMaxDenom  = 1024
)

// Prefac finds the smallest q in [1,1024] such that |f*q - round(f*q)| is
// within prefacThreshold, returning (round(f*q), q) — a brute-force
// rational approximation (spec §7 IrrationalFactor, §9).
func Prefac(f float64) (p, q int, err error) {
	for i := 1; i <= prefacMaxDenom; i++ {
		scaled := f * float64(i)
		if math.Abs(scaled-math.Round(scaled)) < prefacThreshold {
			return int(math.Round(scaled)), i, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %g", ErrIrrationalFactor, f)
}

// targetName maps an Equation's tree type to the short name the emitted
// C++ gives its output tensor; see equation.TreeType.TargetLabel.
func targetName(t equation.TreeType) string { return t.TargetLabel() }

// OutStream holds the five text streams the emitter accumulates per node,
// concatenated by String (Decl, Ctor, Compute, Queue, then Gamma) into the
// final emitted text (spec §4.7, §5 "Resource discipline").
type OutStream struct {
	Decl    bytes.Buffer // class declaration (tt)
	Ctor    bytes.Buffer // class constructor (cc)
	Compute bytes.Buffer // compute_()/Task_local::compute() body (dd)
	Gamma   bytes.Buffer // gamma-stream wiring, evaluated last (gg)
	Queue   bytes.Buffer // queue wiring for non-gamma tasks (ee)
}

func (o *OutStream) append(other *OutStream) {
	o.Decl.Write(other.Decl.Bytes())
	o.Ctor.Write(other.Ctor.Bytes())
	o.Compute.Write(other.Compute.Bytes())
	o.Gamma.Write(other.Gamma.Bytes())
	o.Queue.Write(other.Queue.Bytes())
}

// String concatenates the five streams in their fixed final order: class
// declarations, constructors, compute bodies, then wiring — with the gamma
// stream appended after the ordinary queue stream so gamma tasks are always
// wired last (spec §4.7).
func (o *OutStream) String() string {
	var b bytes.Buffer
	b.Write(o.Decl.Bytes())
	b.Write(o.Ctor.Bytes())
	b.Write(o.Compute.Bytes())
	b.Write(o.Queue.Bytes())
	b.Write(o.Gamma.Bytes())
	return b.String()
}

// Complex selects which BLAS symbol pair a method variant uses to emit
// matrix products and inner products (spec §6, real vs. relativistic
// methods).
type Complex bool

const (
	Real    Complex = false
	ImagRel Complex = true
)

func (c Complex) matMul() string {
	if c {
		return RuntimeZgemm3m
	}
	return RuntimeDgemm
}

func (c Complex) innerProd() string {
	if c {
		return RuntimeZdotu
	}
	return RuntimeDdot
}

func (c Complex) scal() string {
	if c {
		return RuntimeZscal
	}
	return RuntimeDscal
}

// Emitter renders one Equation's factorization Tree into source text. ids
// is reset at the start of every Emit call, matching spec §5's "the counter
// is reset per emission" rule.
type Emitter struct {
	ids     *genid.Counter
	complex Complex
}

// New constructs an Emitter using the given numeric mode.
func New(complex Complex) *Emitter {
	return &Emitter{ids: genid.NewCounter(), complex: complex}
}

// nodeIDs assigns one task id to every Tree and one to every
// BinaryContraction, in post-order (children before parents): a
// BinaryContraction's children are numbered, then the BinaryContraction
// itself, then once every child BinaryContraction of a Tree is numbered the
// Tree itself receives the next id. The whole run's ids therefore form a
// single contiguous range starting at the id handed to the very first
// (deepest) node and ending at the root Tree's id (spec §8: "emitted task
// ids form a contiguous range").
type nodeIDs struct {
	tree map[*factor.Tree]int
	bc   map[*factor.BinaryContraction]int
}

func (e *Emitter) assignIDs(root *factor.Tree) nodeIDs {
	ids := nodeIDs{tree: make(map[*factor.Tree]int), bc: make(map[*factor.BinaryContraction]int)}
	var visit func(t *factor.Tree)
	visit = func(t *factor.Tree) {
		for _, bc := range t.Children {
			for _, sub := range bc.Children {
				visit(sub)
			}
			ids.bc[bc] = e.ids.Next()
		}
		ids.tree[t] = e.ids.Next()
	}
	visit(root)
	return ids
}

// Emit renders the full task-class/constructor/compute/queue text for one
// equation's factorization tree, under the given tree type and queue label.
// deltas, if non-nil, supplies the delta-pair metadata of the diagram a
// gamma-labelled BinaryContraction's Left tensor came from, keyed by the
// tensor's canonical Signature — used by the RDM summation emitter's
// δ-branch (spec §4.8). Diagrams whose Gamma tensor carries no matching
// entry fall back to the no-δ branch. factors supplies each such diagram's
// net scalar coefficient, keyed the same way, rationalized via Prefac into
// the p/q pair the emitted summation carries (spec §4.7, §4.8).
func (e *Emitter) Emit(root *factor.Tree, typ equation.TreeType, label string, deltas map[string][]diagram.DeltaPair, factors map[string]float64) (string, error) {
	e.ids.Reset()
	ids := e.assignIDs(root)

	var out OutStream
	rootID := ids.tree[root]
	out.append(e.emitCreateTarget(rootID, typ, label))

	var walk func(t *factor.Tree) error
	walk = func(t *factor.Tree) error {
		for _, bc := range t.Children {
			for _, sub := range bc.Children {
				if err := walk(sub); err != nil {
					return err
				}
			}
			ns, err := e.emitTask(t, bc, ids, typ, label, deltas, factors)
			if err != nil {
				return err
			}
			out.append(ns)
		}
		return nil
	}
	if err := walk(root); err != nil {
		return "", err
	}
	return out.String(), nil
}

// emitCreateTarget emits the topmost task that owns the equation's final
// target tensor and zeroes it on reset (ported from Residual::create_target).
func (e *Emitter) emitCreateTarget(id int, typ equation.TreeType, label string) *OutStream {
	out := &OutStream{}
	name := targetName(typ)
	fmt.Fprintf(&out.Decl, "class Task%d : public Task {\n", id)
	fmt.Fprintf(&out.Decl, "  protected:\n    std::shared_ptr<Tensor> %s_;\n", name)
	fmt.Fprintf(&out.Decl, "    IndexRange closed_;\n    IndexRange active_;\n    IndexRange virt_;\n")
	if typ.HasCI() {
		fmt.Fprintf(&out.Decl, "    IndexRange ci_;\n")
	}
	fmt.Fprintf(&out.Decl, "    const bool reset_;\n\n")
	fmt.Fprintf(&out.Decl, "    void compute_() {\n      if (reset_) %s_->zero();\n    }\n\n", name)
	fmt.Fprintf(&out.Decl, "  public:\n    Task%d(std::vector<std::shared_ptr<Tensor>> t, const bool reset);\n", id)
	fmt.Fprintf(&out.Decl, "    ~Task%d() {}\n};\n\n", id)

	fmt.Fprintf(&out.Ctor, "Task%d::Task%d(std::vector<std::shared_ptr<Tensor>> t, const bool reset) : reset_(reset) {\n", id, id)
	fmt.Fprintf(&out.Ctor, "  %s_ = t[0];\n}\n\n", name)

	fmt.Fprintf(&out.Queue, "  auto %sq = make_shared<Queue>();\n", label)
	fmt.Fprintf(&out.Queue, "  auto tensor%d = vector<shared_ptr<Tensor>>{%s};\n", id, name)
	fmt.Fprintf(&out.Queue, "  auto task%d = make_shared<Task%d>(tensor%d, reset);\n", id, id, id)
	fmt.Fprintf(&out.Queue, "  %sq->add_task(task%d);\n\n", label, id)
	return out
}

// emitTask renders one BinaryContraction's task class, constructor, compute
// body, and queue wiring: dgemm_/ddot_ for depth > 0, and the "accumulate
// directly into the residual" form at depth 0 (spec §4.7).
func (e *Emitter) emitTask(owner *factor.Tree, bc *factor.BinaryContraction, ids nodeIDs, typ equation.TreeType, label string, deltas map[string][]diagram.DeltaPair, factors map[string]float64) (*OutStream, error) {
	out := &OutStream{}
	id := ids.bc[bc]
	ownerID := ids.tree[owner]
	rootID := ids.tree[rootTree(owner)]

	isGamma := bc.Left.IsGamma()

	fmt.Fprintf(&out.Decl, "class Task%d : public Task {\n", id)
	fmt.Fprintf(&out.Decl, "  protected:\n")
	fmt.Fprintf(&out.Decl, "    class Task_local : public SubTask<%d,%d> {\n", max(len(bc.Left.Indices), 1), 1+len(bc.Children))
	fmt.Fprintf(&out.Decl, "      public:\n        void compute() override;\n    };\n")
	fmt.Fprintf(&out.Decl, "};\n\n")

	fmt.Fprintf(&out.Ctor, "Task%d::Task%d(std::vector<std::shared_ptr<Tensor>> t) {\n}\n\n", id, id)

	if bc.Depth() == 0 {
		if err := e.emitComputeDepthZero(&out.Compute, id, owner, bc); err != nil {
			return nil, err
		}
	} else {
		if err := e.emitComputeDepthPositive(&out.Compute, id, bc); err != nil {
			return nil, err
		}
	}

	tensorList := bc.Left.Label
	for _, sub := range bc.Children {
		tensorList += ", " + sub.Target.Label
	}

	stream := &out.Queue
	if isGamma {
		stream = &out.Gamma
		if err := e.emitGammaSummation(&out.Gamma, bc, deltas, factors); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(stream, "  auto tensor%d = vector<shared_ptr<Tensor>>{%s};\n", id, tensorList)
	fmt.Fprintf(stream, "  auto task%d = make_shared<Task%d>(tensor%d);\n", id, id, id)
	if !isGamma {
		fmt.Fprintf(stream, "  task%d->add_dep(task%d);\n", ownerID, id)
		fmt.Fprintf(stream, "  task%d->add_dep(task%d);\n", id, rootID)
		fmt.Fprintf(stream, "  %sq->add_task(task%d);\n\n", label, id)
	}
	return out, nil
}

func rootTree(t *factor.Tree) *factor.Tree {
	for t.Parent() != nil {
		t = t.Parent().Parent()
	}
	return t
}

// emitComputeDepthPositive renders the get/sort/matmul-or-dot/put sequence
// for an intermediate contraction (spec §4.7, depth > 0).
func (e *Emitter) emitComputeDepthPositive(buf *bytes.Buffer, id int, bc *factor.BinaryContraction) error {
	if len(bc.Left.Indices) == 0 {
		allScalar := true
		for _, sub := range bc.Children {
			if len(sub.Target.Indices) > 0 {
				allScalar = false
				break
			}
		}
		if allScalar {
			return fmt.Errorf("%w: task%d", ErrEmptyLoop, id)
		}
	}
	loopIndices := loopIndicesOf(bc)
	fmt.Fprintf(buf, "void Task%d::Task_local::compute() {\n", id)
	fmt.Fprintf(buf, "  %s.get_block();\n", bc.Left.Label)
	for _, sub := range bc.Children {
		fmt.Fprintf(buf, "  %s.get_block();\n", sub.Target.Label)
	}
	for _, ix := range loopIndices {
		fmt.Fprintf(buf, "  sort_indices(%s);\n", ix.String())
	}
	hasFree := len(loopIndices) > 0
	if hasFree {
		fmt.Fprintf(buf, "  %s(%s, %s, out());\n", e.complex.matMul(), bc.Left.Label, childTargets(bc))
	} else {
		fmt.Fprintf(buf, "  %s(%s, %s, out());\n", e.complex.innerProd(), bc.Left.Label, childTargets(bc))
	}
	fmt.Fprintf(buf, "  sort_indices_target(out());\n")
	fmt.Fprintf(buf, "  put_block(out());\n")
	fmt.Fprintf(buf, "}\n\n")
	return nil
}

// emitComputeDepthZero renders the residual-accumulation form: the product
// of bc's tensors is added directly into the residual tensor rather than
// stored as a separate intermediate (spec §4.7, depth 0). Because the
// residual tensor's own index order doesn't necessarily match the bra/ket
// convention the child product was built against, the target's consecutive
// index pairs are swapped before the accumulation call, and owner.Ops (spec
// §3) supplies the operator structure needed to work out whether that swap
// flips the overall sign (ported from generate_compute_operators,
// original_source/src/residual.cc:303-329).
func (e *Emitter) emitComputeDepthZero(buf *bytes.Buffer, id int, owner *factor.Tree, bc *factor.BinaryContraction) error {
	swapped := swapConsecutivePairs(owner.Target.Indices)
	sign := swapSign(owner.Ops)

	fmt.Fprintf(buf, "void Task%d::Task_local::compute() {\n", id)
	coef := "1.0"
	if sign < 0 {
		coef = "-1.0"
	}
	fmt.Fprintf(buf, "  out()->add_block(%s, %s", coef, owner.Target.Label)
	for _, ix := range swapped {
		fmt.Fprintf(buf, ", %s", ix.String())
	}
	fmt.Fprintf(buf, ", %s);\n", childTargets(bc))
	fmt.Fprintf(buf, "}\n\n")
	return nil
}

// swapConsecutivePairs swaps each adjacent pair of indices ((0,1),(2,3),...)
// to match the residual tensor's bra/ket index convention
// (original_source/src/residual.cc:312-318: "res.push_back(*j);
// res.push_back(*i)" over consecutive pairs of target_index()).
func swapConsecutivePairs(indices []idx.Index) []idx.Index {
	out := make([]idx.Index, len(indices))
	copy(out, indices)
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}

// swapSign reports the fermion sign incurred by swapConsecutivePairs's
// rearrangement of ops's operator structure: a swap flips sign only when
// exactly one of the two swapped slots is active (op.SignOfSwap, spec §3).
func swapSign(ops []op.Operator) int {
	sign := 1
	for _, o := range ops {
		pairs := o.Pairs()
		slots := make([]op.Slot, 0, len(pairs)*2)
		for _, p := range pairs {
			slots = append(slots, p.First, p.Second)
		}
		for i := 0; i+1 < len(slots); i += 2 {
			sign *= op.SignOfSwap(slots, i, i+1)
		}
	}
	return sign
}

func childTargets(bc *factor.BinaryContraction) string {
	s := ""
	for i, sub := range bc.Children {
		if i > 0 {
			s += ", "
		}
		s += sub.Target.Label
	}
	return s
}

// loopIndicesOf returns the indices contracted between bc's head tensor and
// its child targets: indices appearing in bc.Left and in some child's
// Target. Order follows bc.Left's own index order (spec §4.7's
// loop_indices()).
func loopIndicesOf(bc *factor.BinaryContraction) []tensorIndexRef {
	childIDs := make(map[int]bool)
	for _, sub := range bc.Children {
		for _, ix := range sub.Target.Indices {
			childIDs[ix.ID()] = true
		}
	}
	var out []tensorIndexRef
	for _, ix := range bc.Left.Indices {
		if childIDs[ix.ID()] {
			out = append(out, tensorIndexRef{ix.String()})
		}
	}
	return out
}

type tensorIndexRef struct{ s string }

func (t tensorIndexRef) String() string { return t.s }

// emitGammaSummation implements the §4.8 RDM summation emitter: a δ-branch
// when deltas supplies constraints touching this gamma tensor's indices,
// else a no-δ sort_indices call; and, when bc additionally multiplies the
// gamma by a merge tensor (bc.Children non-empty), the "mult" variant that
// folds that multiplication into the innermost loop. Both branches carry the
// diagram's net coefficient as the integer ratio Prefac computes (spec §4.7
// "factors are rendered as integer ratio p/q"; ported from
// original_source/rdm.cc's RDM::generate/RDM::generate_mult, which feed
// prefac__(fac_) straight into the emitted sort_indices/summation call).
func (e *Emitter) emitGammaSummation(buf *bytes.Buffer, bc *factor.BinaryContraction, deltas map[string][]diagram.DeltaPair, factors map[string]float64) error {
	gamma := bc.Left
	pairs := deltas[gamma.Signature()]
	p, q, err := Prefac(factors[gamma.Signature()])
	if err != nil {
		return err
	}

	if len(bc.Children) > 0 {
		emitGammaMult(buf, bc, pairs, p, q)
		return nil
	}

	if len(pairs) > 0 {
		fmt.Fprintf(buf, "  if (")
		for i, dp := range pairs {
			if i > 0 {
				buf.WriteString(" && ")
			}
			fmt.Fprintf(buf, "i_%d == i_%d", dp.A.ID(), dp.B.ID())
		}
		fmt.Fprintf(buf, ") {\n")
		for _, ix := range gamma.Indices {
			fmt.Fprintf(buf, "    for (auto& i_%d : range_%s) {\n", ix.ID(), ix.Space())
		}
		fmt.Fprintf(buf, "      odata[i] += (%d.0/%d.0) * data[i];\n", p, q)
		for range gamma.Indices {
			fmt.Fprintf(buf, "    }\n")
		}
		fmt.Fprintf(buf, "  }\n")
		return nil
	}

	perm := make([]int, 0, len(gamma.Indices))
	for i := range gamma.Indices {
		perm = append(perm, i)
	}
	fmt.Fprintf(buf, "  sort_indices<")
	for i, pi := range perm {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(buf, "%d", pi)
	}
	fmt.Fprintf(buf, ",1,1,%d,%d>(data, %s_data, sizes);\n", p, q, gamma.Label)
	return nil
}

// emitGammaMult implements the §4.8 "mult" variant (RDM::generate_mult): the
// gamma's data multiplies, element by element, an additional merge tensor
// (bc.Children[0].Target, the "fdata" block) in the innermost loop. A merged
// index that coincides with one side of a δ-pair is not looped separately —
// it is aliased to its delta partner via a local const binding, mirroring
// original_source/rdm.cc's make_merged_loops "const int i_x = i_y;" step.
func emitGammaMult(buf *bytes.Buffer, bc *factor.BinaryContraction, pairs []diagram.DeltaPair, p, q int) {
	gamma := bc.Left
	merge := bc.Children[0].Target

	aliasOf := make(map[int]int, len(pairs)*2)
	for _, dp := range pairs {
		aliasOf[dp.A.ID()] = dp.B.ID()
		aliasOf[dp.B.ID()] = dp.A.ID()
	}

	indent := "  "
	var closes []string
	if len(pairs) > 0 {
		fmt.Fprintf(buf, "%sif (", indent)
		for i, dp := range pairs {
			if i > 0 {
				buf.WriteString(" && ")
			}
			fmt.Fprintf(buf, "i_%d == i_%d", dp.A.ID(), dp.B.ID())
		}
		fmt.Fprintf(buf, ") {\n")
		closes = append(closes, indent+"}")
		indent += "  "
	}

	looped := make(map[int]bool, len(gamma.Indices)+len(merge.Indices))
	for _, ix := range gamma.Indices {
		if _, ok := aliasOf[ix.ID()]; ok {
			continue
		}
		fmt.Fprintf(buf, "%sfor (auto& i_%d : range_%s) {\n", indent, ix.ID(), ix.Space())
		closes = append(closes, indent+"}")
		indent += "  "
		looped[ix.ID()] = true
	}
	for _, ix := range merge.Indices {
		if partner, ok := aliasOf[ix.ID()]; ok {
			fmt.Fprintf(buf, "%sconst int i_%d = i_%d;\n", indent, ix.ID(), partner)
			continue
		}
		if looped[ix.ID()] {
			continue
		}
		fmt.Fprintf(buf, "%sfor (auto& i_%d : range_%s) {\n", indent, ix.ID(), ix.Space())
		closes = append(closes, indent+"}")
		indent += "  "
		looped[ix.ID()] = true
	}

	fmt.Fprintf(buf, "%sodata[i] += (%d.0/%d.0) * data[i] * fdata[i];\n", indent, p, q)

	for i := len(closes) - 1; i >= 0; i-- {
		fmt.Fprintf(buf, "%s\n", closes[i])
	}
}
