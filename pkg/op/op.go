// Package op implements the second-quantized operator algebra: ordered
// sequences of creation/annihilation slot pairs, their sign-tracked
// permutations (Permute), and the two-slot swap sign (SignOfSwap).
package op

import "github.com/dshills/spingen/pkg/idx"

// DaggerKind classifies one operator slot.
type DaggerKind int

const (
	Annihilation DaggerKind = iota
	Creation
	ContractedLeft
	ContractedRight
)

// String renders a DaggerKind for diagnostics.
func (k DaggerKind) String() string {
	switch k {
	case Annihilation:
		return "a"
	case Creation:
		return "c"
	case ContractedLeft:
		return "cl"
	case ContractedRight:
		return "cr"
	default:
		return "?"
	}
}

// Slot is one elementary creation/annihilation operator over a single index.
type Slot struct {
	Index idx.Index
	Kind  DaggerKind
	Rho   int
}

// Active reports whether this slot's index lives in the active subspace.
func (s Slot) Active() bool { return s.Index.Active() }

// Pair is one permutable two-body unit: a creation/annihilation pair of
// slots that moves together when Permute reorders the operator (grounded in
// the original Ex::permute, which reorders the operator two slots at a
// time).
type Pair struct {
	First, Second Slot
}

// activity returns how many of the pair's two slots are active: 0, 1, or 2.
func (p Pair) activity() int {
	n := 0
	if p.First.Active() {
		n++
	}
	if p.Second.Active() {
		n++
	}
	return n
}

// Operator is an ordered sequence of operator pairs together with the
// lexicographic permutation state used by Permute.
type Operator struct {
	pairs []Pair
	perm  []int
}

// New builds an Operator over the given pairs, in the order supplied.
func New(pairs []Pair) *Operator {
	perm := make([]int, len(pairs))
	for i := range perm {
		perm[i] = i
	}
	return &Operator{pairs: append([]Pair(nil), pairs...), perm: perm}
}

// Pairs returns the operator's current pair ordering.
func (o *Operator) Pairs() []Pair { return append([]Pair(nil), o.pairs...) }

// NumActiveDagger counts creation slots over active indices.
func (o *Operator) NumActiveDagger() int {
	n := 0
	for _, p := range o.pairs {
		for _, s := range [2]Slot{p.First, p.Second} {
			if s.Kind == Creation && s.Active() {
				n++
			}
		}
	}
	return n
}

// NumActiveNoDagger counts annihilation slots over active indices.
func (o *Operator) NumActiveNoDagger() int {
	n := 0
	for _, p := range o.pairs {
		for _, s := range [2]Slot{p.First, p.Second} {
			if s.Kind == Annihilation && s.Active() {
				n++
			}
		}
	}
	return n
}

// Permute advances the operator to its lexicographically next permutation
// and reports whether a next permutation existed plus the fermion sign
// incurred by the rearrangement.
//
// It refuses to permute — returning (false, +1) without altering the
// operator — when project is false, or when the operator holds both active
// creation slots and active annihilation slots (such a permutation would
// change the expression's value; see spec §4.1).
//
// Sign rule (spec §4.1, §9): for each position whose activity count (0, 1,
// or 2 active slots in that pair) is exactly one, count the positions to its
// left — in the ORIGINAL ordering — that also have activity count one and
// whose new position is greater than the position under consideration.
// Parity of the total determines the sign. This is the inversion count
// among exactly-one-active pairs induced by the permutation.
func (o *Operator) Permute(project bool) (more bool, sign int) {
	if !project || (o.NumActiveNoDagger() > 0 && o.NumActiveDagger() > 0) {
		return false, 1
	}

	size := len(o.pairs)
	if size < 2 {
		return false, 1
	}

	prev := append([]int(nil), o.perm...)
	more = nextPermutation(o.perm)

	mapArr := make([]int, size) // mapArr[i]: new position of the pair originally at i
	imap := make([]int, size)   // imap[j]: original position of the pair now at j
	for i := 0; i < size; i++ {
		ii := prev[i]
		for j := 0; j < size; j++ {
			if o.perm[j] == ii {
				mapArr[i] = j
				imap[j] = i
				break
			}
		}
	}

	act := make([]int, size)
	for i, p := range o.pairs {
		act[i] = p.activity()
	}

	f := 0
	for i := 0; i < size; i++ {
		oi := imap[i]
		if act[oi] != 1 {
			continue
		}
		for j := 0; j < oi; j++ {
			if i < mapArr[j] {
				f += act[j]
			}
		}
	}
	sign = 1
	if f%2 != 0 {
		sign = -1
	}

	newPairs := make([]Pair, size)
	for i, p := range o.pairs {
		newPairs[mapArr[i]] = p
	}
	o.pairs = newPairs

	return more, sign
}

// nextPermutation mutates a in place into its lexicographically next
// permutation, exactly matching the semantics of C++'s std::next_permutation:
// it returns false (after resetting a to ascending order) when a was already
// the last permutation.
func nextPermutation(a []int) bool {
	n := len(a)
	if n < 2 {
		return false
	}
	i := n - 2
	for i >= 0 && a[i] >= a[i+1] {
		i--
	}
	if i < 0 {
		reverse(a, 0, n-1)
		return false
	}
	j := n - 1
	for a[j] <= a[i] {
		j--
	}
	a[i], a[j] = a[j], a[i]
	reverse(a, i+1, n-1)
	return true
}

func reverse(a []int, i, j int) {
	for i < j {
		a[i], a[j] = a[j], a[i]
		i++
		j--
	}
}

// SignOfSwap implements the elementary two-slot invariant from spec §3: a
// permutation of a two-body operator may flip sign only when exactly one of
// the swapped positions is active. Given a slot sequence and the two
// positions being transposed, it returns the resulting sign (+1 or -1).
func SignOfSwap(slots []Slot, i, j int) int {
	if i == j {
		return 1
	}
	ai, aj := slots[i].Active(), slots[j].Active()
	if ai != aj {
		return -1
	}
	return 1
}
