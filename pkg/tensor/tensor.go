// Package tensor implements the symbolic Tensor type: a labelled,
// index-carrying quantity with a scalar prefactor that appears as a factor
// in Diagrams and as the target of BinaryContractions.
package tensor

import (
	"fmt"
	"strings"

	"github.com/dshills/spingen/pkg/idx"
)

// Recognized structural tensor labels (spec §3).
const (
	LabelProj   = "proj"  // projection bra, structural
	LabelGamma  = "Gamma" // RDM, rank encoded as a numeric suffix (Gamma0, Gamma1, ...)
	LabelF1     = "f1"    // fixed one-body Hamiltonian tensor
	LabelH1     = "h1"    // fixed one-body Hamiltonian tensor
	LabelV2     = "v2"    // fixed two-body Hamiltonian tensor
	LabelT2     = "t2"    // cluster amplitude
	LabelR      = "r"     // residual amplitude
)

// Tensor is a symbolic tensor: a label, an ordered list of indices, a
// numeric prefactor, and an optional named scalar.
type Tensor struct {
	Label   string
	Factor  float64
	Indices []idx.Index
	Scalar  string
}

// New constructs a Tensor with factor 1 and no scalar name.
func New(label string, indices ...idx.Index) Tensor {
	return Tensor{Label: label, Factor: 1.0, Indices: append([]idx.Index(nil), indices...)}
}

// WithFactor returns a copy of t whose Factor is replaced by factor.
func (t Tensor) WithFactor(factor float64) Tensor {
	t2 := t.clone()
	t2.Factor = factor
	return t2
}

// WithScalar returns a copy of t carrying the given named scalar.
func (t Tensor) WithScalar(scalar string) Tensor {
	t2 := t.clone()
	t2.Scalar = scalar
	return t2
}

func (t Tensor) clone() Tensor {
	return Tensor{
		Label:   t.Label,
		Factor:  t.Factor,
		Indices: append([]idx.Index(nil), t.Indices...),
		Scalar:  t.Scalar,
	}
}

// IsProjection reports whether this tensor is the structural projection bra.
func (t Tensor) IsProjection() bool { return t.Label == LabelProj }

// IsGamma reports whether this tensor is an RDM of any rank.
func (t Tensor) IsGamma() bool { return strings.HasPrefix(t.Label, LabelGamma) }

// GammaRank returns the RDM rank encoded in a Gamma-labelled tensor's name
// (e.g. "Gamma2" -> 2), or -1 if this is not a Gamma tensor or carries no
// rank suffix. "Gamma0" yields rank 0; a tensor labelled "rdm0" is not a
// Gamma tensor and yields -1.
func (t Tensor) GammaRank() int {
	if !t.IsGamma() {
		return -1
	}
	suffix := strings.TrimPrefix(t.Label, LabelGamma)
	if suffix == "" {
		return len(t.Indices) / 2
	}
	n := 0
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return len(t.Indices) / 2
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Equal reports structural equality: same label, same indices (same ids and
// daggerness, in the same positions), and equal scalar name. Factor is not
// part of structural equality — Equation.Duplicates sums factors separately.
func (t Tensor) Equal(other Tensor) bool {
	if t.Label != other.Label || t.Scalar != other.Scalar {
		return false
	}
	if len(t.Indices) != len(other.Indices) {
		return false
	}
	for i := range t.Indices {
		if t.Indices[i].ID() != other.Indices[i].ID() || t.Indices[i].Dagger() != other.Indices[i].Dagger() {
			return false
		}
	}
	return true
}

// Signature returns a string uniquely identifying this tensor's
// (label, index-space, dagger) shape, ignoring concrete index ids. Used to
// sort diagrams' tensor lists into a canonical order before dummy-index
// renaming (spec §4.4 duplicates()).
func (t Tensor) Signature() string {
	var b strings.Builder
	b.WriteString(t.Label)
	if t.Scalar != "" {
		b.WriteString(":")
		b.WriteString(t.Scalar)
	}
	for _, i := range t.Indices {
		b.WriteString(" ")
		b.WriteString(i.Space().String())
		if i.Dagger() {
			b.WriteString("+")
		}
	}
	return b.String()
}

// String renders a Tensor for diagnostics, e.g. "v2(x0+ x1+ a2 a3)".
func (t Tensor) String() string {
	parts := make([]string, len(t.Indices))
	for i, ix := range t.Indices {
		parts[i] = ix.String()
	}
	name := t.Label
	if t.Scalar != "" {
		name = fmt.Sprintf("%s[%s]", t.Label, t.Scalar)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, " "))
}
