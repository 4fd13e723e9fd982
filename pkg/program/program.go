// Package program orchestrates the full pipeline from a built Equation list
// to emitted source text: Wick contraction, ket absorption, RDM resolution,
// deduplication, ListTensor flattening, binary-contraction factorization,
// and code emission (spec §4, §6 "equation.generate()").
package program

import (
	"context"
	"fmt"

	"github.com/dshills/spingen/pkg/codegen"
	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/equation"
	"github.com/dshills/spingen/pkg/factor"
	"github.com/dshills/spingen/pkg/genid"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/listtensor"
	"github.com/dshills/spingen/pkg/method"
	"github.com/dshills/spingen/pkg/tensor"
	"github.com/dshills/spingen/pkg/wick"
)

// Generator turns a built Equation list into emitted source text.
// Implementations must be deterministic: the same Equation list and method
// configuration produce byte-identical output (spec §5).
type Generator interface {
	// Generate runs the full pipeline over eqs and returns the concatenated
	// emitted text, or the first error encountered (no partial output, per
	// spec §7).
	Generate(ctx context.Context, eqs []*equation.Equation) (string, error)
}

// DefaultGenerator is the standard pipeline implementation.
type DefaultGenerator struct {
	cfg *method.Config
	ids *genid.Counter
	ci  *idx.Index // set when the run targets a Dedci tree type
}

// NewGenerator builds a Generator for the given method configuration. ci, if
// non-nil, is the CI-derivative index absorbed into ket-projected equations
// (spec §4.4); callers targeting Dedci equations must supply one.
func NewGenerator(cfg *method.Config, ci *idx.Index) Generator {
	return &DefaultGenerator{cfg: cfg, ids: genid.NewCounter(), ci: ci}
}

// Generate runs each equation through contraction, resolution, deduplication,
// factorization, and emission in turn, concatenating their emitted text in
// input order.
func (g *DefaultGenerator) Generate(ctx context.Context, eqs []*equation.Equation) (string, error) {
	var out string
	for _, eq := range eqs {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := g.generateOne(eq)
		if err != nil {
			return "", fmt.Errorf("equation %s: %w", eq.Label, err)
		}
		out += text
	}
	return out, nil
}

func (g *DefaultGenerator) generateOne(eq *equation.Equation) (string, error) {
	contracted := &equation.Equation{Label: eq.Label, Factor: eq.Factor, Type: eq.Type, Bra: eq.Bra, Ket: eq.Ket}
	for _, d := range eq.Diagrams {
		contracted.Diagrams = append(contracted.Diagrams, wick.Contract(d)...)
	}

	if g.ci != nil {
		contracted.AbsorbKet(*g.ci)
	}

	if err := contracted.Active(); err != nil {
		return "", err
	}
	contracted.Duplicates()

	target := tensor.New(eq.Type.TargetLabel())
	listTensors := make([]listtensor.ListTensor, 0, len(contracted.Diagrams))
	for _, d := range contracted.Diagrams {
		lt := listtensor.FromDiagram(d, target).AbsorbAllInternal()
		if !lt.Empty() {
			listTensors = append(listTensors, lt)
		}
	}

	root := factor.BuildRoot(target, listTensors, g.ids)
	root.Factorize()
	root.SetParentSub()

	emitter := codegen.New(g.cfg.Complex())
	gammaDeltas := collectGammaDeltas(contracted.Diagrams)
	gammaFactors := collectGammaFactors(contracted.Diagrams)
	return emitter.Emit(root, eq.Type, eq.Label, gammaDeltas, gammaFactors)
}

// collectGammaDeltas indexes each diagram's delta-pairs by the signature of
// any Gamma tensor it carries, so the RDM summation emitter (spec §4.8) can
// recover δ-branch guards that were already consumed into Deltas by the time
// ListTensors are built.
func collectGammaDeltas(diagrams []diagram.Diagram) map[string][]diagram.DeltaPair {
	out := make(map[string][]diagram.DeltaPair)
	for _, d := range diagrams {
		if len(d.Deltas) == 0 {
			continue
		}
		for _, t := range d.Tensors {
			if t.IsGamma() {
				out[t.Signature()] = append(out[t.Signature()], d.Deltas...)
			}
		}
	}
	return out
}

// collectGammaFactors indexes each diagram's net scalar coefficient by the
// signature of any Gamma tensor it carries, so the RDM summation emitter can
// rationalize it into the p/q pair the emitted summation call carries (spec
// §4.7, §4.8).
func collectGammaFactors(diagrams []diagram.Diagram) map[string]float64 {
	out := make(map[string]float64)
	for _, d := range diagrams {
		coeff := d.Coefficient()
		for _, t := range d.Tensors {
			if t.IsGamma() {
				out[t.Signature()] = coeff
			}
		}
	}
	return out
}
