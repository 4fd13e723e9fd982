package program

import (
	"context"
	"strings"
	"testing"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/equation"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/method"
	"github.com/dshills/spingen/pkg/tensor"
)

func TestGenerateSingleEquationProducesText(t *testing.T) {
	cfg, err := method.LoadConfigFromBytes([]byte("method: _CASPT2\n"))
	if err != nil {
		t.Fatalf("LoadConfigFromBytes: %v", err)
	}
	gen := NewGenerator(cfg, nil)

	v2 := tensor.New("v2", idx.New(0, idx.SpaceVirtual, true), idx.New(1, idx.SpaceVirtual, false))
	t2 := tensor.New("t2", idx.New(2, idx.SpaceVirtual, true), idx.New(3, idx.SpaceVirtual, false))
	eq := equation.New("residual", [][]tensor.Tensor{{v2}, {t2}}, 1.0, "", equation.Residual, false, false)

	text, err := gen.Generate(context.Background(), []*equation.Equation{eq})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(text, "class Task0") {
		t.Fatalf("expected class Task0 in emitted text, got:\n%s", text)
	}
}

func TestGenerateAbortsOnUnresolvedActive(t *testing.T) {
	cfg, err := method.LoadConfigFromBytes([]byte("method: _MRCI\n"))
	if err != nil {
		t.Fatalf("LoadConfigFromBytes: %v", err)
	}
	gen := NewGenerator(cfg, nil)

	x0 := idx.New(0, idx.SpaceActive, true)
	x1 := idx.New(1, idx.SpaceActive, true)
	x2 := idx.New(2, idx.SpaceActive, false)
	v2 := tensor.New("v2", x0, x1, x2)
	eq := &equation.Equation{Label: "bad", Type: equation.Residual}
	eq.Diagrams = append(eq.Diagrams, diagram.New("bad", v2))

	_, err = gen.Generate(context.Background(), []*equation.Equation{eq})
	if err == nil {
		t.Fatalf("expected error from unresolved active run, got nil")
	}
}
