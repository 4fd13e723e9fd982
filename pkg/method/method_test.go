package method

import (
	"errors"
	"testing"

	"github.com/dshills/spingen/pkg/codegen"
	"github.com/dshills/spingen/pkg/equation"
)

func TestLoadConfigValid(t *testing.T) {
	cfg, err := LoadConfigFromBytes([]byte("method: _CASPT2\n"))
	if err != nil {
		t.Fatalf("LoadConfigFromBytes: %v", err)
	}
	if cfg.Method != CASPT2 {
		t.Fatalf("expected _CASPT2, got %v", cfg.Method)
	}
	if cfg.Fac2() != 2.0 {
		t.Fatalf("expected fac2 2.0 for CASPT2, got %v", cfg.Fac2())
	}
	if cfg.Complex() != codegen.Real {
		t.Fatalf("expected real BLAS pair for CASPT2")
	}
}

func TestLoadConfigRelativistic(t *testing.T) {
	cfg, err := LoadConfigFromBytes([]byte("method: _RELMRCI\n"))
	if err != nil {
		t.Fatalf("LoadConfigFromBytes: %v", err)
	}
	if cfg.Fac2() != 1.0 {
		t.Fatalf("expected fac2 1.0 for _RELMRCI, got %v", cfg.Fac2())
	}
	if cfg.Complex() != codegen.ImagRel {
		t.Fatalf("expected complex BLAS pair for _RELMRCI")
	}
}

func TestLoadConfigUnknownMethod(t *testing.T) {
	_, err := LoadConfigFromBytes([]byte("method: _BOGUS\n"))
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestDefaultTreeType(t *testing.T) {
	multi, _ := LoadConfigFromBytes([]byte("method: _MULTI_DERIV\n"))
	if multi.DefaultTreeType() != equation.Dedci {
		t.Fatalf("expected Dedci default for _MULTI_DERIV, got %v", multi.DefaultTreeType())
	}
	mrci, _ := LoadConfigFromBytes([]byte("method: _MRCI\n"))
	if mrci.DefaultTreeType() != equation.Residual {
		t.Fatalf("expected Residual default for _MRCI, got %v", mrci.DefaultTreeType())
	}
}

func TestAllSevenMethodsValidate(t *testing.T) {
	for _, n := range allNames {
		if err := n.Validate(); err != nil {
			t.Fatalf("Validate(%v): %v", n, err)
		}
	}
}
