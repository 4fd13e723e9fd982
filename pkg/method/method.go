// Package method implements the method selector (spec §6 Configuration): a
// YAML-backed Config naming which of the seven supported multireference
// methods a generation run targets, plus the numeric/symbol choices that
// follow from it (fac2, BLAS symbol pair, target-tensor naming).
package method

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/spingen/pkg/codegen"
	"github.com/dshills/spingen/pkg/equation"
)

// ErrUnknownMethod is returned when a config names a method outside the
// seven recognized variants.
var ErrUnknownMethod = errors.New("method: unrecognized method name")

// Name enumerates the supported method variants (spec §6).
type Name string

const (
	CASPT2     Name = "_CASPT2"
	CASA       Name = "_CAS_A"
	MultiDeriv Name = "_MULTI_DERIV"
	MRCI       Name = "_MRCI"
	RelCASPT2  Name = "_RELCASPT2"
	RelCASA    Name = "_RELCAS_A"
	RelMRCI    Name = "_RELMRCI"
)

// allNames lists every recognized method, used by Validate and LoadConfig.
var allNames = []Name{CASPT2, CASA, MultiDeriv, MRCI, RelCASPT2, RelCASA, RelMRCI}

// relativistic reports whether this method's integrals and amplitudes are
// complex-valued, driving both fac2 and the BLAS symbol-pair choice.
func (n Name) relativistic() bool {
	switch n {
	case RelCASPT2, RelCASA, RelMRCI:
		return true
	default:
		return false
	}
}

// Validate reports ErrUnknownMethod if n is not one of the seven supported
// variants.
func (n Name) Validate() error {
	for _, m := range allNames {
		if m == n {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownMethod, string(n))
}

// Config is the method-selector configuration loaded from YAML (spec §6).
type Config struct {
	Method  Name   `yaml:"method"`
	Verbose bool   `yaml:"verbose,omitempty"`
	Output  string `yaml:"output,omitempty"`
}

// Validate checks the configuration's method name.
func (c *Config) Validate() error {
	if err := c.Method.Validate(); err != nil {
		return fmt.Errorf("method: %w", err)
	}
	return nil
}

// LoadConfig reads and validates a YAML method-selector configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses and validates YAML configuration from a byte
// slice, useful for tests and programmatic config construction.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}

// Fac2 returns the scalar doubling factor used when accumulating symmetric
// contributions: 2.0 for real (non-relativistic) methods, 1.0 for
// relativistic (complex) methods, which already carry the conjugate partner
// explicitly (spec §6).
func (c *Config) Fac2() float64 {
	if c.Method.relativistic() {
		return 1.0
	}
	return 2.0
}

// Complex reports which BLAS symbol pair (codegen.Real/codegen.ImagRel) this
// method's emitted compute bodies should call.
func (c *Config) Complex() codegen.Complex {
	if c.Method.relativistic() {
		return codegen.ImagRel
	}
	return codegen.Real
}

// DefaultTreeType returns the TreeType a bare equation targets under this
// method when the caller does not specify one explicitly — _MULTI_DERIV
// defaults to Dedci; every other method defaults to Residual (spec §4.7,
// §6).
func (c *Config) DefaultTreeType() equation.TreeType {
	if c.Method == MultiDeriv {
		return equation.Dedci
	}
	return equation.Residual
}
