// Command spingen is the thin front end described in spec §6: it loads a
// method-selector configuration, builds the equation set for that method,
// runs the full generation pipeline, and writes the emitted source to
// standard output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dshills/spingen/pkg/diagram"
	"github.com/dshills/spingen/pkg/equation"
	"github.com/dshills/spingen/pkg/genid"
	"github.com/dshills/spingen/pkg/idx"
	"github.com/dshills/spingen/pkg/method"
	"github.com/dshills/spingen/pkg/program"
	"github.com/dshills/spingen/pkg/report"
	"github.com/dshills/spingen/pkg/tensor"
)

const version = "1.0.0"

var (
	configPath = flag.String("config", "", "Path to YAML method-selector configuration file (required)")
	check      = flag.Bool("check", false, "Run spec invariant checks against the built equation set before emitting")
	verbose    = flag.Bool("verbose", false, "Enable verbose output on stderr")
	versionF   = flag.Bool("version", false, "Print version and exit")
	help       = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *versionF {
		fmt.Printf("spingen version %s\n", version)
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required")
		printUsage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if *verbose {
		fmt.Fprintf(os.Stderr, "Loading method configuration from %s\n", *configPath)
	}

	cfg, err := method.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Method: %s (fac2=%.1f)\n", cfg.Method, cfg.Fac2())
	}

	eqs := buildEquations(cfg)

	if *check {
		if !runChecks(eqs) {
			return fmt.Errorf("invariant checks failed, aborting before emission")
		}
	}

	gen := program.NewGenerator(cfg, nil)

	start := time.Now()
	text, err := gen.Generate(ctx, eqs)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	elapsed := time.Since(start)

	if *verbose {
		fmt.Fprintf(os.Stderr, "Generated %d equation(s) in %v\n", len(eqs), elapsed)
	}

	fmt.Print(text)
	return nil
}

// buildEquations constructs the residual equation set driven by the
// configured method: eq0 = Σ proj·f1·t2 over every 4-slot (c,x,a)
// operator-kind pattern admitted by the canonical CASPT2 residual filter
// (spec §8 scenario 3), one diagram per surviving pattern. This exercises
// every stage of the pipeline — contraction, active resolution through
// Gamma, factorization, emission — including the RDM path the all-virtual
// patterns never reach.
func buildEquations(cfg *method.Config) []*equation.Equation {
	treeType := cfg.DefaultTreeType()
	ids := genid.NewCounter()

	eq := &equation.Equation{Label: "residual", Factor: 1.0, Type: treeType}
	for i, pattern := range caspt2ResidualPatterns() {
		proj, f1, t2 := buildResidualDiagram(pattern, ids)
		eq.Diagrams = append(eq.Diagrams, diagram.New(fmt.Sprintf("residual_%d", i), proj, f1, t2))
	}
	return []*equation.Equation{eq}
}

// buildResidualDiagram builds one proj·f1·t2 summand for the given 4-slot
// operator-kind pattern: proj carries the pattern's four external indices in
// creation-creation-annihilation-annihilation order (spec §8 scenario 1's
// "(x†x†aa)" convention); t2 shares proj's first three indices directly
// (they are the same external variable, not Wick-contracted) and carries one
// fresh internal index that f1 dresses via Wick contraction against proj's
// fourth index.
func buildResidualDiagram(pattern [4]idx.Space, ids *genid.Counter) (proj, f1, t2 tensor.Tensor) {
	p0 := idx.New(ids.Next(), pattern[0], true)
	p1 := idx.New(ids.Next(), pattern[1], true)
	p2 := idx.New(ids.Next(), pattern[2], false)
	p3 := idx.New(ids.Next(), pattern[3], false)
	proj = tensor.New(tensor.LabelProj, p0, p1, p2, p3)

	k := idx.New(ids.Next(), idx.SpaceGeneral, false)
	kPrime := idx.New(ids.Next(), idx.SpaceGeneral, true)
	t2 = tensor.New(tensor.LabelT2, p0, p1, p2, k)
	f1 = tensor.New(tensor.LabelF1, kPrime, p3)
	return proj, f1, t2
}

// caspt2ResidualPatterns enumerates every 4-slot (c,x,a) operator-kind
// pattern admitted by passesCASPT2Filter, in a fixed deterministic order.
func caspt2ResidualPatterns() [][4]idx.Space {
	spaces := []idx.Space{idx.SpaceClosed, idx.SpaceActive, idx.SpaceVirtual}
	var out [][4]idx.Space
	for _, s0 := range spaces {
		for _, s1 := range spaces {
			for _, s2 := range spaces {
				for _, s3 := range spaces {
					p := [4]idx.Space{s0, s1, s2, s3}
					if passesCASPT2Filter(p) {
						out = append(out, p)
					}
				}
			}
		}
	}
	return out
}

// passesCASPT2Filter implements spec §8 scenario 3's canonical CASPT2
// residual filter over a 4-slot operator-kind pattern (slots 0,1 are the
// bra/creation positions, slots 2,3 the ket/annihilation positions): not all
// four slots active; no virtual in the two leftmost slots; no closed in the
// two rightmost slots; not closed-then-active in the last two slots; not
// virtual-then-active in the middle two slots.
func passesCASPT2Filter(s [4]idx.Space) bool {
	if s[0] == idx.SpaceActive && s[1] == idx.SpaceActive && s[2] == idx.SpaceActive && s[3] == idx.SpaceActive {
		return false
	}
	if s[0] == idx.SpaceVirtual || s[1] == idx.SpaceVirtual {
		return false
	}
	if s[2] == idx.SpaceClosed || s[3] == idx.SpaceClosed {
		return false
	}
	if s[2] == idx.SpaceClosed && s[3] == idx.SpaceActive {
		return false
	}
	if s[1] == idx.SpaceVirtual && s[2] == idx.SpaceActive {
		return false
	}
	return true
}

// runChecks runs the spec §8 invariant suite against every diagram in every
// input equation and reports the outcome on stderr, returning false if any
// check failed.
func runChecks(eqs []*equation.Equation) bool {
	ok := true
	for _, eq := range eqs {
		for _, f := range report.CheckInvariants(eq) {
			status := "PASS"
			if !f.Passed {
				status = "FAIL"
				ok = false
			}
			fmt.Fprintf(os.Stderr, "[%s] %s: %s (%s)\n", status, eq.Label, f.Name, f.Details)
		}
	}
	return ok
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage: spingen -config <method.yaml> [options]")
	fmt.Fprintln(os.Stderr, "\nRun 'spingen -help' for detailed help")
}

func printHelp() {
	fmt.Printf("spingen version %s\n\n", version)
	fmt.Println("Derives, simplifies, factorizes, and emits source for a spin-free")
	fmt.Println("multireference correlation method's residual equations.")
	fmt.Println("\nUsage:")
	fmt.Println("  spingen -config <method.yaml> [options]")
	fmt.Println("\nRequired Flags:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML method-selector configuration file")
	fmt.Println("\nOptional Flags:")
	fmt.Println("  -check")
	fmt.Println("        Run spec invariant checks before emitting")
	fmt.Println("  -verbose")
	fmt.Println("        Enable verbose output on stderr")
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println("\nConfiguration File:")
	fmt.Println("  method: one of _CASPT2, _CAS_A, _MULTI_DERIV, _MRCI, _RELCASPT2,")
	fmt.Println("          _RELCAS_A, _RELMRCI")
	fmt.Println("\nExamples:")
	fmt.Println("  spingen -config caspt2.yaml > residual.cc")
	fmt.Println("  spingen -config mrci.yaml -check -verbose > residual.cc")
}
