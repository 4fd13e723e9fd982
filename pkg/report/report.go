// Package report exercises the testable properties of spec §8 as a
// reusable library pass, not just test code, so both the test suite and the
// CLI -check flag can run it.
package report

import (
	"fmt"

	"github.com/dshills/spingen/pkg/codegen"
	"github.com/dshills/spingen/pkg/equation"
)

// Finding is one invariant check's outcome.
type Finding struct {
	Name    string
	Passed  bool
	Details string
}

func pass(name, details string) Finding { return Finding{Name: name, Passed: true, Details: details} }
func fail(name, details string) Finding { return Finding{Name: name, Passed: false, Details: details} }

// CheckInvariants runs every applicable spec §8 invariant against eq and
// returns one Finding per check. It never mutates eq: every check runs
// against a private copy.
func CheckInvariants(eq *equation.Equation) []Finding {
	var findings []Finding
	findings = append(findings, checkDiagramClosure(eq))
	findings = append(findings, checkDuplicatesIdempotent(eq))
	findings = append(findings, checkPrefacRoundTrip(eq))
	return findings
}

// checkDiagramClosure verifies every diagram in eq satisfies the
// contraction-closure invariant (spec §4.4, Diagram.Validate).
func checkDiagramClosure(eq *equation.Equation) Finding {
	for i, d := range eq.Diagrams {
		if err := d.Validate(); err != nil {
			return fail("diagram-closure", fmt.Sprintf("diagram %d: %v", i, err))
		}
	}
	return pass("diagram-closure", fmt.Sprintf("%d diagrams closed", len(eq.Diagrams)))
}

// checkDuplicatesIdempotent verifies that running Duplicates twice on a copy
// of eq's diagram list leaves it unchanged (spec §8).
func checkDuplicatesIdempotent(eq *equation.Equation) Finding {
	clone := &equation.Equation{Label: eq.Label, Factor: eq.Factor, Type: eq.Type, Bra: eq.Bra, Ket: eq.Ket}
	clone.Diagrams = append(clone.Diagrams, eq.Diagrams...)

	clone.Duplicates()
	first := len(clone.Diagrams)
	firstKeys := make([]string, first)
	for i, d := range clone.Diagrams {
		firstKeys[i] = d.Key()
	}

	clone.Duplicates()
	if len(clone.Diagrams) != first {
		return fail("duplicates-idempotent", fmt.Sprintf("diagram count changed on second pass: %d -> %d", first, len(clone.Diagrams)))
	}
	for i, d := range clone.Diagrams {
		if d.Key() != firstKeys[i] {
			return fail("duplicates-idempotent", fmt.Sprintf("diagram %d changed shape on second pass", i))
		}
	}
	return pass("duplicates-idempotent", fmt.Sprintf("%d diagrams stable across two passes", first))
}

// checkPrefacRoundTrip verifies every diagram's net coefficient admits a p/q
// approximation within the emitter's threshold (spec §8).
func checkPrefacRoundTrip(eq *equation.Equation) Finding {
	for i, d := range eq.Diagrams {
		f := d.Coefficient()
		p, q, err := codegen.Prefac(f)
		if err != nil {
			return fail("prefac-round-trip", fmt.Sprintf("diagram %d: %v", i, err))
		}
		got := float64(p) / float64(q)
		if diff := got - f; diff > 1e-9 || diff < -1e-9 {
			return fail("prefac-round-trip", fmt.Sprintf("diagram %d: %d/%d = %v, want %v", i, p, q, got, f))
		}
	}
	return pass("prefac-round-trip", fmt.Sprintf("%d diagrams round-trip", len(eq.Diagrams)))
}
