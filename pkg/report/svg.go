package report

import (
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"

	"github.com/dshills/spingen/pkg/factor"
)

// TreeSVGOptions configures the factorization-tree diagnostic rendering.
type TreeSVGOptions struct {
	Width      int
	Height     int
	NodeRadius int
	RowHeight  int
}

// DefaultTreeSVGOptions returns sensible default rendering options.
func DefaultTreeSVGOptions() TreeSVGOptions {
	return TreeSVGOptions{Width: 1000, Height: 700, NodeRadius: 18, RowHeight: 80}
}

// DrawTree renders a BinaryContraction factorization Tree as an SVG
// diagram: one circle per Tree (labelled with its Target tensor), and one
// edge from each Tree to every subtree of its BinaryContractions — for human
// inspection of factorization output.
func DrawTree(w io.Writer, root *factor.Tree, opts TreeSVGOptions) error {
	if root == nil {
		return fmt.Errorf("report: nil tree")
	}
	if opts.Width <= 0 {
		opts.Width = 1000
	}
	if opts.Height <= 0 {
		opts.Height = 700
	}
	if opts.NodeRadius <= 0 {
		opts.NodeRadius = 18
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = 80
	}

	canvas := svg.New(w)
	canvas.Start(opts.Width, opts.Height)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:#1a1a2e")

	positions := make(map[*factor.Tree]point)
	nextCol := 0
	var layout func(t *factor.Tree, depth int)
	layout = func(t *factor.Tree, depth int) {
		hasChild := false
		for _, bc := range t.Children {
			for _, sub := range bc.Children {
				hasChild = true
				layout(sub, depth+1)
			}
		}
		myCol := nextCol
		if !hasChild {
			nextCol++
		}
		x := opts.NodeRadius*2 + myCol*opts.NodeRadius*4
		y := opts.NodeRadius*2 + depth*opts.RowHeight
		positions[t] = point{x, y}
	}
	layout(root, 0)

	for t, p := range positions {
		for _, bc := range t.Children {
			for _, sub := range bc.Children {
				if sp, ok := positions[sub]; ok {
					canvas.Line(p.x, p.y, sp.x, sp.y, "stroke:#4299e1;stroke-width:2")
				}
			}
		}
	}
	for t, p := range positions {
		canvas.Circle(p.x, p.y, opts.NodeRadius, "fill:#2d3748;stroke:#cbd5e0;stroke-width:1")
		canvas.Text(p.x, p.y+4, t.Target.Label, "text-anchor:middle;font-size:11px;fill:#e2e8f0")
	}

	canvas.End()
	return nil
}

type point struct{ x, y int }
