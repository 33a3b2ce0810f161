package render

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/vpsc/pkg/solver"
)

// Options configures DOT generation.
type Options struct {
	// Detailed adds weight, scale and constraint multipliers to labels.
	Detailed bool

	// Goals draws neighbor pairs as undirected dotted edges.
	Goals bool

	// Clusters groups the variables of each multi-variable block.
	Clusters bool
}

// DefaultOptions draws clusters and goals without detail.
func DefaultOptions() Options {
	return Options{Goals: true, Clusters: true}
}

// Edge colors by constraint state.
const (
	colorActive        = "black"
	colorInactive      = "grey50"
	colorUnsatisfiable = "red"
	colorGoal          = "steelblue"
)

// ToDOT writes the constraint graph of s as Graphviz DOT. Nodes are
// declared in position order and laid out left to right, so the picture
// reads like the solved positions.
func ToDOT(s *solver.Solver, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("\n")

	vars := slices.Clone(s.Variables())
	slices.SortStableFunc(vars, func(a, b *solver.Variable) int {
		return cmp.Compare(a.Position(), b.Position())
	})

	clustered := make(map[*solver.Variable]bool)
	if opts.Clusters {
		for i, b := range s.Blocks() {
			if len(b.Variables()) < 2 {
				continue
			}
			fmt.Fprintf(&buf, "  subgraph cluster_%d {\n", i)
			fmt.Fprintf(&buf, "    label=%q;\n", fmt.Sprintf("block %d @ %.4g", i, b.ReferencePos()))
			buf.WriteString("    style=\"rounded,dashed\";\n")
			buf.WriteString("    color=grey60;\n")
			for _, v := range vars {
				if s.BlockOf(v) != b {
					continue
				}
				clustered[v] = true
				fmt.Fprintf(&buf, "    %s;\n", nodeDecl(v, opts.Detailed))
			}
			buf.WriteString("  }\n")
		}
	}
	for _, v := range vars {
		if !clustered[v] {
			fmt.Fprintf(&buf, "  %s;\n", nodeDecl(v, opts.Detailed))
		}
	}

	buf.WriteString("\n")
	for _, c := range s.Constraints() {
		fmt.Fprintf(&buf, "  %s -> %s [%s];\n", nodeID(c.Left()), nodeID(c.Right()), strings.Join(edgeAttrs(c, opts.Detailed), ", "))
	}

	if opts.Goals {
		for _, v := range s.Variables() {
			for n, w := range v.Neighbors() {
				if n.Ordinal() < v.Ordinal() {
					continue
				}
				fmt.Fprintf(&buf, "  %s -> %s [dir=none, style=dotted, color=%s, constraint=false, label=%q];\n",
					nodeID(v), nodeID(n), colorGoal, fmt.Sprintf("w=%g", w))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(v *solver.Variable) string {
	return fmt.Sprintf("v%d", v.Ordinal())
}

func nodeDecl(v *solver.Variable, detailed bool) string {
	label := fmt.Sprintf("%v\n%.4g → %.4g", tagOf(v), v.DesiredPos(), v.Position())
	if detailed {
		label += fmt.Sprintf("\nw=%g s=%g", v.Weight(), v.Scale())
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if v.Weight() >= 1e6 {
		attrs = append(attrs, "fillcolor=lightgrey")
	}
	return fmt.Sprintf("%s [%s]", nodeID(v), strings.Join(attrs, ", "))
}

func tagOf(v *solver.Variable) any {
	if v.Tag() == nil {
		return v.Ordinal()
	}
	return v.Tag()
}

func edgeAttrs(c *solver.Constraint, detailed bool) []string {
	label := fmt.Sprintf("%.4g", c.Gap())
	if c.IsEquality() {
		label = "= " + label
	}
	if detailed && c.IsActive() {
		label += fmt.Sprintf("\nλ=%.4g", c.Lagrangian())
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}

	switch {
	case c.IsUnsatisfiable():
		attrs = append(attrs, "color="+colorUnsatisfiable, "fontcolor="+colorUnsatisfiable)
	case c.IsActive():
		attrs = append(attrs, "color="+colorActive)
	default:
		attrs = append(attrs, "color="+colorInactive, "style=dashed")
	}
	if c.IsEquality() {
		attrs = append(attrs, "penwidth=2.5")
	}
	return attrs
}
