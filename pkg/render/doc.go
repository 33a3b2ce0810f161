// Package render draws a solver's constraint graph with Graphviz.
//
// # Overview
//
// [ToDOT] emits one node per variable, labeled with its tag and the move
// from desired to resolved position. Constraints become edges from left to
// right variable, styled by state:
//
//   - active: solid black
//   - inactive: dashed grey
//   - unsatisfiable: red
//   - equality: bold
//
// Variables merged into the same block are grouped in a dashed cluster, and
// neighbor pairs are drawn as dotted undirected edges.
//
// # Usage
//
//	dot := render.ToDOT(s, render.DefaultOptions())
//	svg, err := render.RenderSVG(ctx, dot)
//	png, err := render.RenderPNG(ctx, dot)
//
// # Dependencies
//
// Rendering uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process; no system Graphviz installation is needed.
package render
