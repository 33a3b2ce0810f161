// Package solver implements a one-dimensional separation-constraint solver
// (variable placement with separation constraints, VPSC).
//
// # Overview
//
// Given scalar variables with a desired position and a weight, and
// separation constraints of the form
//
//	left·scale + gap <= right·scale      (inequality)
//	left·scale + gap == right·scale      (equality)
//
// the solver finds positions minimizing Σ w·(x − d)² while satisfying every
// constraint that can be satisfied. Soft "keep these two close" goals add
// Σ wᵢⱼ·(xᵢ − xⱼ)² to the objective and switch the solver to a gradient
// projection loop. The solver is used per axis by graph layout code to
// remove node overlaps and to enforce left/right and top/bottom ordering.
//
// # Basic Usage
//
// Register variables with [Solver.AddVariable], constraints with
// [Solver.AddConstraint] and optional goals with [Solver.AddNeighborPair],
// then call [Solver.Solve] and read back [Variable.Position]:
//
//	s := solver.New()
//	a, _ := s.AddVariable("a", 3, 1, 1)
//	b, _ := s.AddVariable("b", 5, 1, 1)
//	_, _ = s.AddConstraint(b, a, 0, false) // b + 0 <= a
//	sol, err := s.Solve(ctx, nil)
//	// a.Position() == b.Position() == 4
//
// # Algorithm
//
// Variables are grouped into blocks: maximal sets connected by active
// constraints, which move as a rigid unit. A block's reference position is
// the closed-form weighted least-squares optimum of its variables. The outer
// loop alternates two phases:
//
//   - Project repeatedly takes the most violated inactive constraint. If its
//     endpoints are in different blocks the smaller block is merged into the
//     larger one. If they already share a block, the block is expanded: the
//     forward edge with the smallest Lagrange multiplier on the tree path
//     between the endpoints is deactivated and the constraint takes its place.
//     A constraint with no such edge on its path closes a cycle and is marked
//     unsatisfiable for the rest of the solve.
//   - SplitBlocks computes Lagrange multipliers for every block and splits a
//     block at its most negative active constraint.
//
// Lagrange multipliers are computed by an iterative post-order walk of the
// block's spanning tree with an explicit stack of pooled frames, so chains of
// many thousands of variables do not grow the goroutine stack.
//
// # Limits and Cancellation
//
// Outer and inner iteration caps, a wall-clock limit and context
// cancellation are reported in the [Solution]. Outer limits, the time limit
// and cancellation are only checked between outer iterations, so the
// returned positions satisfy all non-unsatisfiable constraints. Hitting the
// inner iteration cap may leave one block infeasible.
//
// # Concurrency
//
// A Solver is not safe for concurrent use. Independent solvers share no
// state and may run in parallel.
package solver
