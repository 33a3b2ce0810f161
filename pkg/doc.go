// Package pkg provides the core libraries for vpsc, a solver for
// one-dimensional separation constraint problems.
//
// # Overview
//
// Given variables with desired positions and weights, and constraints of the
// form left + gap <= right (or ==), vpsc finds positions that satisfy every
// constraint while minimizing the weighted squared distance to the desired
// positions. Goal terms can additionally pull pairs of variables together.
//
// The typical data flow:
//
//	problem file (JSON, TOML, YAML)
//	         ↓
//	    [problem] package (decode, validate, hash)
//	         ↓
//	    [shell] package (caller ids, fixed variables)
//	         ↓
//	    [solver] package (block projection, gradient projection)
//	         ↓
//	    [problem.Result] or [render] constraint graph
//
// # Quick Start
//
//	sh := shell.New()
//	_ = sh.AddVariable(1, 0, 1)
//	_ = sh.AddVariable(2, 0, 1)
//	_ = sh.AddConstraint(1, 2, 10, false)
//	if _, err := sh.Solve(ctx, nil); err != nil {
//	    return err
//	}
//	x1, _ := sh.Position(1) // -5
//	x2, _ := sh.Position(2) // 5
//
// # Main Packages
//
// [solver] - The constraint solver. Variables are merged into blocks joined
// by active constraints; each block is placed at the weighted mean of its
// members' desired positions. Problems with goal terms are solved by
// gradient projection on top of the block projection.
//
// [shell] - Integer-id facade over the solver with fixed variables. When a
// fixed variable is pushed away from its position the constraints around it
// are relaxed and the problem re-solved.
//
// [problem] - Serializable problems and results in three encodings, with
// content hashing for caching and generators for benchmarks.
//
// [render] - Constraint graph drawing with Graphviz.
//
// ## Infrastructure
//
// [pipeline] - Cached solve, batch and graph stages shared by the CLI and
// the HTTP server.
//
// [cache] - Cache backends: file, Redis, MongoDB and a no-op cache.
//
// [observability] - Hooks for solve, cache and HTTP events;
// [observability/prom] implements them with Prometheus metrics.
//
// [errors] - Coded errors shared by all packages.
//
// [buildinfo] - Version information stamped in at build time.
//
// # Testing
//
//	go test ./...          # All tests
//	go test ./pkg/solver/  # Specific package
//	go test -run Example   # Examples only
package pkg
