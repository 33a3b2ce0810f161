package solver_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/vpsc/pkg/solver"
)

func Example() {
	s := solver.New()
	a, _ := s.AddVariable("a", 3, 1, 1)
	b, _ := s.AddVariable("b", 5, 1, 1)

	// b must not be to the right of a.
	if _, err := s.AddConstraint(b, a, 0, false); err != nil {
		panic(err)
	}

	sol, err := s.Solve(context.Background(), nil)
	if err != nil {
		panic(err)
	}
	fmt.Printf("a=%.1f b=%.1f unsatisfiable=%d\n", a.Position(), b.Position(), sol.NumberOfUnsatisfiableConstraints)
	// Output: a=4.0 b=4.0 unsatisfiable=0
}

func ExampleSolver_SetConstraintUpdate() {
	s := solver.New()
	left, _ := s.AddVariable("left", 0, 1, 1)
	right, _ := s.AddVariable("right", 0, 1, 1)
	c, _ := s.AddConstraint(left, right, 2, false)

	ctx := context.Background()
	if _, err := s.Solve(ctx, nil); err != nil {
		panic(err)
	}
	fmt.Printf("%.1f %.1f\n", left.Position(), right.Position())

	_ = s.SetConstraintUpdate(c, 6)
	if _, err := s.Solve(ctx, nil); err != nil {
		panic(err)
	}
	fmt.Printf("%.1f %.1f\n", left.Position(), right.Position())
	// Output:
	// -1.0 1.0
	// -3.0 3.0
}
