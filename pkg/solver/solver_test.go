package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/vpsc/pkg/errors"
)

const posTolerance = 1e-4

type testConstraint struct {
	left, right int
	gap         float64
	equality    bool
}

func lt(l, r int, gap float64) testConstraint { return testConstraint{left: l, right: r, gap: gap} }
func eq(l, r int, gap float64) testConstraint {
	return testConstraint{left: l, right: r, gap: gap, equality: true}
}

func verifyParams() *Parameters {
	p := DefaultParameters()
	p.Advanced.Verify = true
	return &p
}

func build(t *testing.T, desired []float64, cons []testConstraint) (*Solver, []*Variable, []*Constraint) {
	t.Helper()
	s := New()
	vars := make([]*Variable, len(desired))
	for i, d := range desired {
		v, err := s.AddVariable(i, d, 1, 1)
		require.NoError(t, err)
		vars[i] = v
	}
	out := make([]*Constraint, len(cons))
	for i, c := range cons {
		con, err := s.AddConstraint(vars[c.left], vars[c.right], c.gap, c.equality)
		require.NoError(t, err)
		out[i] = con
	}
	return s, vars, out
}

func positions(vars []*Variable) []float64 {
	out := make([]float64, len(vars))
	for i, v := range vars {
		out[i] = v.Position()
	}
	return out
}

func assertPositions(t *testing.T, want []float64, vars []*Variable) {
	t.Helper()
	require.Len(t, vars, len(want))
	for i, w := range want {
		assert.InDelta(t, w, vars[i].Position(), posTolerance, "variable %d", i)
	}
}

// assertFeasible checks every satisfiable constraint against the tolerance.
func assertFeasible(t *testing.T, s *Solver) {
	t.Helper()
	for _, c := range s.Constraints() {
		if c.IsUnsatisfiable() {
			continue
		}
		if c.IsEquality() {
			assert.InDelta(t, 0, c.Violation(), 1e-3, "equality %v", c)
		} else {
			assert.LessOrEqual(t, c.Violation(), 1e-3, "constraint %v", c)
		}
	}
}

func TestSolve_Regressions(t *testing.T) {
	tests := []struct {
		name          string
		desired       []float64
		constraints   []testConstraint
		want          []float64
		unsatisfiable int
	}{
		{
			name:        "five variables with shared right",
			desired:     []float64{2, 9, 9, 9, 2},
			constraints: []testConstraint{lt(0, 4, 3), lt(0, 1, 3), lt(1, 2, 3), lt(2, 4, 3), lt(3, 4, 3)},
			want:        []float64{1.4, 4.4, 7.4, 7.4, 10.4},
		},
		{
			name:        "five variables with free middle",
			desired:     []float64{4, 6, 9, 2, 5},
			constraints: []testConstraint{lt(0, 2, 3), lt(0, 3, 3), lt(1, 4, 3), lt(2, 4, 3), lt(2, 3, 3), lt(3, 4, 3)},
			want:        []float64{0.5, 6, 3.5, 6.5, 9.5},
		},
		{
			name:        "five variables with free left",
			desired:     []float64{5, 6, 7, 4, 3},
			constraints: []testConstraint{lt(0, 4, 3), lt(1, 2, 3), lt(2, 3, 3), lt(2, 4, 3), lt(3, 4, 3)},
			want:        []float64{5, 0.5, 3.5, 6.5, 9.5},
		},
		{
			name:        "five variables in one block",
			desired:     []float64{7, 1, 6, 0, 2},
			constraints: []testConstraint{lt(0, 3, 3), lt(0, 1, 3), lt(1, 4, 3), lt(2, 4, 3), lt(2, 3, 3), lt(3, 4, 3)},
			want:        []float64{0.8, 3.8, 0.8, 3.8, 6.8},
		},
		{
			name:        "equality push",
			desired:     []float64{2, 9, 16.5, 16.5, 2},
			constraints: []testConstraint{lt(0, 4, 3), lt(0, 1, 3), lt(1, 2, 3), eq(2, 3, 10), lt(2, 4, 3), lt(3, 4, 3)},
			want:        []float64{0.4, 3.4, 6.4, 16.4, 19.4},
		},
		{
			name:        "equality pull",
			desired:     []float64{2, 9, 9, 24, 2},
			constraints: []testConstraint{lt(0, 4, 3), lt(0, 1, 3), lt(1, 2, 3), eq(2, 3, 10), lt(2, 4, 3), lt(3, 4, 3)},
			want:        []float64{0.4, 3.4, 6.4, 16.4, 19.4},
		},
		{
			name:          "contradictory pair",
			desired:       []float64{1, 2},
			constraints:   []testConstraint{lt(0, 1, 2), lt(1, 0, 3)},
			want:          []float64{3, 0},
			unsatisfiable: 1,
		},
		{
			name:          "equality conflicts with inequality",
			desired:       []float64{1, 2},
			constraints:   []testConstraint{eq(0, 1, 0), lt(0, 1, 4)},
			want:          []float64{1.5, 1.5},
			unsatisfiable: 1,
		},
		{
			name:          "equality cycle",
			desired:       []float64{1, 2, 3},
			constraints:   []testConstraint{eq(0, 1, 4), eq(1, 2, 4), eq(0, 2, 10)},
			want:          []float64{-2, 2, 6},
			unsatisfiable: 1,
		},
		{
			name:        "zero gap splits the difference",
			desired:     []float64{3, 5},
			constraints: []testConstraint{lt(1, 0, 0)},
			want:        []float64{4, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, vars, _ := build(t, tt.desired, tt.constraints)
			sol, err := s.Solve(context.Background(), verifyParams())
			require.NoError(t, err)

			assertPositions(t, tt.want, vars)
			assert.Equal(t, tt.unsatisfiable, sol.NumberOfUnsatisfiableConstraints)
			assert.False(t, sol.ExecutionLimitExceeded())
			assert.Equal(t, ProjectOnly, sol.AlgorithmUsed)
			assertFeasible(t, s)
		})
	}
}

func TestSolve_UnsatisfiableFlag(t *testing.T) {
	s, _, cons := build(t, []float64{1, 2}, []testConstraint{lt(0, 1, 2), lt(1, 0, 3)})
	_, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)

	// The larger violation is resolved first, which leaves the other
	// constraint closing a cycle.
	assert.True(t, cons[0].IsUnsatisfiable())
	assert.False(t, cons[1].IsUnsatisfiable())
	assert.True(t, cons[1].IsActive())
}

func TestSolve_GoalFunctionValue(t *testing.T) {
	s, _, _ := build(t, []float64{3, 5}, []testConstraint{lt(1, 0, 0)})
	sol, err := s.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, -32.0, sol.GoalFunctionValue, 1e-9)
}

func TestSolve_NoConstraints(t *testing.T) {
	s, vars, _ := build(t, []float64{3, -1, 7}, nil)
	sol, err := s.Solve(context.Background(), nil)
	require.NoError(t, err)

	assertPositions(t, []float64{3, -1, 7}, vars)
	assert.Zero(t, sol.OuterProjectIterations)
	assert.Zero(t, sol.MinInnerProjectIterations)
}

func TestSolve_Chain(t *testing.T) {
	for _, n := range []int{2, 3, 10, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			desired := make([]float64, n)
			var cons []testConstraint
			for i := 0; i+1 < n; i++ {
				cons = append(cons, lt(i, i+1, 1))
			}
			s, vars, _ := build(t, desired, cons)
			sol, err := s.Solve(context.Background(), verifyParams())
			require.NoError(t, err)

			// All at 0 pulls the chain symmetrically around the origin.
			first := -float64(n-1) / 2
			for i, v := range vars {
				assert.InDelta(t, first+float64(i), v.Position(), posTolerance)
			}
			assert.Zero(t, sol.NumberOfUnsatisfiableConstraints)
			assert.Len(t, s.Blocks(), 1)
		})
	}
}

func TestSolve_Idempotent(t *testing.T) {
	s, vars, _ := build(t, []float64{2, 9, 9, 9, 2},
		[]testConstraint{lt(0, 4, 3), lt(0, 1, 3), lt(1, 2, 3), lt(2, 4, 3), lt(3, 4, 3)})
	_, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)
	first := positions(vars)

	sol, err := s.Solve(context.Background(), nil)
	require.NoError(t, err)
	assertPositions(t, first, vars)
	assert.False(t, sol.ExecutionLimitExceeded())
}

func TestSolve_ConstraintUpdate(t *testing.T) {
	desired := []float64{0, 0, 0}
	cons := []testConstraint{lt(0, 1, 2), lt(1, 2, 2)}

	tests := []struct {
		name   string
		update int
		gap    float64
	}{
		{"grow active gap", 0, 6},
		{"shrink active gap", 1, 0.5},
		{"negative gap", 0, -4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, vars, constraints := build(t, desired, cons)
			_, err := s.Solve(context.Background(), verifyParams())
			require.NoError(t, err)

			require.NoError(t, s.SetConstraintUpdate(constraints[tt.update], tt.gap))
			_, err = s.Solve(context.Background(), nil)
			require.NoError(t, err)

			fresh := append([]testConstraint(nil), cons...)
			fresh[tt.update].gap = tt.gap
			want := solveFresh(t, desired, fresh)
			assertPositions(t, want, vars)
			assert.InDelta(t, tt.gap, constraints[tt.update].Gap(), 0)
		})
	}
}

func TestSolve_RegapMovesDownstream(t *testing.T) {
	s := New()
	weights := []float64{1e6, 1, 1, 1}
	vars := make([]*Variable, len(weights))
	for i, w := range weights {
		v, err := s.AddVariable(i, 0, w, 1)
		require.NoError(t, err)
		vars[i] = v
	}
	var cons []*Constraint
	for i, gap := range []float64{2, 2, 1} {
		c, err := s.AddConstraint(vars[i], vars[i+1], gap, false)
		require.NoError(t, err)
		cons = append(cons, c)
	}

	_, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)
	require.True(t, cons[1].IsActive())
	before := positions(vars)

	require.NoError(t, s.SetConstraintUpdate(cons[1], 5))
	_, err = s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)
	after := positions(vars)

	for i := range 2 {
		assert.InDelta(t, before[i], after[i], 1e-3, "upstream variable %d moved", i)
	}
	for i := 2; i < 4; i++ {
		assert.InDelta(t, before[i]+3, after[i], 1e-3, "downstream variable %d", i)
	}
	for i := 1; i < len(after); i++ {
		assert.Less(t, after[i-1], after[i], "order of %d and %d", i-1, i)
	}
	assert.InDelta(t, before[3]-before[2], after[3]-after[2], posTolerance)
}

func TestSolve_EqualityConstraintUpdate(t *testing.T) {
	desired := []float64{0, 0, 0}
	cons := []testConstraint{eq(0, 1, 2), lt(1, 2, 2)}
	s, vars, constraints := build(t, desired, cons)
	_, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)

	require.NoError(t, s.SetConstraintUpdate(constraints[0], 5))
	_, err = s.Solve(context.Background(), nil)
	require.NoError(t, err)

	assertPositions(t, solveFresh(t, desired, []testConstraint{eq(0, 1, 5), lt(1, 2, 2)}), vars)
	assert.InDelta(t, 5, vars[1].Position()-vars[0].Position(), posTolerance)
}

func solveFresh(t *testing.T, desired []float64, cons []testConstraint) []float64 {
	t.Helper()
	s, vars, _ := build(t, desired, cons)
	_, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)
	return positions(vars)
}

func TestSolve_DesiredPositionUpdate(t *testing.T) {
	s, vars, _ := build(t, []float64{0, 0}, []testConstraint{lt(0, 1, 2)})
	_, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)
	assertPositions(t, []float64{-1, 1}, vars)

	vars[0].SetDesiredPos(10)
	vars[1].SetDesiredPos(-10)
	_, err = s.Solve(context.Background(), nil)
	require.NoError(t, err)
	assertPositions(t, []float64{-1, 1}, vars)

	vars[0].SetDesiredPos(-10)
	vars[1].SetDesiredPos(10)
	_, err = s.Solve(context.Background(), nil)
	require.NoError(t, err)
	assertPositions(t, []float64{-10, 10}, vars)
}

func TestSolve_SpanGrowsWithGap(t *testing.T) {
	desired := []float64{0, 1, 2, 3}
	span := func(gap float64) float64 {
		pos := solveFresh(t, desired, []testConstraint{lt(0, 1, gap), lt(1, 2, gap), lt(2, 3, gap)})
		return pos[3] - pos[0]
	}
	prev := span(0)
	for _, gap := range []float64{0.5, 1, 2, 4, 8} {
		cur := span(gap)
		assert.GreaterOrEqual(t, cur+posTolerance, prev, "gap %g", gap)
		prev = cur
	}
}

// displacement is Σ w·(x - d)² over vars at positions x.
func displacement(vars []*Variable, x []float64) float64 {
	var f float64
	for i, v := range vars {
		d := x[i] - v.DesiredPos()
		f += v.Weight() * d * d
	}
	return f
}

// greedyLayout pushes each variable right of its left neighbors, visiting
// variables in index order. Every constraint must point from a lower to a
// higher index.
func greedyLayout(desired []float64, cons []testConstraint) []float64 {
	x := append([]float64(nil), desired...)
	for j := range x {
		for _, c := range cons {
			if c.right == j {
				x[j] = math.Max(x[j], x[c.left]+c.gap)
			}
		}
	}
	return x
}

func TestSolve_ObjectiveBeatsFeasibleLayouts(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, 7))
			n := 8
			desired := make([]float64, n)
			for i := range desired {
				desired[i] = rng.Float64() * 10
			}
			desired[0], desired[n-1] = 10, 0
			cons := []testConstraint{lt(0, n-1, 1)}
			for range 10 {
				l, r := rng.IntN(n), rng.IntN(n)
				if l == r {
					continue
				}
				cons = append(cons, lt(min(l, r), max(l, r), rng.Float64()*3))
			}

			s, vars, _ := build(t, desired, cons)
			sol, err := s.Solve(context.Background(), verifyParams())
			require.NoError(t, err)
			require.Zero(t, sol.NumberOfUnsatisfiableConstraints)
			assertFeasible(t, s)

			solved := positions(vars)
			got := displacement(vars, solved)
			assert.Greater(t, got, 0.0, "the desired layout violates 0 + 1 <= %d", n-1)

			var constant float64
			for _, d := range desired {
				constant += d * d
			}
			assert.InDelta(t, got, sol.GoalFunctionValue+constant, 1e-6*max(1, got))

			assert.LessOrEqual(t, got, displacement(vars, greedyLayout(desired, cons))+1e-3)
			for _, delta := range []float64{-0.5, -0.01, 0.01, 0.5} {
				shifted := make([]float64, n)
				for i, x := range solved {
					shifted[i] = x + delta
				}
				assert.LessOrEqual(t, got, displacement(vars, shifted)+1e-6, "shift %g", delta)
			}
		})
	}
}

func TestSolve_ScaleInvariance(t *testing.T) {
	desired := []float64{2, 9, 9, 9, 2}
	cons := []testConstraint{lt(0, 4, 3), lt(0, 1, 3), lt(1, 2, 3), lt(2, 4, 3), lt(3, 4, 3)}
	base := solveFresh(t, desired, cons)

	for _, k := range []float64{0.5, 2, 10} {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			s := New()
			vars := make([]*Variable, len(desired))
			for i, d := range desired {
				v, err := s.AddVariable(i, d, 1, k)
				require.NoError(t, err)
				vars[i] = v
			}
			for _, c := range cons {
				_, err := s.AddConstraint(vars[c.left], vars[c.right], c.gap*k, false)
				require.NoError(t, err)
			}
			_, err := s.Solve(context.Background(), verifyParams())
			require.NoError(t, err)

			// Scaled coordinates are the base solution scaled by k.
			for i, v := range vars {
				assert.InDelta(t, base[i]*k, v.Position()*v.Scale(), posTolerance*k)
			}

			// Scaling desired positions and gaps together scales the result.
			scaled := make([]float64, len(desired))
			for i, d := range desired {
				scaled[i] = d * k
			}
			scaledCons := make([]testConstraint, len(cons))
			for i, c := range cons {
				scaledCons[i] = lt(c.left, c.right, c.gap*k)
			}
			got := solveFresh(t, scaled, scaledCons)
			for i := range got {
				assert.InDelta(t, base[i]*k, got[i], posTolerance*k)
			}
		})
	}
}

func TestSolve_Weights(t *testing.T) {
	s := New()
	heavy, err := s.AddVariable("heavy", 0, 3, 1)
	require.NoError(t, err)
	light, err := s.AddVariable("light", 0, 1, 1)
	require.NoError(t, err)
	_, err = s.AddConstraint(heavy, light, 4, false)
	require.NoError(t, err)

	_, err = s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)
	assert.InDelta(t, -1, heavy.Position(), posTolerance)
	assert.InDelta(t, 3, light.Position(), posTolerance)
}

func TestSolve_QpscZeroGradient(t *testing.T) {
	s := New()
	desired := []float64{236.5, 255.58133348304591, 102.68749237060547}
	weights := []float64{2, 2, 1e8}
	vars := make([]*Variable, 3)
	for i := range desired {
		v, err := s.AddVariable(i, desired[i], weights[i], 1)
		require.NoError(t, err)
		vars[i] = v
	}
	_, err := s.AddConstraint(vars[2], vars[0], 1, false)
	require.NoError(t, err)
	require.NoError(t, s.AddNeighborPair(vars[0], vars[1], 1))

	sol, err := s.Solve(context.Background(), verifyParams())
	require.NoError(t, err)

	assert.Equal(t, QpscWithScaling, sol.AlgorithmUsed)
	assert.InDelta(t, 241.27033, vars[0].Position(), 1e-3)
	assert.InDelta(t, 250.81100, vars[1].Position(), 1e-3)
	assert.InDelta(t, 102.68749, vars[2].Position(), 1e-3)

	// Weights, scales and desired positions are restored afterwards.
	for i, v := range vars {
		assert.Equal(t, weights[i], v.Weight())
		assert.Equal(t, 1.0, v.Scale())
		assert.Equal(t, desired[i], v.DesiredPos())
	}
}

func TestSolve_QpscNeighborsPullTogether(t *testing.T) {
	for _, scale := range []bool{true, false} {
		t.Run(fmt.Sprintf("scale=%v", scale), func(t *testing.T) {
			s := New()
			a, err := s.AddVariable("a", 0, 1, 1)
			require.NoError(t, err)
			b, err := s.AddVariable("b", 30, 1, 1)
			require.NoError(t, err)
			c, err := s.AddVariable("c", 20, 1, 1)
			require.NoError(t, err)
			_, err = s.AddConstraint(a, b, 4, false)
			require.NoError(t, err)
			require.NoError(t, s.AddNeighborPair(a, c, 1))

			p := verifyParams()
			p.Advanced.ScaleInQpsc = scale
			sol, err := s.Solve(context.Background(), p)
			require.NoError(t, err)

			want := QpscWithoutScaling
			if scale {
				want = QpscWithScaling
			}
			assert.Equal(t, want, sol.AlgorithmUsed)
			// a and c attract each other; b is far enough away to stay put.
			assert.InDelta(t, 20.0/3, a.Position(), 1e-2)
			assert.InDelta(t, 40.0/3, c.Position(), 1e-2)
			assert.InDelta(t, 30, b.Position(), 1e-2)
		})
	}
}

func TestSolve_ForceQpscMatchesProject(t *testing.T) {
	desired := []float64{2, 9, 9, 9, 2}
	cons := []testConstraint{lt(0, 4, 3), lt(0, 1, 3), lt(1, 2, 3), lt(2, 4, 3), lt(3, 4, 3)}
	want := solveFresh(t, desired, cons)

	s, vars, _ := build(t, desired, cons)
	p := verifyParams()
	p.Advanced.ForceQpsc = true
	sol, err := s.Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, QpscWithScaling, sol.AlgorithmUsed)
	for i, v := range vars {
		assert.InDelta(t, want[i], v.Position(), 1e-2)
	}
	assertFeasible(t, s)
}

func TestSolve_Limits(t *testing.T) {
	desired := make([]float64, 20)
	var cons []testConstraint
	for i := 0; i+1 < len(desired); i++ {
		cons = append(cons, lt(i, i+1, 1))
	}

	t.Run("outer", func(t *testing.T) {
		s, _, _ := build(t, desired, cons)
		p := verifyParams()
		p.OuterProjectIterationsLimit = 1
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, sol.OuterProjectIterationsLimitExceeded)
		assert.True(t, sol.ExecutionLimitExceeded())
		assert.Equal(t, 1, sol.OuterProjectIterations)
		assertFeasible(t, s)
	})

	t.Run("inner", func(t *testing.T) {
		s, _, _ := build(t, desired, cons)
		p := verifyParams()
		p.InnerProjectIterationsLimit = 1
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, sol.InnerProjectIterationsLimitExceeded)
		assert.Equal(t, 1, sol.MaxInnerProjectIterations)
	})

	t.Run("unbounded", func(t *testing.T) {
		s, _, _ := build(t, desired, cons)
		p := verifyParams()
		p.OuterProjectIterationsLimit = 0
		p.InnerProjectIterationsLimit = 0
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, sol.ExecutionLimitExceeded())
		assertFeasible(t, s)
	})

	t.Run("canceled", func(t *testing.T) {
		s, _, _ := build(t, desired, cons)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sol, err := s.Solve(ctx, verifyParams())
		require.NoError(t, err)
		assert.True(t, sol.Canceled)
		assert.Equal(t, 1, sol.OuterProjectIterations)
		assertFeasible(t, s)
	})
}

func TestAutoLimit(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 100},
		{1, 100},
		{2, 200},
		{3, 200},
		{1024, 1100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, autoLimit(tt.n), "n=%d", tt.n)
	}
}

func TestRegistrationErrors(t *testing.T) {
	s := New()
	a, err := s.AddVariable("a", 0, 1, 1)
	require.NoError(t, err)
	b, err := s.AddVariable("b", 0, 1, 1)
	require.NoError(t, err)
	foreign, err := New().AddVariable("x", 0, 1, 1)
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		code errors.Code
	}{
		{"zero weight", func() error { _, err := s.AddVariable("w", 0, 0, 1); return err }, errors.ErrCodeInvalidWeight},
		{"infinite weight", func() error { _, err := s.AddVariable("w", 0, math.Inf(1), 1); return err }, errors.ErrCodeInvalidWeight},
		{"negative scale", func() error { _, err := s.AddVariable("s", 0, 1, -1); return err }, errors.ErrCodeInvalidScale},
		{"NaN desired", func() error { _, err := s.AddVariable("d", math.NaN(), 1, 1); return err }, errors.ErrCodeNonFinite},
		{"self constraint", func() error { _, err := s.AddConstraint(a, a, 1, false); return err }, errors.ErrCodeSelfConstraint},
		{"infinite gap", func() error { _, err := s.AddConstraint(a, b, math.Inf(1), false); return err }, errors.ErrCodeNonFinite},
		{"foreign variable", func() error { _, err := s.AddConstraint(a, foreign, 1, false); return err }, errors.ErrCodeUnknownVariable},
		{"nil variable", func() error { _, err := s.AddConstraint(nil, b, 1, false); return err }, errors.ErrCodeUnknownVariable},
		{"self neighbor", func() error { return s.AddNeighborPair(a, a, 1) }, errors.ErrCodeSelfConstraint},
		{"NaN neighbor weight", func() error { return s.AddNeighborPair(a, b, math.NaN()) }, errors.ErrCodeInvalidWeight},
		{"negative neighbor weight", func() error { return s.AddNeighborPair(a, b, -1) }, errors.ErrCodeInvalidWeight},
		{"nil update", func() error { return s.SetConstraintUpdate(nil, 1) }, errors.ErrCodeUnknownVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.True(t, errors.IsConfiguration(err))
		})
	}
}

func TestRegistrationAfterSolve(t *testing.T) {
	s, vars, _ := build(t, []float64{0, 1}, []testConstraint{lt(0, 1, 1)})
	_, err := s.Solve(context.Background(), nil)
	require.NoError(t, err)

	_, err = s.AddVariable("late", 0, 1, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeSolveStarted))
	_, err = s.AddConstraint(vars[1], vars[0], 1, false)
	assert.True(t, errors.Is(err, errors.ErrCodeSolveStarted))
	assert.True(t, errors.Is(s.AddNeighborPair(vars[0], vars[1], 1), errors.ErrCodeSolveStarted))
}

func TestAddConstraint_SamePair(t *testing.T) {
	t.Run("inequalities are kept apart", func(t *testing.T) {
		s, vars, cons := build(t, []float64{0, 0}, []testConstraint{lt(0, 1, 2), lt(0, 1, 5), lt(0, 1, 1)})
		assert.NotSame(t, cons[0], cons[1])
		assert.NotSame(t, cons[1], cons[2])
		assert.Equal(t, 2.0, cons[0].Gap())
		assert.Equal(t, 3, s.ConstraintCount())

		sol, err := s.Solve(context.Background(), verifyParams())
		require.NoError(t, err)
		assert.Zero(t, sol.NumberOfUnsatisfiableConstraints)
		assertPositions(t, []float64{-2.5, 2.5}, vars)
		assertFeasible(t, s)
	})

	t.Run("inequality before conflicting equality", func(t *testing.T) {
		s, vars, cons := build(t, []float64{-2, 2}, []testConstraint{lt(0, 1, 4), eq(0, 1, 0)})
		require.NotSame(t, cons[0], cons[1])
		assert.False(t, cons[0].IsEquality())
		assert.True(t, cons[1].IsEquality())
		assert.Equal(t, 2, s.ConstraintCount())

		sol, err := s.Solve(context.Background(), verifyParams())
		require.NoError(t, err)
		assert.Equal(t, 1, sol.NumberOfUnsatisfiableConstraints)
		assert.True(t, cons[0].IsUnsatisfiable())
		assert.False(t, cons[1].IsUnsatisfiable())
		assert.InDelta(t, vars[0].Position(), vars[1].Position(), posTolerance)
	})
}

func TestSetConstraintUpdate_SameGapIgnored(t *testing.T) {
	s, _, cons := build(t, []float64{0, 0}, []testConstraint{lt(0, 1, 2)})
	require.NoError(t, s.SetConstraintUpdate(cons[0], 2))
	assert.Empty(t, s.updates)
	require.NoError(t, s.SetConstraintUpdate(cons[0], 3))
	assert.Len(t, s.updates, 1)
}

func TestSolve_InvalidParameters(t *testing.T) {
	s, _, _ := build(t, []float64{0, 0}, []testConstraint{lt(0, 1, 2)})
	p := DefaultParameters()
	p.GapTolerance = 0
	_, err := s.Solve(context.Background(), &p)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidParameters))

	// A rejected call does not close registration.
	_, err = s.AddVariable("still open", 0, 1, 1)
	assert.NoError(t, err)
}

func TestSolve_Overflow(t *testing.T) {
	s := New()
	a, err := s.AddVariable("a", math.MaxFloat64, math.MaxFloat64, 1)
	require.NoError(t, err)
	b, err := s.AddVariable("b", -math.MaxFloat64, math.MaxFloat64, 1)
	require.NoError(t, err)
	_, err = s.AddConstraint(a, b, 1, false)
	require.NoError(t, err)

	_, err = s.Solve(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeOverflow))
}

func TestSolve_ViolationCache(t *testing.T) {
	// Enough variables for the cache to switch on, in a pattern that keeps
	// many blocks alive.
	const n = 400
	desired := make([]float64, n)
	var cons []testConstraint
	for i := 0; i < n; i++ {
		desired[i] = float64((i * 37) % 101)
		if i+1 < n && i%4 != 3 {
			cons = append(cons, lt(i, i+1, 2))
		}
		if i+8 < n {
			cons = append(cons, lt(i, i+8, 1))
		}
	}

	solve := func(useCache bool) []float64 {
		s, vars, _ := build(t, desired, cons)
		p := verifyParams()
		p.Advanced.UseViolationCache = useCache
		p.OuterProjectIterationsLimit = 0
		p.InnerProjectIterationsLimit = 0
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, sol.ExecutionLimitExceeded())
		assertFeasible(t, s)
		return positions(vars)
	}

	with, without := solve(true), solve(false)
	for i := range with {
		assert.InDelta(t, without[i], with[i], 1e-3, "variable %d", i)
	}
}
