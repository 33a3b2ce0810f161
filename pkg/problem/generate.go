package problem

import (
	"fmt"
	"math/rand/v2"
)

// Chain returns n variables all desiring 0, each separated from the next by
// gap. The solved chain is centered on 0.
func Chain(n int, gap float64) *Problem {
	p := &Problem{Name: fmt.Sprintf("chain-%d", n)}
	for i := range n {
		p.Variables = append(p.Variables, Variable{ID: i})
		if i > 0 {
			p.Constraints = append(p.Constraints, Constraint{Left: i - 1, Right: i, Gap: gap})
		}
	}
	return p
}

// Random returns a reproducible problem with n variables and up to m
// constraints between distinct random pairs. Constraints always point from
// the lower id to the higher one, so the problem is satisfiable.
func Random(seed uint64, n, m int) *Problem {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	p := &Problem{Name: fmt.Sprintf("random-%d-%d-%d", seed, n, m)}
	for i := range n {
		p.Variables = append(p.Variables, Variable{
			ID:      i,
			Desired: rng.Float64() * float64(n) * 10,
			Weight:  1 + float64(rng.IntN(4)),
		})
	}
	if n < 2 {
		return p
	}

	type pair struct{ l, r int }
	seen := make(map[pair]bool, m)
	for range m {
		a, b := rng.IntN(n), rng.IntN(n)
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		if seen[pair{a, b}] {
			continue
		}
		seen[pair{a, b}] = true
		p.Constraints = append(p.Constraints, Constraint{
			Left:  a,
			Right: b,
			Gap:   float64(1 + rng.IntN(10)),
		})
	}
	return p
}
