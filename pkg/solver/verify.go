package solver

import (
	"math"

	"github.com/matzehuels/vpsc/pkg/errors"
)

// conservationTolerance is relative to the magnitude of the summed terms.
const conservationTolerance = 1e-7

// verifier holds the consistency checks enabled by Advanced.Verify. A nil
// verifier disables every check.
type verifier struct {
	generation uint64

	// magnitude of the terms rolled up by the current walk
	magnitude float64
}

// solveFault aborts a solve from deep inside the block machinery. Solve
// recovers it and returns the wrapped error.
type solveFault struct{ err error }

func fault(code errors.Code, format string, args ...any) {
	panic(solveFault{err: errors.New(code, format, args...)})
}

// begin starts a new walk and returns its generation marker.
func (vf *verifier) begin() uint64 {
	if vf == nil {
		return 0
	}
	vf.generation++
	vf.magnitude = 0
	return vf.generation
}

// visit marks c as reached by the walk with generation gen. Reaching the
// same constraint twice means the active constraints contain a cycle.
func (vf *verifier) visit(c *Constraint, gen uint64) {
	if vf == nil {
		return
	}
	if c.visited == gen {
		fault(errors.ErrCodeInternal, "cycle in active constraint tree at %v", c)
	}
	c.visited = gen
}

func (vf *verifier) account(v *Variable) {
	if vf == nil {
		return
	}
	vf.magnitude += math.Abs(2*v.weight*v.actualPos/v.scale) + math.Abs(2*v.weight*v.desiredPos/v.scale)
}

// conserved checks that the derivative rolled up to the root cancels out,
// which holds whenever the block sits at its least-squares optimum.
func (vf *verifier) conserved(rolledUp float64) {
	if vf == nil {
		return
	}
	if math.Abs(rolledUp) > conservationTolerance*vf.magnitude+1e-9 {
		fault(errors.ErrCodeInternal, "derivative not conserved: root lagrangian %g (magnitude %g)", rolledUp, vf.magnitude)
	}
}

// transferred checks that a split moved each variable exactly once.
func (vf *verifier) transferred(moved, removed int) {
	if vf == nil {
		return
	}
	if moved != removed {
		fault(errors.ErrCodeInternal, "split moved %d variables but removed %d", moved, removed)
	}
}
