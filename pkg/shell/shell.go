// Package shell wraps a [solver.Solver] behind caller-chosen integer ids.
//
// Besides the id bookkeeping, a Shell supports fixed variables: variables
// that should not move at all. They are modeled with a very large weight.
// When the constraints force a fixed variable to move anyway, the Shell
// relaxes the active constraint gaps around it and solves again, so that
// fixed variables win over separation gaps.
package shell

import (
	"context"
	"math"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/vpsc/pkg/errors"
	"github.com/matzehuels/vpsc/pkg/solver"
)

const (
	// FixedVarWeight is the weight given to fixed variables.
	FixedVarWeight = 1e9

	// fixedMoveTolerance is how far a fixed variable may drift before the
	// constraints around it are relaxed.
	fixedMoveTolerance = 0.0005

	// failToAdjustEpsilon is the gap below which relaxing a constraint no
	// longer counts as progress.
	failToAdjustEpsilon = 0.001
)

// Shell maps integer ids to solver variables.
type Shell struct {
	// Logger receives debug output about fixed-variable adjustments.
	Logger *log.Logger

	solver   *solver.Solver
	vars     map[int]*solver.Variable
	fixed    map[int]float64
	solution solver.Solution
}

// New returns an empty Shell.
func New() *Shell {
	return &Shell{
		solver: solver.New(),
		vars:   make(map[int]*solver.Variable),
		fixed:  make(map[int]float64),
	}
}

// Solver returns the underlying solver.
func (sh *Shell) Solver() *solver.Solver { return sh.solver }

// AddVariable adds a variable with the given id, desired position and weight.
func (sh *Shell) AddVariable(id int, position, weight float64) error {
	return sh.AddScaledVariable(id, position, weight, 1)
}

// AddScaledVariable is AddVariable with an explicit scale.
func (sh *Shell) AddScaledVariable(id int, position, weight, scale float64) error {
	if _, ok := sh.vars[id]; ok {
		return errors.New(errors.ErrCodeDuplicateVariable, "variable %d already exists", id)
	}
	v, err := sh.solver.AddVariable(id, position, weight, scale)
	if err != nil {
		return err
	}
	sh.vars[id] = v
	return nil
}

// AddFixedVariable adds a variable that should stay at position.
func (sh *Shell) AddFixedVariable(id int, position float64) error {
	if err := sh.AddVariable(id, position, FixedVarWeight); err != nil {
		return err
	}
	sh.fixed[id] = position
	return nil
}

// AddConstraint requires left + gap <= right, or equality.
func (sh *Shell) AddConstraint(left, right int, gap float64, isEquality bool) error {
	l, err := sh.variable(left)
	if err != nil {
		return err
	}
	r, err := sh.variable(right)
	if err != nil {
		return err
	}
	_, err = sh.solver.AddConstraint(l, r, gap, isEquality)
	return err
}

// AddGoal adds the soft goal weight·(a - b)².
func (sh *Shell) AddGoal(a, b int, weight float64) error {
	va, err := sh.variable(a)
	if err != nil {
		return err
	}
	vb, err := sh.variable(b)
	if err != nil {
		return err
	}
	return sh.solver.AddNeighborPair(va, vb, weight)
}

// Contains reports whether id was added.
func (sh *Shell) Contains(id int) bool {
	_, ok := sh.vars[id]
	return ok
}

// IsFixed reports whether id was added with AddFixedVariable.
func (sh *Shell) IsFixed(id int) bool {
	_, ok := sh.fixed[id]
	return ok
}

// IDs returns all variable ids in ascending order.
func (sh *Shell) IDs() []int {
	ids := make([]int, 0, len(sh.vars))
	for id := range sh.vars {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Position returns the resolved position of id.
func (sh *Shell) Position(id int) (float64, error) {
	v, err := sh.variable(id)
	if err != nil {
		return 0, err
	}
	return v.Position(), nil
}

// DesiredPosition returns the desired position of id.
func (sh *Shell) DesiredPosition(id int) (float64, error) {
	v, err := sh.variable(id)
	if err != nil {
		return 0, err
	}
	return v.DesiredPos(), nil
}

// Solution returns the solution of the most recent Solve.
func (sh *Shell) Solution() solver.Solution { return sh.solution }

// Solve runs the solver until no fixed variable has moved, relaxing the
// constraints around moved fixed variables between runs. It stops early
// when a limit is exceeded or when relaxing makes no further progress.
func (sh *Shell) Solve(ctx context.Context, params *solver.Parameters) (solver.Solution, error) {
	for rounds := 1; ; rounds++ {
		sol, err := sh.solver.Solve(ctx, params)
		sh.solution = sol
		if err != nil {
			return sol, err
		}
		if sol.ExecutionLimitExceeded() || sol.Canceled {
			return sol, nil
		}
		if !sh.adjustConstraintsForMovedFixedVars() {
			if sh.Logger != nil && rounds > 1 {
				sh.Logger.Debug("fixed variables settled", "rounds", rounds)
			}
			return sol, nil
		}
	}
}

// adjustConstraintsForMovedFixedVars relaxes constraints around every fixed
// variable that moved. It reports whether another solve is worthwhile.
func (sh *Shell) adjustConstraintsForMovedFixedVars() bool {
	var moved []int
	for id, pos := range sh.fixed {
		if math.Abs(pos-sh.vars[id].Position()) >= fixedMoveTolerance {
			moved = append(moved, id)
		}
	}
	if len(moved) == 0 {
		return false
	}
	slices.Sort(moved)

	for len(moved) > 0 {
		block := sh.solver.BlockOf(sh.vars[moved[0]])
		if block == nil || !sh.relaxBlock(block) {
			return false
		}
		moved = slices.DeleteFunc(moved, func(id int) bool {
			return slices.Contains(block.Variables(), sh.vars[id])
		})
	}
	return true
}

// relaxBlock divides the gaps of the block's active constraints by the
// ratio of the fixed variables' current span to their ideal span. It
// reports whether any gap was still large enough to make a difference.
func (sh *Shell) relaxBlock(b *solver.Block) bool {
	var cur, ideal span
	scale := 1.0
	for _, v := range b.Variables() {
		if id, ok := v.Tag().(int); !ok || !sh.IsFixed(id) {
			continue
		}
		cur.add(v.Position())
		ideal.add(v.DesiredPos())
		if ideal.length() > 0 {
			scale = max(scale, cur.length()/ideal.length())
		}
	}
	if scale == 1 {
		scale = 2
	}

	progress := false
	for _, v := range b.Variables() {
		for _, c := range v.LeftConstraints() {
			if !c.IsActive() {
				continue
			}
			if c.Gap() > failToAdjustEpsilon {
				progress = true
			}
			if err := sh.solver.SetConstraintUpdate(c, c.Gap()/scale); err != nil {
				return false
			}
		}
	}
	if sh.Logger != nil {
		sh.Logger.Debug("relaxed constraints around fixed variables", "block", b, "scale", scale, "progress", progress)
	}
	return progress
}

func (sh *Shell) variable(id int) (*solver.Variable, error) {
	v, ok := sh.vars[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownVariable, "unknown variable %d", id)
	}
	return v, nil
}

// span is the extent of a set of values.
type span struct {
	lo, hi float64
	init   bool
}

func (s *span) add(x float64) {
	if !s.init {
		s.lo, s.hi, s.init = x, x, true
		return
	}
	s.lo = min(s.lo, x)
	s.hi = max(s.hi, x)
}

func (s *span) length() float64 {
	if !s.init {
		return 0
	}
	return s.hi - s.lo
}
