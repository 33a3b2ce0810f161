package solver

import (
	"context"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/vpsc/pkg/errors"
)

// Solver resolves separation constraints between variables while staying as
// close as possible to each variable's desired position.
//
// Register variables first, then constraints and neighbor pairs, then call
// Solve. A Solver must not be used from more than one goroutine at a time.
type Solver struct {
	// Logger receives debug summaries of each solve. Nil disables logging.
	Logger *log.Logger

	ws     workspace
	params Parameters

	vars                []*Variable
	numberOfConstraints int
	equalityConstraints []*Constraint
	updates             []constraintUpdate
	hasNeighborPairs    bool

	// solved is set by the first Solve and closes registration.
	solved bool

	cache        violationCache
	cacheCutoff  int
	lastModified *Block

	ctx      context.Context
	deadline time.Time
	solution Solution
}

type constraintUpdate struct {
	c   *Constraint
	gap float64
}

// New returns an empty solver using [DefaultParameters].
func New() *Solver {
	s := &Solver{params: DefaultParameters()}
	s.ws.params = &s.params
	s.cacheCutoff = math.MaxInt
	return s
}

// IsQpsc reports whether Solve will use gradient projection.
func (s *Solver) IsQpsc() bool {
	return s.hasNeighborPairs || s.params.Advanced.ForceQpsc
}

// Variables returns the registered variables in ordinal order.
func (s *Solver) Variables() []*Variable { return s.vars }

// VariableCount returns the number of registered variables.
func (s *Solver) VariableCount() int { return len(s.vars) }

// ConstraintCount returns the number of distinct constraints.
func (s *Solver) ConstraintCount() int { return s.numberOfConstraints }

// Constraints returns every constraint, grouped by left variable in ordinal
// order and in registration order within each group.
func (s *Solver) Constraints() []*Constraint {
	out := make([]*Constraint, 0, s.numberOfConstraints)
	for _, v := range s.vars {
		out = append(out, v.leftConstraints...)
	}
	return out
}

// Blocks returns the current blocks. The result is only meaningful after
// Solve and is invalidated by the next call to Solve.
func (s *Solver) Blocks() []*Block {
	out := make([]*Block, len(s.ws.blocks.live))
	copy(out, s.ws.blocks.live)
	return out
}

// BlockOf returns the block currently holding v.
func (s *Solver) BlockOf(v *Variable) *Block {
	if s.checkOwned(v) != nil || v.block == noBlock {
		return nil
	}
	return s.ws.blocks.get(v.block)
}

// AddVariable registers a variable. weight and scale must be positive and
// finite. tag is an arbitrary caller value returned by [Variable.Tag].
func (s *Solver) AddVariable(tag any, desired, weight, scale float64) (*Variable, error) {
	if s.solved {
		return nil, errors.New(errors.ErrCodeSolveStarted, "cannot add variables after solving has started")
	}
	if err := errors.ValidateFinite("desired position", desired); err != nil {
		return nil, err
	}
	if err := errors.ValidateWeight("variable", weight); err != nil {
		return nil, err
	}
	if err := errors.ValidateScale(scale); err != nil {
		return nil, err
	}

	v := &Variable{
		tag:        tag,
		ordinal:    len(s.vars),
		desiredPos: desired,
		weight:     weight,
		scale:      scale,
		actualPos:  desired,
		block:      noBlock,
	}
	s.vars = append(s.vars, v)

	b := s.ws.blocks.alloc(&s.ws)
	b.addVariable(v)
	s.ws.blocks.add(b)
	return v, nil
}

// AddConstraint registers left·scale + gap <= right·scale, or equality.
// Every call creates a new constraint, even for a pair that is already
// constrained; conflicting pairs are reported as unsatisfiable by Solve.
func (s *Solver) AddConstraint(left, right *Variable, gap float64, isEquality bool) (*Constraint, error) {
	if s.solved {
		return nil, errors.New(errors.ErrCodeSolveStarted, "cannot add constraints after solving has started")
	}
	if err := s.checkOwned(left, right); err != nil {
		return nil, err
	}
	if left == right {
		return nil, errors.New(errors.ErrCodeSelfConstraint, "cannot constrain variable %v to itself", left.tag)
	}
	if err := errors.ValidateFinite("constraint gap", gap); err != nil {
		return nil, err
	}

	c := &Constraint{left: left, right: right, gap: gap, isEquality: isEquality}
	left.leftConstraints = append(left.leftConstraints, c)
	right.rightConstraints = append(right.rightConstraints, c)
	s.numberOfConstraints++
	if isEquality {
		s.equalityConstraints = append(s.equalityConstraints, c)
	}
	return c, nil
}

// AddNeighborPair adds the soft goal weight·(a - b)² to the goal function.
// Any neighbor pair switches Solve to gradient projection.
func (s *Solver) AddNeighborPair(a, b *Variable, weight float64) error {
	if s.solved {
		return errors.New(errors.ErrCodeSolveStarted, "cannot add neighbor pairs after solving has started")
	}
	if err := s.checkOwned(a, b); err != nil {
		return err
	}
	if err := errors.ValidateWeight("neighbor", weight); err != nil {
		return err
	}
	if a == b {
		return errors.New(errors.ErrCodeSelfConstraint, "cannot make variable %v a neighbor of itself", a.tag)
	}
	a.neighbors = append(a.neighbors, neighbor{v: b, weight: weight})
	b.neighbors = append(b.neighbors, neighbor{v: a, weight: weight})
	s.hasNeighborPairs = true
	return nil
}

// SetConstraintUpdate schedules a new gap for c. It takes effect at the
// next Solve; an unchanged gap is ignored.
func (s *Solver) SetConstraintUpdate(c *Constraint, gap float64) error {
	if c == nil || s.checkOwned(c.left, c.right) != nil {
		return errors.New(errors.ErrCodeUnknownVariable, "constraint does not belong to this solver")
	}
	if err := errors.ValidateFinite("constraint gap", gap); err != nil {
		return err
	}
	if gap != c.gap {
		s.updates = append(s.updates, constraintUpdate{c: c, gap: gap})
	}
	return nil
}

// UpdateVariables repositions every block after desired positions were
// changed with [Variable.SetDesiredPos].
func (s *Solver) UpdateVariables() {
	for _, b := range s.ws.blocks.live {
		b.updateReferencePos()
	}
}

func (s *Solver) checkOwned(vars ...*Variable) error {
	for _, v := range vars {
		if v == nil || v.ordinal >= len(s.vars) || s.vars[v.ordinal] != v {
			return errors.New(errors.ErrCodeUnknownVariable, "variable does not belong to this solver")
		}
	}
	return nil
}

// Solve moves every variable as close as possible to its desired position
// while satisfying the constraints. A nil params keeps the parameters of
// the previous call (initially [DefaultParameters]).
//
// Unsatisfiable constraints and exceeded limits are reported in the
// Solution, not as errors. An error is returned for invalid parameters, for
// numeric overflow, and for failed internal checks when Advanced.Verify is
// set; the solver must not be reused after such an error.
func (s *Solver) Solve(ctx context.Context, params *Parameters) (sol Solution, err error) {
	if params != nil {
		if err := params.Validate(); err != nil {
			return Solution{}, err
		}
		s.params = *params
	}
	if s.params.OuterProjectIterationsLimit < 0 {
		s.params.OuterProjectIterationsLimit = autoLimit(len(s.vars))
	}
	if s.params.InnerProjectIterationsLimit < 0 {
		s.params.InnerProjectIterationsLimit = 2*s.numberOfConstraints + autoLimit(s.numberOfConstraints)
	}
	if s.params.Advanced.Verify {
		if s.ws.verify == nil {
			s.ws.verify = new(verifier)
		}
	} else {
		s.ws.verify = nil
	}

	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(solveFault)
			if !ok {
				panic(r)
			}
			err = f.err
			sol = s.solution
		}
	}()

	s.ctx = ctx
	start := time.Now()
	isReSolve := !s.ws.constraints.isEmpty()
	if s.solved && !s.IsQpsc() {
		s.UpdateVariables()
	}
	s.solved = true
	s.checkForUpdatedConstraints(isReSolve)

	s.solution = Solution{MinInnerProjectIterations: math.MaxInt}
	s.ws.maxConstraintTreeDepth = 0

	if s.numberOfConstraints == 0 {
		if !s.IsQpsc() {
			s.solution.MinInnerProjectIterations = 0
			s.finish(start)
			return s.solution, nil
		}
	} else if !isReSolve {
		s.setupConstraints()
	}

	s.mergeEqualityConstraints()
	s.deadline = time.Time{}
	if s.params.TimeLimit > 0 {
		s.deadline = start.Add(time.Duration(s.params.TimeLimit) * time.Millisecond)
	}

	if s.IsQpsc() {
		s.solveQpsc()
	} else {
		s.solveByStandaloneProject()
		s.solution.GoalFunctionValue = s.standaloneGoalFunctionValue()
	}

	if s.solution.MinInnerProjectIterations > s.solution.MaxInnerProjectIterations {
		s.solution.MinInnerProjectIterations = s.solution.MaxInnerProjectIterations
	}
	s.finish(start)
	return s.solution, nil
}

func (s *Solver) finish(start time.Time) {
	s.solution.MaxConstraintTreeDepth = s.ws.maxConstraintTreeDepth
	unsat := 0
	for _, c := range s.ws.constraints.vector {
		if c.isUnsatisfiable {
			unsat++
		}
	}
	s.solution.NumberOfUnsatisfiableConstraints = unsat
	s.ws.unsatisfiable = unsat

	if s.Logger != nil {
		s.Logger.Debug("solved",
			"variables", len(s.vars),
			"constraints", s.numberOfConstraints,
			"blocks", s.ws.blocks.count(),
			"algorithm", s.solution.AlgorithmUsed,
			"outer", s.solution.OuterProjectIterations,
			"inner", s.solution.InnerProjectIterationsTotal,
			"unsatisfiable", unsat,
			"elapsed", time.Since(start))
	}
}

// checkForUpdatedConstraints applies buffered gap updates. Equality updates
// and gradient projection require starting over from singleton blocks; any
// other active constraint is split so the next projection can re-tighten it.
func (s *Solver) checkForUpdatedConstraints(isReSolve bool) {
	mustReinit := s.IsQpsc() && isReSolve
	if len(s.updates) == 0 {
		if mustReinit {
			s.reinitializeBlocks()
		}
		return
	}

	mustReinit = s.IsQpsc()
	for _, u := range s.updates {
		u.c.gap = u.gap
		if !mustReinit && !u.c.isEquality {
			s.splitOnConstraintIfActive(u.c)
			continue
		}
		mustReinit = true
	}
	clear(s.updates)
	s.updates = s.updates[:0]
	if mustReinit {
		s.reinitializeBlocks()
	}
}

func (s *Solver) splitOnConstraintIfActive(c *Constraint) {
	if !c.isActive {
		return
	}
	if nb := s.ws.blocks.get(c.left.block).splitOnConstraint(c); nb != nil {
		s.ws.blocks.add(nb)
	}
}

// setupConstraints fills the flat constraint vector. Variables are visited in
// ordinal order and each contributes its left constraints in registration
// order, which fixes the tie-break order of the violation search.
func (s *Solver) setupConstraints() {
	s.ws.constraints.create(s.numberOfConstraints)
	for _, v := range s.vars {
		for _, c := range v.leftConstraints {
			s.ws.constraints.add(c)
		}
	}

	s.cacheCutoff = math.MaxInt
	adv := s.params.Advanced
	if adv.UseViolationCache && adv.ViolationCacheMinBlocksDivisor > 0 {
		s.cacheCutoff = min(s.ws.blocks.count()/adv.ViolationCacheMinBlocksDivisor, adv.ViolationCacheMinBlocksCount)
	}
}

// reinitializeBlocks returns every variable to its own block at its desired
// position and deactivates every constraint.
func (s *Solver) reinitializeBlocks() {
	s.ws.blocks.reset()
	for _, v := range s.vars {
		v.reinitialize()
		b := s.ws.blocks.alloc(&s.ws)
		b.addVariable(v)
		s.ws.blocks.add(b)
	}
	s.ws.constraints.reinitialize()
	s.cache.clear()
	s.lastModified = nil
}

// mergeEqualityConstraints joins the endpoints of every equality constraint
// into one block. An equality whose endpoints already share a block at the
// wrong distance conflicts with another equality chain.
func (s *Solver) mergeEqualityConstraints() {
	for _, c := range s.equalityConstraints {
		if c.isUnsatisfiable {
			continue
		}
		if c.left.block == c.right.block {
			if math.Abs(c.Violation()) > s.params.GapTolerance {
				c.isUnsatisfiable = true
				s.ws.unsatisfiable++
			}
			continue
		}
		s.mergeBlocks(c)
	}
}
