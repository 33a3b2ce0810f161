package solver

import "time"

// approxEpsilon is the slack used when comparing violations, so that
// rounding noise does not make one constraint look worse than another.
const approxEpsilon = 1e-6

func approxGreater(a, b float64) bool { return a-b >= approxEpsilon }

// solveByStandaloneProject alternates projection and splitting until neither
// changes anything or a limit is reached.
func (s *Solver) solveByStandaloneProject() {
	s.solution.AlgorithmUsed = ProjectOnly
	for {
		if _, ok := s.runProject(); !ok {
			return
		}
		if !s.splitBlocks() {
			return
		}
	}
}

// runProject performs one outer iteration. ok is false when a limit was hit.
func (s *Solver) runProject() (violationsFound, ok bool) {
	s.solution.OuterProjectIterations++
	violationsFound = s.project()
	return violationsFound, !s.checkForLimitsExceeded()
}

// checkForLimitsExceeded runs only between outer iterations, when every
// block is feasible (unless the inner limit was hit).
func (s *Solver) checkForLimitsExceeded() bool {
	if s.ctx != nil && s.ctx.Err() != nil {
		s.solution.Canceled = true
		return true
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		s.solution.TimeLimitExceeded = true
		return true
	}
	if limit := s.params.OuterProjectIterationsLimit; limit > 0 && s.solution.OuterProjectIterations >= limit {
		s.solution.OuterProjectIterationsLimitExceeded = true
		return true
	}
	return s.solution.InnerProjectIterationsLimitExceeded
}

func (s *Solver) standaloneGoalFunctionValue() float64 {
	var f float64
	for _, v := range s.vars {
		f += v.weight*v.actualPos*v.actualPos - 2*v.weight*v.desiredPos*v.actualPos
	}
	return f
}

// project repeatedly resolves the most violated constraint, either by
// merging its endpoints' blocks or by expanding the block that holds both,
// until nothing is violated by more than GapTolerance. It reports whether
// any violation was found.
func (s *Solver) project() bool {
	if s.numberOfConstraints == 0 {
		return false
	}
	s.cache.clear()
	s.lastModified = nil
	useCache := s.ws.blocks.count() > s.cacheCutoff

	c := s.maxViolatedConstraint(useCache)
	if c == nil {
		return false
	}

	iterations := 1
	for c != nil {
		if c.left.block == c.right.block {
			s.ws.blocks.get(c.left.block).expand(c)
			if c.isUnsatisfiable {
				s.cache.clear()
			}
			s.lastModified = s.ws.blocks.get(c.left.block)
		} else {
			s.lastModified = s.mergeBlocks(c)
		}

		if limit := s.params.InnerProjectIterationsLimit; limit > 0 && iterations >= limit {
			s.solution.InnerProjectIterationsLimitExceeded = true
			break
		}

		useCache = s.ws.blocks.count() > s.cacheCutoff
		if !useCache {
			s.cache.clear()
		}
		iterations++
		c = s.maxViolatedConstraint(useCache)
	}

	s.solution.InnerProjectIterationsTotal += int64(iterations)
	s.solution.MaxInnerProjectIterations = max(s.solution.MaxInnerProjectIterations, iterations)
	s.solution.MinInnerProjectIterations = min(s.solution.MinInnerProjectIterations, iterations)
	return true
}

// mergeBlocks moves the smaller of c's endpoint blocks into the larger,
// shifting its offsets so that c is met exactly, and activates c.
func (s *Solver) mergeBlocks(c *Constraint) *Block {
	to := s.ws.blocks.get(c.left.block)
	from := s.ws.blocks.get(c.right.block)
	distance := c.left.offsetInBlock + c.gap - c.right.offsetInBlock
	if len(from.vars) > len(to.vars) {
		to, from = from, to
		distance = -distance
	}

	for _, v := range from.vars {
		v.offsetInBlock += distance
		to.addVariable(v)
	}
	to.updateReferencePosFromSums()

	s.ws.constraints.activate(c)
	clear(from.vars)
	from.vars = from.vars[:0]
	s.ws.blocks.remove(from)
	return to
}

// splitBlocks splits every block that has a constraint with a sufficiently
// negative multiplier. It reports whether any block was split.
func (s *Solver) splitBlocks() bool {
	isQpsc := s.IsQpsc()
	n := s.ws.blocks.count()
	var created []*Block
	for i := 0; i < n; i++ {
		if nb := s.ws.blocks.live[i].split(isQpsc); nb != nil {
			created = append(created, nb)
		}
	}
	for _, nb := range created {
		s.ws.blocks.add(nb)
	}
	return len(created) > 0
}

// maxViolatedConstraint returns the inactive, satisfiable constraint with
// the largest violation above GapTolerance, or nil.
func (s *Solver) maxViolatedConstraint(useCache bool) *Constraint {
	maxViolation := s.params.GapTolerance
	if c := s.searchViolationCache(maxViolation); c != nil {
		return c
	}
	return s.searchAllConstraints(maxViolation, useCache)
}

// searchViolationCache scans only the constraints of the last modified block
// and combines the result with the cache. It only applies when that block is
// small relative to the problem and the cache survived filtering.
func (s *Solver) searchViolationCache(maxViolation float64) *Constraint {
	b := s.lastModified
	if b == nil || len(b.vars) >= len(s.vars)>>1 || !s.cache.filterBlock(b) {
		return nil
	}

	var maxViolated *Constraint
	consider := func(c *Constraint, violation float64) {
		if !approxGreater(violation, maxViolation) {
			return
		}
		if maxViolated != nil && maxViolation > s.cache.lowViolation {
			s.cache.insert(maxViolated, maxViolation)
		}
		maxViolation = violation
		maxViolated = c
	}
	for _, v := range b.vars {
		for _, c := range v.leftConstraints {
			if !c.isActive && !c.isUnsatisfiable {
				consider(c, c.Violation())
			}
		}
		for _, c := range v.rightConstraints {
			if !c.isActive && !c.isUnsatisfiable && c.left.block != b.id {
				consider(c, c.Violation())
			}
		}
	}

	if cached := s.cache.findIfGreater(maxViolation); cached != nil {
		if maxViolated != nil && maxViolation > s.cache.lowViolation {
			s.cache.insert(maxViolated, maxViolation)
		}
		maxViolated = cached
	}
	return maxViolated
}

// searchAllConstraints scans the inactive region of the constraint vector,
// refilling the cache with runners-up as it goes.
func (s *Solver) searchAllConstraints(maxViolation float64, useCache bool) *Constraint {
	var maxViolated *Constraint
	s.cache.clear()

	for _, c := range s.ws.constraints.inactive() {
		if c.isUnsatisfiable {
			continue
		}
		violation := c.Violation()

		var insert *Constraint
		var insertViolation float64
		if approxGreater(violation, maxViolation) {
			if maxViolation > s.cache.lowViolation {
				insert = maxViolated
				insertViolation = maxViolation
			}
			maxViolation = violation
			maxViolated = c
		}

		if !useCache {
			continue
		}
		if insert == nil && c != maxViolated && (!s.cache.isFull() || violation > s.cache.lowViolation) {
			insert = c
			insertViolation = violation
		}
		if insert != nil && insertViolation > s.cache.lowViolation {
			s.cache.insert(insert, insertViolation)
		}
	}
	return maxViolated
}
