package solver

import (
	"math"
	"slices"
)

// Gradient projection for goal functions with neighbor terms:
//
//	f(y) = y'Ay/2 + b'y
//
// with A[i][i] = 2(w_i + Σ w_ij), A[i][j] = -2 w_ij and b[i] = -2 w_i d_i.
// Each iteration takes an unconstrained steepest-descent step, projects it
// onto the constraints through the block machinery, and then takes the
// best step along the projected direction.

type matrixCell struct {
	value  float64
	column int
}

type qpscVar struct {
	v            *Variable
	origWeight   float64
	origScale    float64
	origDesired  float64
	diagonalStep float64 // q_i; 1 without scaling
}

type qpsc struct {
	params *Parameters

	matrix [][]matrixCell
	b      []float64
	vars   []qpscVar

	gradient []float64 // g
	qg       []float64 // A·g, then A·p
	prevY    []float64 // ŷ
	curY     []float64 // ȳ

	// row accumulation scratch
	row     []float64
	touched []int

	isFirstProjectCall    bool
	previousFunctionValue float64
}

func newQpsc(params *Parameters, n int) *qpsc {
	return &qpsc{
		params:                params,
		matrix:                make([][]matrixCell, n),
		b:                     make([]float64, n),
		vars:                  make([]qpscVar, n),
		gradient:              make([]float64, n),
		qg:                    make([]float64, n),
		prevY:                 make([]float64, n),
		curY:                  make([]float64, n),
		row:                   make([]float64, n),
		previousFunctionValue: math.MaxFloat64,
	}
}

// addVariable builds v's matrix row and switches v to unit weight.
func (q *qpsc) addVariable(v *Variable) {
	q.isFirstProjectCall = true
	i := v.ordinal
	q.b[i] = -2 * v.weight * v.desiredPos

	q.touch(i, v.weight)
	for _, nb := range v.neighbors {
		q.touch(i, nb.weight)
		q.touch(nb.v.ordinal, -nb.weight)
	}
	slices.Sort(q.touched)

	var cells []matrixCell
	for _, col := range q.touched {
		if q.row[col] != 0 {
			cells = append(cells, matrixCell{value: 2 * q.row[col], column: col})
		}
		q.row[col] = 0
	}
	q.touched = q.touched[:0]
	q.matrix[i] = cells

	q.vars[i] = qpscVar{v: v, origWeight: v.weight, origScale: v.scale, origDesired: v.desiredPos, diagonalStep: 1}
	v.weight = 1
}

func (q *qpsc) touch(col int, w float64) {
	if q.row[col] == 0 && !slices.Contains(q.touched, col) {
		q.touched = append(q.touched, col)
	}
	q.row[col] += w
}

// variablesComplete applies diagonal scaling (if enabled) and moves the
// variables into the solver's coordinate y.
func (q *qpsc) variablesComplete() {
	scaling := q.params.Advanced.ScaleInQpsc
	for i := range q.vars {
		qv := &q.vars[i]
		v := qv.v
		for _, cell := range q.matrix[i] {
			if cell.column != i {
				continue
			}
			if scaling {
				step := 1 / math.Sqrt(math.Abs(cell.value))
				if math.IsInf(step, 0) {
					step = 1
				}
				qv.diagonalStep = step
				v.scale = qv.origScale * step
				v.actualPos /= step
				q.b[i] *= step
			}
			q.curY[i] = v.actualPos
			v.desiredPos = v.actualPos
		}
	}
	if !scaling {
		return
	}
	for i, row := range q.matrix {
		for k := range row {
			if row[k].column == i {
				row[k].value = 1
			} else {
				row[k].value *= q.vars[i].diagonalStep * q.vars[row[k].column].diagonalStep
			}
		}
	}
}

// preProject takes the steepest-descent step from the current point and
// stores it as the variables' desired positions. It returns false when the
// goal function has converged or no step can be taken.
func (q *qpsc) preProject() bool {
	if q.isFirstProjectCall {
		for i := range q.vars {
			q.curY[i] = q.vars[i].v.actualPos
		}
	}

	q.multiply(q.curY, q.gradient)
	if q.hasConverged() {
		return false
	}

	for i := range q.gradient {
		q.gradient[i] += q.b[i]
	}
	alphaNumerator := dot(q.gradient, q.gradient)
	alphaDenominator := 0.0
	if alphaNumerator != 0 {
		q.multiply(q.gradient, q.qg)
		alphaDenominator = dot(q.qg, q.gradient)
	}
	if alphaDenominator == 0 {
		return false
	}
	alpha := alphaNumerator / alphaDenominator

	copy(q.prevY, q.curY)
	for i := range q.curY {
		q.curY[i] = q.prevY[i] - alpha*q.gradient[i]
		q.vars[i].v.desiredPos = q.curY[i]
	}
	return true
}

// postProject moves from the pre-step point toward the projected point by
// the optimal fraction β ∈ [0, 1]. It returns false if no progress was made.
func (q *qpsc) postProject() bool {
	// curY becomes p = ŷ - ȳ
	for i := range q.vars {
		q.curY[i] = q.prevY[i] - q.vars[i].v.actualPos
	}

	betaNumerator := dot(q.gradient, q.curY)
	beta := 0.0
	if betaNumerator != 0 {
		q.multiply(q.curY, q.qg)
		betaDenominator := dot(q.qg, q.curY)
		if betaDenominator == 0 {
			beta = 1
		} else {
			beta = min(max(betaNumerator/betaDenominator, 0), 1)
		}
	}

	for i := range q.curY {
		q.curY[i] = q.prevY[i] - beta*q.curY[i]
	}
	q.isFirstProjectCall = false
	return beta > 0
}

// complete restores the caller's weights, desired positions and scales and
// returns the final goal function value.
func (q *qpsc) complete() float64 {
	scaling := q.params.Advanced.ScaleInQpsc
	for i := range q.vars {
		qv := &q.vars[i]
		qv.v.weight = qv.origWeight
		qv.v.desiredPos = qv.origDesired
		if scaling {
			qv.v.actualPos *= qv.diagonalStep
			qv.v.scale = qv.origScale
		}
	}
	return q.previousFunctionValue
}

// hasConverged expects q.gradient to hold A·ȳ.
func (q *qpsc) hasConverged() bool {
	current := dot(q.gradient, q.curY)/2 + dot(q.b, q.curY)

	converged := false
	if !q.isFirstProjectCall {
		diff := q.previousFunctionValue - current
		quotient := 0.0
		if diff != 0 {
			divisor := q.previousFunctionValue
			if divisor == 0 {
				divisor = current
			}
			quotient = math.Abs(diff / divisor)
		}
		converged = math.Abs(diff) < q.params.QpscConvergenceEpsilon || quotient < q.params.QpscConvergenceQuotient
	}
	q.previousFunctionValue = current
	return converged
}

func (q *qpsc) multiply(rhs, result []float64) {
	for i, row := range q.matrix {
		sum := 0.0
		for _, cell := range row {
			sum += cell.value * rhs[cell.column]
		}
		result[i] = sum
	}
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// solveQpsc makes the problem feasible with one projection, then runs
// gradient projection until the goal function converges with no split or
// violation left to resolve.
func (s *Solver) solveQpsc() {
	s.solution.AlgorithmUsed = QpscWithoutScaling
	if s.params.Advanced.ScaleInQpsc {
		s.solution.AlgorithmUsed = QpscWithScaling
	}
	if _, ok := s.runProject(); !ok {
		return
	}

	q := newQpsc(&s.params, len(s.vars))
	for _, v := range s.vars {
		q.addVariable(v)
	}
	q.variablesComplete()
	s.reinitializeBlocks()
	s.mergeEqualityConstraints()

	foundSplit, foundViolation := false, false
	for {
		if !q.preProject() && !foundSplit && !foundViolation {
			break
		}
		foundSplit = s.splitBlocks()
		var ok bool
		if foundViolation, ok = s.runProject(); !ok {
			break
		}
		if !q.postProject() && !foundSplit && !foundViolation {
			break
		}
	}
	s.solution.GoalFunctionValue = q.complete()
}
