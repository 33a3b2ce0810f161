package solver

// constraintVector holds every constraint in one array. Inactive constraints
// occupy [0, firstActive) and active ones [firstActive, len), so toggling a
// constraint is a single swap with the element at the boundary.
type constraintVector struct {
	vector      []*Constraint
	firstActive int
}

func (cv *constraintVector) create(n int) {
	cv.vector = make([]*Constraint, 0, n)
	cv.firstActive = n
}

func (cv *constraintVector) isEmpty() bool { return cv.vector == nil }

func (cv *constraintVector) add(c *Constraint) {
	c.vectorIndex = len(cv.vector)
	cv.vector = append(cv.vector, c)
}

// inactive returns the inactive region. The slice aliases the vector and is
// invalidated by the next activate or deactivate.
func (cv *constraintVector) inactive() []*Constraint {
	return cv.vector[:cv.firstActive]
}

func (cv *constraintVector) activate(c *Constraint) {
	cv.firstActive--
	cv.swap(c)
}

func (cv *constraintVector) deactivate(c *Constraint) {
	cv.swap(c)
	cv.firstActive++
}

// swap exchanges c with the constraint at the (already moved) boundary and
// toggles its state.
func (cv *constraintVector) swap(c *Constraint) {
	other := cv.vector[cv.firstActive]
	other.vectorIndex = c.vectorIndex
	cv.vector[c.vectorIndex] = other

	cv.vector[cv.firstActive] = c
	c.vectorIndex = cv.firstActive
	c.isActive = !c.isActive
	delta := -1
	if c.isActive {
		delta = 1
	}
	c.left.activeConstraintCount += delta
	c.right.activeConstraintCount += delta
}

func (cv *constraintVector) reinitialize() {
	if cv.vector == nil {
		return
	}
	for _, c := range cv.vector {
		c.reinitialize()
	}
	cv.firstActive = len(cv.vector)
}

// workspace is the state shared between a solver and its blocks.
type workspace struct {
	params      *Parameters
	constraints constraintVector
	blocks      blockVector
	dfdv        dfdvPool
	verify      *verifier

	maxConstraintTreeDepth int
	unsatisfiable          int
}
