package solver

import "fmt"

// Constraint requires Left·Left.Scale + Gap <= Right·Right.Scale, or
// equality when IsEquality is set.
type Constraint struct {
	left, right *Variable
	gap         float64
	isEquality  bool

	isActive        bool
	isUnsatisfiable bool

	// lagrangian is scratch space for computeDfDv and is only meaningful
	// between the start of one traversal and the next.
	lagrangian float64

	vectorIndex int
	visited     uint64
}

// Left returns the left variable.
func (c *Constraint) Left() *Variable { return c.left }

// Right returns the right variable.
func (c *Constraint) Right() *Variable { return c.right }

// Gap returns the required separation.
func (c *Constraint) Gap() float64 { return c.gap }

// IsEquality reports whether the gap must be met exactly.
func (c *Constraint) IsEquality() bool { return c.isEquality }

// IsActive reports whether the constraint is part of a block's spanning tree.
func (c *Constraint) IsActive() bool { return c.isActive }

// IsUnsatisfiable reports whether the constraint was found to close a cycle
// or to conflict with an equality chain.
func (c *Constraint) IsUnsatisfiable() bool { return c.isUnsatisfiable }

// Lagrangian returns the multiplier from the most recent derivative computation.
func (c *Constraint) Lagrangian() float64 { return c.lagrangian }

// Violation returns how far the constraint is from being satisfied.
// Positive values mean the gap is not met.
func (c *Constraint) Violation() float64 {
	return c.left.actualPos*c.left.scale + c.gap - c.right.actualPos*c.right.scale
}

// String implements fmt.Stringer.
func (c *Constraint) String() string {
	op := "<="
	if c.isEquality {
		op = "=="
	}
	state := "-"
	switch {
	case c.isUnsatisfiable:
		state = "unsat"
	case c.isActive:
		state = "active"
	}
	return fmt.Sprintf("%v%+g %s %v [%s vio=%.5g]", c.left.tag, c.gap, op, c.right.tag, state, c.Violation())
}

func (c *Constraint) reinitialize() {
	c.isActive = false
	c.isUnsatisfiable = false
	c.lagrangian = 0
}
