package solver

import "iter"

// Variable is a scalar unknown with a desired position.
//
// Variables are created by [Solver.AddVariable] and owned by their solver.
// Position is valid after [Solver.Solve] returns.
type Variable struct {
	tag     any
	ordinal int

	desiredPos float64
	weight     float64
	scale      float64
	actualPos  float64

	// offsetInBlock is the variable's offset from its block's reference
	// position, in the block's scaled coordinate.
	offsetInBlock float64
	block         blockID

	leftConstraints       []*Constraint // constraints where this variable is Left
	rightConstraints      []*Constraint // constraints where this variable is Right
	activeConstraintCount int

	neighbors []neighbor
}

// neighbor is one side of a soft closeness goal.
type neighbor struct {
	v      *Variable
	weight float64
}

// Tag returns the caller-supplied value passed to [Solver.AddVariable].
func (v *Variable) Tag() any { return v.tag }

// Ordinal returns the variable's registration index (0-based).
func (v *Variable) Ordinal() int { return v.ordinal }

// DesiredPos returns the position the variable would take if unconstrained.
func (v *Variable) DesiredPos() float64 { return v.desiredPos }

// Weight returns the variable's weight in the goal function.
func (v *Variable) Weight() float64 { return v.weight }

// Scale returns the factor applied to the position when evaluating constraints.
func (v *Variable) Scale() float64 { return v.scale }

// Position returns the resolved position.
func (v *Variable) Position() float64 { return v.actualPos }

// ActiveConstraintCount returns the number of active constraints touching v.
func (v *Variable) ActiveConstraintCount() int { return v.activeConstraintCount }

// LeftConstraints returns the constraints in which v is the left variable.
// The slice must not be modified.
func (v *Variable) LeftConstraints() []*Constraint { return v.leftConstraints }

// RightConstraints returns the constraints in which v is the right variable.
// The slice must not be modified.
func (v *Variable) RightConstraints() []*Constraint { return v.rightConstraints }

// Neighbors yields the variables paired with v by [Solver.AddNeighborPair]
// and the weight of each pair.
func (v *Variable) Neighbors() iter.Seq2[*Variable, float64] {
	return func(yield func(*Variable, float64) bool) {
		for _, n := range v.neighbors {
			if !yield(n.v, n.weight) {
				return
			}
		}
	}
}

// SetDesiredPos changes the desired position. Call [Solver.UpdateVariables]
// after changing positions between solves.
func (v *Variable) SetDesiredPos(pos float64) { v.desiredPos = pos }

// dfdv is the derivative of the goal function with respect to v.
func (v *Variable) dfdv() float64 {
	return (2 * v.weight * (v.actualPos - v.desiredPos)) / v.scale
}

// reinitialize detaches v from its block state.
func (v *Variable) reinitialize() {
	v.activeConstraintCount = 0
	v.offsetInBlock = 0
	v.actualPos = v.desiredPos
}
