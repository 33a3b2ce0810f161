package solver

import (
	"fmt"
	"math"

	"github.com/matzehuels/vpsc/pkg/errors"
)

// Block is a maximal set of variables connected by active constraints. The
// variables move together: each position is derived from the block's
// reference position and the variable's offset within the block.
type Block struct {
	id          blockID
	vectorIndex int
	ws          *workspace

	vars         []*Variable
	referencePos float64
	scale        float64

	// Running sums of the closed-form weighted least-squares solution.
	sumAd float64
	sumAb float64
	sumA2 float64

	// Walk state: the dummy root frame of the current walk, and the
	// optional path search used by expand.
	rootParent *dfdvNode
	pathTarget *Variable
	path       []pathStep
}

// Variables returns the block's variables. The slice must not be modified.
func (b *Block) Variables() []*Variable { return b.vars }

// ReferencePos returns the block's reference position.
func (b *Block) ReferencePos() float64 { return b.referencePos }

// String implements fmt.Stringer.
func (b *Block) String() string {
	return fmt.Sprintf("[Block %d: nvars=%d refpos=%.5f scale=%.5f]", b.id, len(b.vars), b.referencePos, b.scale)
}

// addVariable moves v into b, keeping v's current offset unless b was empty.
func (b *Block) addVariable(v *Variable) {
	b.vars = append(b.vars, v)
	v.block = b.id
	if len(b.vars) == 1 {
		b.scale = v.scale
		b.referencePos = v.actualPos
		b.sumAd = v.actualPos * v.weight
		b.sumAb = 0
		b.sumA2 = v.weight
		v.offsetInBlock = 0
		return
	}
	b.addToSums(v)
}

func (b *Block) addToSums(v *Variable) {
	a := b.scale / v.scale
	bv := v.offsetInBlock / v.scale
	aw := a * v.weight
	b.sumAd += aw * v.desiredPos
	b.sumAb += aw * bv
	b.sumA2 += aw * a
}

// updateReferencePos recomputes the sums from scratch and repositions every
// variable.
func (b *Block) updateReferencePos() {
	b.scale = b.vars[0].scale
	b.sumAd, b.sumAb, b.sumA2 = 0, 0, 0
	for _, v := range b.vars {
		b.addToSums(v)
	}
	b.updateReferencePosFromSums()
}

func (b *Block) updateReferencePosFromSums() {
	if nonFinite(b.sumAd) || nonFinite(b.sumAb) || nonFinite(b.sumA2) {
		fault(errors.ErrCodeOverflow, "block reference position is infinite (sumAd=%g sumAb=%g sumA2=%g)", b.sumAd, b.sumAb, b.sumA2)
	}
	b.referencePos = (b.sumAd - b.sumAb) / b.sumA2

	scaledRef := b.scale * b.referencePos
	for _, v := range b.vars {
		v.actualPos = (scaledRef + v.offsetInBlock) / v.scale
	}
}

// expand makes room for vc, whose endpoints are both in b, by deactivating
// the forward non-equality constraint with the smallest multiplier on the
// tree path between them. If the path has no such constraint, vc is marked
// unsatisfiable.
func (b *Block) expand(vc *Constraint) {
	b.path = b.path[:0]
	b.pathTarget = vc.right
	b.computeDfDv(vc.left)

	var minLagrangian *Constraint
	for _, step := range b.path {
		if step.forward && !step.constraint.isEquality &&
			(minLagrangian == nil || step.constraint.lagrangian < minLagrangian.lagrangian) {
			minLagrangian = step.constraint
		}
	}
	b.path = b.path[:0]
	b.pathTarget = nil

	if minLagrangian == nil {
		vc.isUnsatisfiable = true
		b.ws.unsatisfiable++
		return
	}
	b.ws.constraints.deactivate(minLagrangian)

	connected := b.connectedVariables(nil, vc.right, vc.left)
	violation := vc.Violation()
	for _, v := range connected {
		v.offsetInBlock += violation
	}
	b.ws.constraints.activate(vc)
	vc.lagrangian = 0
	b.updateReferencePos()
}

// split looks for an active non-equality constraint whose multiplier is
// below the split threshold and, if one exists, splits the block there.
// It returns the new block, or nil if the block was not split.
func (b *Block) split(isQpsc bool) *Block {
	if isQpsc {
		// Desired positions changed since the last projection.
		b.updateReferencePos()
	}
	if len(b.vars) < 2 {
		return nil
	}

	b.computeDfDv(b.vars[0])

	var target *Constraint
	minLagrangian := b.ws.params.Advanced.MinSplitLagrangianThreshold
	for _, v := range b.vars {
		for _, c := range v.leftConstraints {
			if c.isActive && !c.isEquality && c.lagrangian < minLagrangian {
				target = c
				minLagrangian = c.lagrangian
			}
		}
	}
	if target == nil {
		return nil
	}
	return b.splitOnConstraint(target)
}

// splitOnConstraint deactivates c and moves the variables on its right side
// into a new block. It returns nil if that would leave b empty.
func (b *Block) splitOnConstraint(c *Constraint) *Block {
	b.ws.constraints.deactivate(c)
	nb := b.ws.blocks.alloc(b.ws)
	b.transferConnectedVariables(nb, c.right, c.left)
	if len(nb.vars) == 0 {
		b.ws.blocks.release(nb)
		return nil
	}
	b.updateReferencePos()
	nb.updateReferencePos()
	return nb
}

func (b *Block) transferConnectedVariables(nb *Block, start, doneEval *Variable) {
	nb.vars = b.connectedVariables(nb.vars, start, doneEval)
	for _, v := range nb.vars {
		v.block = nb.id
	}

	keep := b.vars[:0]
	for _, v := range b.vars {
		if v.block == b.id {
			keep = append(keep, v)
		}
	}
	b.ws.verify.transferred(len(nb.vars), len(b.vars)-len(keep))
	clear(b.vars[len(keep):])
	b.vars = keep

	if len(b.vars) == 0 {
		// Unsatisfiable constraints can make the whole block reachable.
		for _, v := range nb.vars {
			v.block = b.id
		}
		b.vars = append(b.vars, nb.vars...)
		nb.vars = nb.vars[:0]
	}
}

func nonFinite(f float64) bool { return math.IsInf(f, 0) || math.IsNaN(f) }
