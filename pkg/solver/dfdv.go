package solver

// maxRecycledNodes bounds the frame free list so that one long chain does
// not keep a frame per constraint alive for the solver's lifetime.
const maxRecycledNodes = 1024

// dfdvNode is one frame of the iterative spanning-tree walk.
type dfdvNode struct {
	parent     *dfdvNode
	constraint *Constraint
	toEval     *Variable // variable reached through constraint
	doneEval   *Variable // variable we came from; never re-entered
	depth      int

	childrenPushed bool
}

// isLeftToRight reports whether the walk crossed constraint from its left
// variable to its right variable.
func (n *dfdvNode) isLeftToRight() bool { return n.toEval == n.constraint.right }

// dfdvPool is the explicit traversal stack plus a free list of frames.
type dfdvPool struct {
	stack    []*dfdvNode
	recycled []*dfdvNode
}

func (p *dfdvPool) get(parent *dfdvNode, c *Constraint, toEval, doneEval *Variable) *dfdvNode {
	var n *dfdvNode
	if k := len(p.recycled); k > 0 {
		n = p.recycled[k-1]
		p.recycled = p.recycled[:k-1]
	} else {
		n = new(dfdvNode)
	}
	*n = dfdvNode{
		parent:     parent,
		constraint: c,
		toEval:     toEval,
		doneEval:   doneEval,
		depth:      parent.depth + 1,
	}
	c.lagrangian = 0
	return n
}

func (p *dfdvPool) recycle(n *dfdvNode) {
	if len(p.recycled) < maxRecycledNodes {
		n.parent, n.constraint, n.toEval, n.doneEval = nil, nil, nil, nil
		p.recycled = append(p.recycled, n)
	}
}

func (p *dfdvPool) push(n *dfdvNode) { p.stack = append(p.stack, n) }

func (p *dfdvPool) peek() *dfdvNode { return p.stack[len(p.stack)-1] }

func (p *dfdvPool) pop() *dfdvNode {
	n := p.stack[len(p.stack)-1]
	p.stack[len(p.stack)-1] = nil
	p.stack = p.stack[:len(p.stack)-1]
	return n
}

// pathStep is one edge of the tree path found by computeDfDv.
type pathStep struct {
	constraint *Constraint
	forward    bool
}

// newRoot returns the dummy parent frame and the first real frame of a walk
// starting at v. The dummy self-constraint collects the rolled-up derivative.
func (b *Block) newRoot(v, doneEval *Variable) (*dfdvNode, *dfdvNode) {
	b.rootParent = &dfdvNode{constraint: &Constraint{left: v, right: v}, depth: -1}
	first := b.ws.dfdv.get(b.rootParent, &Constraint{left: v, right: v}, v, doneEval)
	return b.rootParent, first
}

func (b *Block) trackDepth(n *dfdvNode) {
	if n.depth > b.ws.maxConstraintTreeDepth {
		b.ws.maxConstraintTreeDepth = n.depth
	}
}

// computeDfDv computes the Lagrange multiplier of every active constraint in
// the block by a post-order walk of the spanning tree rooted at start. When
// b.pathTarget is set, the tree path from start to the target is recorded
// in b.path.
func (b *Block) computeDfDv(start *Variable) {
	pool := &b.ws.dfdv
	pool.stack = pool.stack[:0]
	vf := b.ws.verify
	gen := vf.begin()

	root, first := b.newRoot(start, nil)
	pool.push(first)

	for {
		node := pool.peek()
		prev := len(pool.stack)
		if !node.childrenPushed {
			node.childrenPushed = true
			for _, c := range node.toEval.leftConstraints {
				if c.isActive && c.right != node.doneEval {
					vf.visit(c, gen)
					child := pool.get(node, c, c.right, node.toEval)
					b.trackDepth(child)
					if c.right.activeConstraintCount == 1 {
						b.processDfDvLeaf(child)
					} else {
						pool.push(child)
					}
				}
			}
			for _, c := range node.toEval.rightConstraints {
				if c.isActive && c.left != node.doneEval {
					vf.visit(c, gen)
					child := pool.get(node, c, c.left, node.toEval)
					b.trackDepth(child)
					if c.left.activeConstraintCount == 1 {
						b.processDfDvLeaf(child)
					} else {
						pool.push(child)
					}
				}
			}
			if len(pool.stack) > prev {
				continue
			}
		}

		pool.pop()
		b.processDfDvLeaf(node)
		if node == first {
			break
		}
	}
	vf.conserved(root.constraint.lagrangian)
}

func (b *Block) processDfDvLeaf(n *dfdvNode) {
	dfdv := n.toEval.dfdv()
	b.ws.verify.account(n.toEval)
	if n.isLeftToRight() {
		n.constraint.lagrangian += dfdv
		n.parent.constraint.lagrangian += n.constraint.lagrangian
	} else {
		n.constraint.lagrangian = -(n.constraint.lagrangian + dfdv)
		n.parent.constraint.lagrangian -= n.constraint.lagrangian
	}
	b.checkPathTarget(n)
	b.ws.dfdv.recycle(n)
}

func (b *Block) checkPathTarget(n *dfdvNode) {
	if b.pathTarget == nil || b.pathTarget != n.toEval {
		return
	}
	for n.parent != b.rootParent {
		b.path = append(b.path, pathStep{constraint: n.constraint, forward: n.isLeftToRight()})
		n = n.parent
	}
	b.pathTarget = nil
}

// connectedVariables appends to dst every variable reachable from start over
// active constraints without passing through doneEval, start included.
func (b *Block) connectedVariables(dst []*Variable, start, doneEval *Variable) []*Variable {
	pool := &b.ws.dfdv
	pool.stack = pool.stack[:0]
	vf := b.ws.verify
	gen := vf.begin()

	_, first := b.newRoot(start, doneEval)
	pool.push(first)
	dst = append(dst, start)

	for len(pool.stack) > 0 {
		node := pool.peek()
		prev := len(pool.stack)
		if !node.childrenPushed {
			node.childrenPushed = true
			for _, c := range node.toEval.leftConstraints {
				if c.isActive && c.right != node.doneEval {
					vf.visit(c, gen)
					dst = append(dst, c.right)
					if c.right.activeConstraintCount != 1 {
						pool.push(pool.get(node, c, c.right, node.toEval))
					}
				}
			}
			for _, c := range node.toEval.rightConstraints {
				if c.isActive && c.left != node.doneEval {
					vf.visit(c, gen)
					dst = append(dst, c.left)
					if c.left.activeConstraintCount != 1 {
						pool.push(pool.get(node, c, c.left, node.toEval))
					}
				}
			}
		}
		if len(pool.stack) > prev {
			continue
		}
		pool.recycle(pool.pop())
	}
	return dst
}
