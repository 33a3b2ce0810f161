package solver

// blockID is a stable handle into the block arena. Variables refer to their
// owning block by id so that removing or moving blocks in the live list never
// invalidates another variable's reference.
type blockID int32

const noBlock blockID = -1

// blockVector owns all blocks. The arena maps ids to blocks; live holds the
// blocks taking part in the solve, with O(1) removal by swap-with-last.
type blockVector struct {
	arena []*Block
	free  []blockID
	live  []*Block
}

// alloc creates an empty block with a fresh id. The block is not live until
// add is called.
func (bv *blockVector) alloc(ws *workspace) *Block {
	b := &Block{ws: ws, vectorIndex: -1}
	if n := len(bv.free); n > 0 {
		b.id = bv.free[n-1]
		bv.free = bv.free[:n-1]
		bv.arena[b.id] = b
	} else {
		b.id = blockID(len(bv.arena))
		bv.arena = append(bv.arena, b)
	}
	return b
}

// release returns an allocated block's id to the free list.
func (bv *blockVector) release(b *Block) {
	bv.arena[b.id] = nil
	bv.free = append(bv.free, b.id)
	b.id = noBlock
}

func (bv *blockVector) get(id blockID) *Block { return bv.arena[id] }

func (bv *blockVector) add(b *Block) {
	b.vectorIndex = len(bv.live)
	bv.live = append(bv.live, b)
}

// remove drops b from the live list and releases its id.
func (bv *blockVector) remove(b *Block) {
	last := len(bv.live) - 1
	if b.vectorIndex != last {
		moved := bv.live[last]
		moved.vectorIndex = b.vectorIndex
		bv.live[b.vectorIndex] = moved
	}
	bv.live[last] = nil
	bv.live = bv.live[:last]
	b.vectorIndex = -1
	bv.release(b)
}

func (bv *blockVector) count() int { return len(bv.live) }

func (bv *blockVector) reset() {
	clear(bv.arena)
	bv.arena = bv.arena[:0]
	bv.free = bv.free[:0]
	clear(bv.live)
	bv.live = bv.live[:0]
}
