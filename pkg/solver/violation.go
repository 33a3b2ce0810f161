package solver

import "math"

// violationCacheSize is the number of inactive constraints remembered
// between Project iterations.
const violationCacheSize = 20

// violationCache remembers some of the most violated inactive constraints
// so that Project does not have to rescan every constraint after each merge.
// It only has to usually contain the maximum; a full scan backs it up.
type violationCache struct {
	entries [violationCacheSize]*Constraint
	n       int

	// lowViolation is the smallest violation in a full cache; candidates
	// below it are not worth inserting.
	lowViolation float64
}

func (vc *violationCache) isFull() bool { return vc.n == violationCacheSize }

func (vc *violationCache) clear() {
	vc.lowViolation = 0
	clear(vc.entries[:vc.n])
	vc.n = 0
}

// filterBlock drops entries that touch b or are no longer inactive
// candidates, and recomputes lowViolation. It reports whether the cache
// held anything before filtering.
func (vc *violationCache) filterBlock(b *Block) bool {
	vc.lowViolation = math.MaxFloat64
	had := vc.n > 0
	for i := vc.n - 1; i >= 0; i-- {
		c := vc.entries[i]
		if c.left.block == b.id || c.right.block == b.id || c.isActive || c.isUnsatisfiable {
			if i < vc.n-1 {
				vc.entries[i] = vc.entries[vc.n-1]
			}
			vc.n--
			vc.entries[vc.n] = nil
			continue
		}
		if v := c.Violation(); v < vc.lowViolation {
			vc.lowViolation = v
		}
	}
	if vc.n == 0 {
		vc.lowViolation = 0
	}
	return had
}

// findIfGreater returns the most violated cached constraint whose violation
// exceeds target, or nil.
func (vc *violationCache) findIfGreater(target float64) *Constraint {
	var found *Constraint
	for _, c := range vc.entries[:vc.n] {
		if v := c.Violation(); v > target {
			target = v
			found = c
		}
	}
	return found
}

// insert adds c, evicting the least violated entry if the cache is full.
func (vc *violationCache) insert(c *Constraint, violation float64) {
	lowest := 0
	low, nextLow := violation, violation
	for i, e := range vc.entries[:vc.n] {
		v := e.Violation()
		if v < low {
			nextLow = low
			lowest = i
			low = v
		} else if v < nextLow {
			nextLow = v
		}
	}

	if !vc.isFull() {
		vc.entries[vc.n] = c
		vc.n++
		if vc.isFull() {
			vc.lowViolation = low
		}
		return
	}
	vc.entries[lowest] = c
	vc.lowViolation = nextLow
}
