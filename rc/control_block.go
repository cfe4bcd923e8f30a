package rc

import (
	"github.com/vkngwrapper/refcount/memutils"
)

type refCounts struct {
	strong uint
	weak   uint
}

func (c *refCounts) refs() *refCounts {
	return c
}

// controlBlock is the bookkeeping shared by every handle to one payload. There are exactly two
// implementations, separateBlock and colocatedBlock, chosen when the first handle is created.
//
// dispose ends the payload's lifetime and runs when the strong count reaches zero. destroy
// reclaims the block's own storage and runs when both counts are zero. Each runs at most once.
type controlBlock interface {
	refs() *refCounts
	dispose()
	destroy()
}

func acquireStrong(cb controlBlock) {
	cb.refs().strong++
}

func acquireWeak(cb controlBlock) {
	cb.refs().weak++
}

func releaseStrong(cb controlBlock) {
	counts := cb.refs()
	memutils.DebugAssert(counts.strong > 0, "strong reference released from a block with no strong references (weak count %d)", counts.weak)

	counts.strong--
	if counts.strong > 0 {
		return
	}

	// The payload may own weak handles to its own block, and dropping them during dispose
	// must not destroy the block out from under us
	counts.weak++
	cb.dispose()
	releaseWeak(cb)
}

func releaseWeak(cb controlBlock) {
	counts := cb.refs()
	memutils.DebugAssert(counts.weak > 0, "weak reference released from a block with no weak references (strong count %d)", counts.strong)

	counts.weak--
	if counts.weak == 0 && counts.strong == 0 {
		cb.destroy()
	}
}
