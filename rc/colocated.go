package rc

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/refcount/memory"
)

// colocatedBlock controls a payload that lives inside the block itself, so one allocation
// serves both
type colocatedBlock[T any] struct {
	refCounts

	alloc memory.Allocator[T]
	obj   T
}

func (b *colocatedBlock[T]) dispose() {
	b.alloc.Destroy(&b.obj)
}

func (b *colocatedBlock[T]) destroy() {
	alloc := b.alloc
	*b = colocatedBlock[T]{}
	memory.Rebind[colocatedBlock[T]](alloc).Deallocate(b, 1)
}

// newColocatedBlock allocates a block and runs init on its payload storage. The block is only
// returned once init has finished; if init panics, the storage is given back first.
func newColocatedBlock[T any](alloc memory.Allocator[T], init func(obj *T)) (block *colocatedBlock[T], err error) {
	blockAlloc := memory.Rebind[colocatedBlock[T]](alloc)

	block, err = blockAlloc.Allocate(1)
	if err != nil {
		return nil, errors.Wrap(err, "allocating control block")
	}

	constructed := false
	defer func() {
		if !constructed {
			blockAlloc.Deallocate(block, 1)
		}
	}()

	block.alloc = alloc
	init(&block.obj)
	block.strong = 1
	constructed = true

	return block, nil
}
