package rc

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/refcount/memory"
)

// separateBlock controls a payload that was allocated on its own, before any handle existed
type separateBlock[T any] struct {
	refCounts

	ptr     *T
	alloc   memory.Allocator[T]
	deleter Deleter[T]
}

func (b *separateBlock[T]) dispose() {
	ptr := b.ptr
	b.ptr = nil
	b.deleter(ptr)
}

func (b *separateBlock[T]) destroy() {
	alloc := b.alloc
	*b = separateBlock[T]{}
	memory.Rebind[separateBlock[T]](alloc).Deallocate(b, 1)
}

func newSeparateBlock[T any](ptr *T, deleter Deleter[T], alloc memory.Allocator[T]) (*separateBlock[T], error) {
	block, err := memory.Rebind[separateBlock[T]](alloc).Allocate(1)
	if err != nil {
		return nil, errors.Wrap(err, "allocating control block")
	}

	block.strong = 1
	block.ptr = ptr
	block.alloc = alloc
	block.deleter = deleter

	return block, nil
}
