package rc

import (
	"github.com/vkngwrapper/refcount/memory"
)

// Shared is a strong, reference-counted handle to a payload of type T. While at least one
// non-empty Shared refers to a payload, the payload stays alive; when the last one is released,
// the payload is disposed of.
//
// The zero value is an empty handle. Shared values must only be duplicated with Clone or
// Assign: copying the struct itself duplicates ownership without counting it, and releasing
// both copies is an over-release. Every non-empty Shared must eventually be passed to Release,
// moved out with Move, or overwritten through one of the assignment methods.
//
// Shared is not safe for concurrent use. Handles to the same payload share unsynchronized
// counters, so all of them must be used from one goroutine at a time.
type Shared[T any] struct {
	cb  controlBlock
	ptr *T
}

// Adopt takes ownership of a payload allocated on its own, typically with new or
// memory.Allocator.New. The payload is disposed of by destroying it and returning its memory to
// the default resource once the last strong handle is released.
//
// Adopting a nil pointer produces an empty handle.
func Adopt[T any](ptr *T) (Shared[T], error) {
	return AdoptWith(ptr, nil, memory.Allocator[T]{})
}

// AdoptWith takes ownership of ptr, using alloc to allocate the control block and deleter to
// dispose of the payload. When deleter is nil, DefaultDeleter(alloc) is used.
//
// If the control block cannot be allocated, deleter runs on ptr before the error is returned,
// so the payload is never leaked.
func AdoptWith[T any](ptr *T, deleter Deleter[T], alloc memory.Allocator[T]) (Shared[T], error) {
	if ptr == nil {
		return Shared[T]{}, nil
	}

	if deleter == nil {
		deleter = DefaultDeleter(alloc)
	}

	block, err := newSeparateBlock(ptr, deleter, alloc)
	if err != nil {
		deleter(ptr)
		return Shared[T]{}, err
	}

	return Shared[T]{cb: block, ptr: ptr}, nil
}

// Make creates a payload holding value, stored in the same allocation as its control block
func Make[T any](value T) (Shared[T], error) {
	return AllocateShared(memory.Allocator[T]{}, value)
}

// MakeFunc creates a zero payload stored in the same allocation as its control block, and calls
// init to construct it in place
func MakeFunc[T any](init func(obj *T)) (Shared[T], error) {
	return AllocateSharedFunc(memory.Allocator[T]{}, init)
}

// AllocateShared is Make with a caller-provided allocator. The control block and payload are
// allocated together from alloc's resource, and returned to it once the payload has no strong
// handles and no weak handles left.
func AllocateShared[T any](alloc memory.Allocator[T], value T) (Shared[T], error) {
	return AllocateSharedFunc(alloc, func(obj *T) {
		alloc.Construct(obj, value)
	})
}

// AllocateSharedFunc is MakeFunc with a caller-provided allocator
func AllocateSharedFunc[T any](alloc memory.Allocator[T], init func(obj *T)) (Shared[T], error) {
	block, err := newColocatedBlock(alloc, init)
	if err != nil {
		return Shared[T]{}, err
	}

	return Shared[T]{cb: block, ptr: &block.obj}, nil
}

func lockFrom[T any](cb controlBlock, ptr *T) Shared[T] {
	acquireStrong(cb)
	return Shared[T]{cb: cb, ptr: ptr}
}

// Clone returns a new handle sharing the payload. Cloning an empty handle returns an empty handle.
func (s *Shared[T]) Clone() Shared[T] {
	if s.cb == nil {
		return Shared[T]{}
	}

	return lockFrom(s.cb, s.ptr)
}

// Move returns a handle holding this handle's share and leaves this handle empty
func (s *Shared[T]) Move() Shared[T] {
	moved := *s
	*s = Shared[T]{}
	return moved
}

// Swap exchanges the payloads of two handles without changing any counts
func (s *Shared[T]) Swap(other *Shared[T]) {
	s.cb, other.cb = other.cb, s.cb
	s.ptr, other.ptr = other.ptr, s.ptr
}

// Assign makes this handle share other's payload, releasing whatever it held before. Assigning
// a handle to itself is safe.
func (s *Shared[T]) Assign(other *Shared[T]) {
	tmp := other.Clone()
	s.Swap(&tmp)
	tmp.Release()
}

// AssignMove moves other's share into this handle, releasing whatever it held before, and leaves
// other empty
func (s *Shared[T]) AssignMove(other *Shared[T]) {
	tmp := other.Move()
	s.Swap(&tmp)
	tmp.Release()
}

// Reset releases this handle's share and leaves it empty
func (s *Shared[T]) Reset() {
	var tmp Shared[T]
	s.Swap(&tmp)
	tmp.Release()
}

// ResetTo releases this handle's share and adopts ptr in its place, as Adopt does. If ptr cannot
// be adopted, it is disposed of, the error is returned, and the handle keeps its current share.
func (s *Shared[T]) ResetTo(ptr *T) error {
	tmp, err := Adopt(ptr)
	if err != nil {
		return err
	}

	s.Swap(&tmp)
	tmp.Release()
	return nil
}

// Release gives up this handle's share, disposing of the payload if it was the last strong
// handle. The handle is empty afterward. Releasing an empty handle does nothing.
func (s *Shared[T]) Release() {
	cb := s.cb
	if cb == nil {
		return
	}

	s.cb = nil
	s.ptr = nil
	releaseStrong(cb)
}

// Get returns the payload address, or nil for an empty handle
func (s *Shared[T]) Get() *T {
	return s.ptr
}

// Value returns a copy of the payload. It panics on an empty handle.
func (s *Shared[T]) Value() T {
	return *s.ptr
}

// UseCount is the number of strong handles sharing the payload, or 0 for an empty handle
func (s *Shared[T]) UseCount() uint {
	if s.cb == nil {
		return 0
	}

	return s.cb.refs().strong
}

func (s *Shared[T]) IsEmpty() bool {
	return s.cb == nil
}

// Weak returns a weak handle observing this handle's payload
func (s *Shared[T]) Weak() Weak[T] {
	return NewWeak(s)
}
