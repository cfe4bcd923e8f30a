package rc

import (
	"github.com/vkngwrapper/refcount/memory"
)

// Deleter ends the life of an adopted payload once its last strong handle is released. It is
// called exactly once, with the address that was adopted.
type Deleter[T any] func(ptr *T)

// DefaultDeleter destroys the payload and returns its memory to alloc. It is what Adopt uses.
func DefaultDeleter[T any](alloc memory.Allocator[T]) Deleter[T] {
	return func(ptr *T) {
		alloc.Destroy(ptr)
		alloc.Deallocate(ptr, 1)
	}
}

// ArrayDeleter destroys count contiguous payloads starting at the adopted address and returns
// all of their memory to alloc
func ArrayDeleter[T any](alloc memory.Allocator[T], count int) Deleter[T] {
	return func(ptr *T) {
		alloc.DestroyN(ptr, count)
		alloc.Deallocate(ptr, count)
	}
}

// DestroyDeleter destroys the payload but leaves its memory alone, for payloads whose storage
// belongs to something else
func DestroyDeleter[T any](alloc memory.Allocator[T]) Deleter[T] {
	return alloc.Destroy
}

// NoopDeleter does nothing. Handles that adopt with it observe the payload without owning it.
func NoopDeleter[T any]() Deleter[T] {
	return func(*T) {}
}
