package memory

import (
	"unsafe"
)

//go:generate mockgen -package mocks -destination ./mocks/mock_resource.go github.com/vkngwrapper/refcount/memory Resource

// Resource is the untyped memory source behind Allocator. Implementations hand out memory for
// a Layout and take it back; they never construct or finalize values.
//
// Deallocate is not allowed to fail: a resource that is handed memory it does not recognize
// should report it through its own diagnostics and otherwise ignore it.
type Resource interface {
	Allocate(layout Layout) (unsafe.Pointer, error)
	Deallocate(ptr unsafe.Pointer, layout Layout)
}

// DefaultResource is used by allocators that were not given a resource of their own
var DefaultResource Resource = HeapResource{}
