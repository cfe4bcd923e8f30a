package memory

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Allocator hands out memory for values of T from a Resource. It is a small value type and is
// meant to be copied around freely; copies share the same resource.
//
// The zero Allocator allocates from DefaultResource.
type Allocator[T any] struct {
	resource Resource
}

// NewAllocator creates an Allocator backed by resource. A nil resource selects DefaultResource.
func NewAllocator[T any](resource Resource) Allocator[T] {
	return Allocator[T]{resource: resource}
}

// Rebind produces an allocator for U that draws from the same resource as alloc
func Rebind[U any, T any](alloc Allocator[T]) Allocator[U] {
	return Allocator[U]{resource: alloc.resource}
}

// Resource returns the resource this allocator draws from
func (a Allocator[T]) Resource() Resource {
	if a.resource == nil {
		return DefaultResource
	}
	return a.resource
}

// Equal reports whether memory allocated by one allocator can be deallocated by the other
func (a Allocator[T]) Equal(other Allocator[T]) bool {
	return a.Resource() == other.Resource()
}

// Allocate reserves memory for count contiguous values of T and returns a pointer to the first.
// The memory is zeroed, but no value has been constructed in it.
func (a Allocator[T]) Allocate(count int) (*T, error) {
	layout := LayoutOf[T](count)

	ptr, err := a.Resource().Allocate(layout)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %s", layout)
	}

	return (*T)(ptr), nil
}

// Deallocate returns memory obtained from Allocate with the same count
func (a Allocator[T]) Deallocate(ptr *T, count int) {
	if ptr == nil {
		return
	}

	a.Resource().Deallocate(unsafe.Pointer(ptr), LayoutOf[T](count))
}

// Construct places value into memory obtained from Allocate
func (a Allocator[T]) Construct(ptr *T, value T) {
	*ptr = value
}

// Destroy ends the lifetime of the value at ptr: its Finalize method runs if it has one and the
// storage is zeroed so nothing it referenced is kept alive. The memory itself is not released.
func (a Allocator[T]) Destroy(ptr *T) {
	if finalizer, ok := any(ptr).(Finalizer); ok {
		finalizer.Finalize()
	}

	var zero T
	*ptr = zero
}

// DestroyN destroys count contiguous values starting at ptr, in order
func (a Allocator[T]) DestroyN(ptr *T, count int) {
	values := unsafe.Slice(ptr, count)
	for i := range values {
		a.Destroy(&values[i])
	}
}

// New allocates memory for one T and constructs value in it
func (a Allocator[T]) New(value T) (*T, error) {
	ptr, err := a.Allocate(1)
	if err != nil {
		return nil, err
	}

	a.Construct(ptr, value)
	return ptr, nil
}
