package memory

import (
	"reflect"
	"unsafe"
)

// HeapResource allocates from the Go heap. Deallocate does nothing, the garbage collector reclaims
// memory once nothing refers to it.
type HeapResource struct{}

var _ Resource = HeapResource{}

func (HeapResource) Allocate(layout Layout) (unsafe.Pointer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	if layout.Count == 1 {
		return reflect.New(layout.Type).UnsafePointer(), nil
	}

	return reflect.New(reflect.ArrayOf(layout.Count, layout.Type)).UnsafePointer(), nil
}

func (HeapResource) Deallocate(ptr unsafe.Pointer, layout Layout) {}
