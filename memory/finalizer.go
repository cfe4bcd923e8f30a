package memory

// Finalizer is implemented by payloads that need to release something when they are destroyed.
// Allocator.Destroy calls Finalize exactly once before zeroing the value. Finalize must not panic.
type Finalizer interface {
	Finalize()
}
