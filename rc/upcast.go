package rc

// Upcast returns a handle of type U that shares s's payload. project maps the payload address
// to the address of the U it contains, usually an embedded struct or a field, and is called
// once; the result is cached in the new handle. The new handle keeps the whole payload alive.
//
// An empty s produces an empty handle without calling project.
func Upcast[U any, T any](s *Shared[T], project func(*T) *U) Shared[U] {
	if s.cb == nil {
		return Shared[U]{}
	}

	ptr := project(s.ptr)
	return lockFrom(s.cb, ptr)
}

// UpcastMove is Upcast, except that s's share is moved into the result and s is left empty
func UpcastMove[U any, T any](s *Shared[T], project func(*T) *U) Shared[U] {
	if s.cb == nil {
		return Shared[U]{}
	}

	ptr := project(s.ptr)
	cb := s.cb
	s.cb = nil
	s.ptr = nil

	return Shared[U]{cb: cb, ptr: ptr}
}

// UpcastWeak returns a weak handle of type U observing w's payload. project only computes an
// address and is still called when w has expired.
func UpcastWeak[U any, T any](w *Weak[T], project func(*T) *U) Weak[U] {
	if w.cb == nil {
		return Weak[U]{}
	}

	var ptr *U
	if w.ptr != nil {
		ptr = project(w.ptr)
	}

	acquireWeak(w.cb)
	return Weak[U]{cb: w.cb, ptr: ptr}
}

// UpcastWeakMove is UpcastWeak, except that w's hold on the block is moved into the result and w
// is left empty
func UpcastWeakMove[U any, T any](w *Weak[T], project func(*T) *U) Weak[U] {
	if w.cb == nil {
		return Weak[U]{}
	}

	var ptr *U
	if w.ptr != nil {
		ptr = project(w.ptr)
	}

	cb := w.cb
	w.cb = nil
	w.ptr = nil

	return Weak[U]{cb: cb, ptr: ptr}
}
