package rc

// Weak observes a payload owned by Shared handles without keeping it alive. It keeps the
// control block alive instead, so it can always tell whether the payload is still there.
//
// The zero value is an empty handle. As with Shared, Weak values are duplicated with Clone or
// Assign and must be released with Release, never copied as plain structs.
type Weak[T any] struct {
	cb  controlBlock
	ptr *T
}

// NewWeak returns a weak handle observing the payload of s. An empty s produces an empty handle.
func NewWeak[T any](s *Shared[T]) Weak[T] {
	if s.cb == nil {
		return Weak[T]{}
	}

	acquireWeak(s.cb)
	return Weak[T]{cb: s.cb, ptr: s.ptr}
}

func (w *Weak[T]) Clone() Weak[T] {
	if w.cb == nil {
		return Weak[T]{}
	}

	acquireWeak(w.cb)
	return Weak[T]{cb: w.cb, ptr: w.ptr}
}

func (w *Weak[T]) Move() Weak[T] {
	moved := *w
	*w = Weak[T]{}
	return moved
}

func (w *Weak[T]) Swap(other *Weak[T]) {
	w.cb, other.cb = other.cb, w.cb
	w.ptr, other.ptr = other.ptr, w.ptr
}

func (w *Weak[T]) Assign(other *Weak[T]) {
	tmp := other.Clone()
	w.Swap(&tmp)
	tmp.Release()
}

func (w *Weak[T]) AssignMove(other *Weak[T]) {
	tmp := other.Move()
	w.Swap(&tmp)
	tmp.Release()
}

// Release gives up this handle's hold on the control block. The handle is empty afterward.
func (w *Weak[T]) Release() {
	cb := w.cb
	if cb == nil {
		return
	}

	w.cb = nil
	w.ptr = nil
	releaseWeak(cb)
}

// Expired reports whether the payload is gone. An empty handle is always expired.
func (w *Weak[T]) Expired() bool {
	return w.cb == nil || w.cb.refs().strong == 0
}

// Lock returns a strong handle to the payload, or an empty handle if it has expired
func (w *Weak[T]) Lock() Shared[T] {
	if w.Expired() {
		return Shared[T]{}
	}

	return lockFrom(w.cb, w.ptr)
}

// UseCount is the number of strong handles to the payload, or 0 for an empty handle
func (w *Weak[T]) UseCount() uint {
	if w.cb == nil {
		return 0
	}

	return w.cb.refs().strong
}

func (w *Weak[T]) IsEmpty() bool {
	return w.cb == nil
}
