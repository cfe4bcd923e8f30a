package memory

import (
	"fmt"
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Layout describes a request for Count contiguous elements of Type. It carries the element type
// rather than just a byte count so that resources hand out memory the garbage collector can scan.
type Layout struct {
	Type  reflect.Type
	Count int
}

// LayoutOf returns the Layout of count contiguous values of T
func LayoutOf[T any](count int) Layout {
	return Layout{
		Type:  reflect.TypeOf((*T)(nil)).Elem(),
		Count: count,
	}
}

// Size is the number of bytes covered by the layout
func (l Layout) Size() int {
	return int(l.Type.Size()) * l.Count
}

// Align is the required alignment of the first element, always a power of two
func (l Layout) Align() uint {
	return uint(l.Type.Align())
}

func (l Layout) String() string {
	return fmt.Sprintf("%d x %s (%d bytes, align %d)", l.Count, l.Type, l.Size(), l.Align())
}

// Validate rejects layouts that no resource can satisfy: a missing type, a count below one, or
// a byte size that does not fit in an int
func (l Layout) Validate() error {
	if l.Type == nil {
		return errors.New("layout has no element type")
	}

	if l.Count < 1 {
		return errors.Newf("invalid allocation count: %d", l.Count)
	}

	elemSize := int(l.Type.Size())
	if elemSize > 0 && l.Count > math.MaxInt/elemSize {
		return errors.Newf("allocation of %d x %s overflows", l.Count, l.Type)
	}

	return nil
}
