package rc_test

import (
	"github.com/vkngwrapper/refcount/rc"
)

type tracked struct {
	value     int
	finalized *int
}

func (t *tracked) Finalize() {
	*t.finalized++
}

func countingDeleter[T any](calls *int) rc.Deleter[T] {
	return func(*T) {
		*calls++
	}
}
