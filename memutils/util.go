package memutils

import (
	"github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return errors.Wrapf(ErrPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// IsAligned reports whether value is a multiple of the power-of-two alignment
func IsAligned(value int, alignment uint) bool {
	return value&int(alignment-1) == 0
}
