package memutils

import "github.com/cockroachdb/errors"

// ErrPowerOfTwo is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var ErrPowerOfTwo = errors.New("number must be a power of two")

// ErrOutOfMemory is returned by memory resources when a request cannot be satisfied from the
// capacity they manage. Callers should test for it with errors.Is, since resources wrap it with
// details about the failed request.
var ErrOutOfMemory = errors.New("out of memory")

// ErrForeignPointer is returned when memory is handed back to a resource that did not allocate it
var ErrForeignPointer = errors.New("pointer was not allocated by this resource")
