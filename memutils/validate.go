package memutils

// Validatable is anything that can check its own internal consistency. DebugValidate runs the
// check in builds tagged debug_mem_utils and panics on failure.
type Validatable interface {
	Validate() error
}
