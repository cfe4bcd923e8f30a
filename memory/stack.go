package memory

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/refcount/memory/internal/utils"
	"github.com/vkngwrapper/refcount/memutils"
	"golang.org/x/exp/slog"
)

// StackResource hands out a fixed number of bytes in order, never reusing any of them. Each
// allocation is placed at the next offset that satisfies its alignment. Deallocate does nothing:
// capacity is only ever consumed.
//
// Like ArenaResource, the offsets are bookkeeping and the memory itself comes from the Go heap.
type StackResource struct {
	logger   *slog.Logger
	mutex    utils.OptionalMutex
	capacity int
	top      int
}

var _ Resource = &StackResource{}

// NewStackResource creates a stack of capacity bytes. If externallySynchronized is true, the
// caller promises never to use the stack from more than one goroutine at a time.
func NewStackResource(logger *slog.Logger, capacity int, externallySynchronized bool) (*StackResource, error) {
	if capacity < 1 {
		return nil, errors.Newf("invalid stack capacity: %d", capacity)
	}

	if logger == nil {
		logger = discardLogger()
	}

	stack := &StackResource{
		logger:   logger,
		capacity: capacity,
	}
	stack.mutex.Init(!externallySynchronized)

	return stack, nil
}

func (s *StackResource) Allocate(layout Layout) (unsafe.Pointer, error) {
	s.logger.Debug("StackResource::Allocate", slog.Any("Layout", layout))

	if err := layout.Validate(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	begin := memutils.AlignUp(s.top, layout.Align())
	end := begin + layout.Size()
	if end > s.capacity {
		return nil, errors.Wrapf(memutils.ErrOutOfMemory,
			"stack cannot fit %d bytes at offset %d: capacity is %d", layout.Size(), begin, s.capacity)
	}

	ptr, err := HeapResource{}.Allocate(layout)
	if err != nil {
		return nil, err
	}

	s.top = end
	return ptr, nil
}

func (s *StackResource) Deallocate(ptr unsafe.Pointer, layout Layout) {}

// Used is the number of bytes consumed so far, including alignment padding
func (s *StackResource) Used() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.top
}

// Remaining is the number of bytes that have not yet been consumed
func (s *StackResource) Remaining() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.capacity - s.top
}
