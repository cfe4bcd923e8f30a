package memory

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/refcount/memory/internal/utils"
	"github.com/vkngwrapper/refcount/memutils"
)

// CountingStatistics is a snapshot of the traffic seen by a CountingResource
type CountingStatistics struct {
	Allocations   int
	Deallocations int
	LiveBytes     int
	PeakBytes     int
}

// Live is the number of allocations that have not been deallocated
func (s CountingStatistics) Live() int {
	return s.Allocations - s.Deallocations
}

// CountingResource wraps another resource and records every call made to it. It keeps the
// layout of each live pointer, so deallocations can be checked against the allocation they return.
type CountingResource struct {
	upstream Resource

	mutex  utils.OptionalMutex
	stats  CountingStatistics
	live   *swiss.Map[unsafe.Pointer, Layout]
	errors []error
}

var _ Resource = &CountingResource{}

// NewCountingResource wraps upstream, or DefaultResource when upstream is nil. If
// externallySynchronized is true, the caller promises never to use the resource from more than
// one goroutine at a time.
func NewCountingResource(upstream Resource, externallySynchronized bool) *CountingResource {
	if upstream == nil {
		upstream = DefaultResource
	}

	counting := &CountingResource{
		upstream: upstream,
		live:     swiss.NewMap[unsafe.Pointer, Layout](16),
	}
	counting.mutex.Init(!externallySynchronized)

	return counting
}

func (c *CountingResource) Allocate(layout Layout) (unsafe.Pointer, error) {
	ptr, err := c.upstream.Allocate(layout)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.stats.Allocations++
	c.stats.LiveBytes += layout.Size()
	if c.stats.LiveBytes > c.stats.PeakBytes {
		c.stats.PeakBytes = c.stats.LiveBytes
	}
	c.live.Put(ptr, layout)

	return ptr, nil
}

func (c *CountingResource) Deallocate(ptr unsafe.Pointer, layout Layout) {
	c.mutex.Lock()

	allocated, ok := c.live.Get(ptr)
	switch {
	case !ok:
		c.errors = append(c.errors, errors.Wrapf(memutils.ErrForeignPointer, "deallocating %s", layout))
		c.mutex.Unlock()
		return
	case allocated != layout:
		c.errors = append(c.errors, errors.Newf("deallocating %s, but %s was allocated", layout, allocated))
	}

	c.live.Delete(ptr)
	c.stats.Deallocations++
	c.stats.LiveBytes -= allocated.Size()
	c.mutex.Unlock()

	c.upstream.Deallocate(ptr, allocated)
}

// Statistics returns a snapshot of the counters
func (c *CountingResource) Statistics() CountingStatistics {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.stats
}

// Err returns every misuse recorded so far, joined into one error, or nil if there was none
func (c *CountingResource) Err() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var err error
	for _, e := range c.errors {
		err = errors.CombineErrors(err, e)
	}
	return err
}
