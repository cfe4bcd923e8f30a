package memory

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/refcount/memory/internal/utils"
	"github.com/vkngwrapper/refcount/memutils"
	"github.com/vkngwrapper/refcount/memutils/metadata"
	"golang.org/x/exp/slog"
)

// ArenaResource is a Resource with a fixed byte budget. Every allocation reserves a range of
// the budget, placed by TLSF metadata with the layout's size and alignment, and fails with
// memutils.ErrOutOfMemory once no suitable range remains. The memory handed out comes from an
// upstream resource, so values stored in it remain visible to the garbage collector; the arena
// only decides whether a request fits.
//
// Ranges are returned to the budget when the matching pointer is deallocated.
type ArenaResource struct {
	logger   *slog.Logger
	mutex    utils.OptionalRWMutex
	flags    ArenaCreateFlags
	strategy metadata.AllocationStrategy
	upstream Resource

	metadata    *metadata.TLSFBlockMetadata
	allocations *swiss.Map[unsafe.Pointer, metadata.BlockAllocationHandle]
}

var _ Resource = &ArenaResource{}

// NewArenaResource creates an arena that can hold up to capacity bytes of live allocations.
// A nil logger discards log output.
func NewArenaResource(logger *slog.Logger, capacity int, options ArenaCreateOptions) (*ArenaResource, error) {
	if capacity < 1 {
		return nil, errors.Newf("invalid arena capacity: %d", capacity)
	}

	if logger == nil {
		logger = discardLogger()
	}

	upstream := options.Upstream
	if upstream == nil {
		upstream = DefaultResource
	}

	arena := &ArenaResource{
		logger:   logger,
		flags:    options.Flags,
		strategy: options.Strategy,
		upstream: upstream,

		metadata:    metadata.NewTLSFBlockMetadata(),
		allocations: swiss.NewMap[unsafe.Pointer, metadata.BlockAllocationHandle](42),
	}
	arena.mutex.Init(options.Flags&ArenaCreateExternallySynchronized == 0)
	arena.metadata.Init(capacity)

	logger.Debug("ArenaResource::New",
		slog.Int("Capacity", capacity),
		slog.String("Flags", options.Flags.String()),
		slog.String("Strategy", options.Strategy.String()),
	)

	return arena, nil
}

// Capacity is the total byte budget of the arena
func (a *ArenaResource) Capacity() int {
	return a.metadata.Size()
}

func (a *ArenaResource) Allocate(layout Layout) (unsafe.Pointer, error) {
	a.logger.Debug("ArenaResource::Allocate", slog.Any("Layout", layout))

	if err := layout.Validate(); err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	size := layout.Size()
	if size == 0 {
		// Zero-sized values take no budget, but still reserve a byte so each pointer is unique
		size = 1
	}

	success, request, err := a.metadata.CreateAllocationRequest(size, layout.Align(), a.strategy)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, errors.Wrapf(memutils.ErrOutOfMemory,
			"arena cannot fit %d bytes: %d of %d bytes free", size, a.metadata.SumFreeSize(), a.metadata.Size())
	}

	ptr, err := a.upstream.Allocate(layout)
	if err != nil {
		return nil, err
	}

	err = a.metadata.Alloc(request, layout)
	if err != nil {
		a.upstream.Deallocate(ptr, layout)
		return nil, err
	}

	a.allocations.Put(ptr, request.BlockAllocationHandle)
	memutils.DebugValidate(a.metadata)

	return ptr, nil
}

func (a *ArenaResource) Deallocate(ptr unsafe.Pointer, layout Layout) {
	a.logger.Debug("ArenaResource::Deallocate", slog.Any("Layout", layout))

	if ptr == nil {
		return
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	handle, ok := a.allocations.Get(ptr)
	if !ok {
		a.logger.Warn("ArenaResource::Deallocate received a pointer that it did not allocate",
			slog.Any("Error", memutils.ErrForeignPointer),
			slog.Any("Layout", layout),
		)
		return
	}

	userData, err := a.metadata.AllocationUserData(handle)
	if err == nil {
		if allocated, isLayout := userData.(Layout); isLayout && allocated != layout {
			a.logger.Warn("ArenaResource::Deallocate layout does not match the allocation",
				slog.Any("Allocated", allocated),
				slog.Any("Deallocated", layout),
			)
		}
	}

	err = a.metadata.Free(handle)
	if err != nil {
		a.logger.Warn("ArenaResource::Deallocate failed to free arena range", slog.Any("Error", err))
		return
	}

	a.allocations.Delete(ptr)
	a.upstream.Deallocate(ptr, layout)
	memutils.DebugValidate(a.metadata)
}

// AllocationCount is the number of live allocations in the arena
func (a *ArenaResource) AllocationCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.metadata.AllocationCount()
}

// IsEmpty reports whether every allocation has been returned
func (a *ArenaResource) IsEmpty() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.metadata.IsEmpty()
}

// Statistics retrieves the arena's current usage
func (a *ArenaResource) Statistics(stats *memutils.Statistics) {
	a.logger.Debug("ArenaResource::Statistics")

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	stats.Clear()
	a.metadata.AddStatistics(stats)
}

// DetailedStatistics retrieves the arena's current usage, including the extremes of allocation and
// free range sizes
func (a *ArenaResource) DetailedStatistics(stats *memutils.DetailedStatistics) {
	a.logger.Debug("ArenaResource::DetailedStatistics")

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	stats.Clear()
	a.metadata.AddDetailedStatistics(stats)
}

// BuildStatsString produces a json document describing the arena. When detailed is true, the
// document also contains a map of every allocation and free range.
func (a *ArenaResource) BuildStatsString(detailed bool) string {
	a.logger.Debug("ArenaResource::BuildStatsString")

	var stats memutils.DetailedStatistics
	a.DetailedStatistics(&stats)

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Flags").String(a.flags.String())
	obj.Name("Strategy").String(a.strategy.String())

	totalObj := obj.Name("Total").Object()
	stats.WriteJson(&totalObj)
	totalObj.End()

	if detailed {
		mapObj := obj.Name("DetailedMap").Object()
		a.metadata.PrintDetailedMap(&mapObj)
		mapObj.End()
	}

	obj.End()

	return string(writer.Bytes())
}

// Validate checks the arena's internal bookkeeping for consistency
func (a *ArenaResource) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	err := a.metadata.Validate()
	if err != nil {
		return err
	}

	if a.allocations.Count() != a.metadata.AllocationCount() {
		return errors.Newf("arena tracks %d pointers but its metadata holds %d allocations",
			a.allocations.Count(), a.metadata.AllocationCount())
	}

	return nil
}

// Destroy releases every range still held in the arena. Allocations that were never deallocated
// are reported as leaks, both through the log and through the returned error. The upstream
// memory behind leaked allocations is not released, since the caller may still be using it.
func (a *ArenaResource) Destroy() error {
	a.logger.Debug("ArenaResource::Destroy")

	if a.flags&ArenaCreateValidateOnDestroy != 0 {
		err := a.Validate()
		if err != nil {
			return errors.Wrap(err, "arena failed validation during destroy")
		}
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	leaked := a.metadata.AllocationCount()
	if leaked == 0 {
		return nil
	}

	err := a.metadata.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
		if free {
			return nil
		}

		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] arena allocation was never deallocated",
			slog.Int("offset", offset),
			slog.Int("size", size),
			slog.Any("layout", userData),
		)
		return nil
	})
	if err != nil {
		a.logger.LogAttrs(context.Background(),
			slog.LevelError,
			"[UNRELEASED MEMORY] error while iterating unreleased memory",
			slog.Any("error", err))
	}

	a.metadata.Clear()
	a.allocations = swiss.NewMap[unsafe.Pointer, metadata.BlockAllocationHandle](42)

	return errors.Newf("arena destroyed with %d live allocations", leaked)
}
