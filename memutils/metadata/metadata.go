package metadata

import (
	"fmt"
	"math"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/refcount/memutils"
)

// BlockAllocationHandle is a numeric handle used to identify individual allocations within a BlockMetadata
type BlockAllocationHandle uint64

const (
	// NoAllocation is the handle value used when no allocation is referenced
	NoAllocation BlockAllocationHandle = math.MaxUint64
)

// BlockMetadata represents a single contiguous range of bytes within some system. It manages
// suballocations within the range, allowing allocations to be requested and freed, as well as
// enumerated and queried. The metadata never touches the memory it describes: it only does the
// bookkeeping of offsets and sizes, so it can equally describe a real buffer or a virtual budget.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. It gives the implementation an opportunity
	// to ensure that metadata structures are prepared for allocations, as well as allows the consumer
	// to inform the implementation of the size in bytes of the range it will be managing.
	Init(size int)
	// Size retrieves the size in bytes that the block was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks may be expensive, depending
	// on the implementation. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error, but this may assist in diagnosing issues with the implementation.
	Validate() error
	// AllocationCount returns the number of suballocations currently live in the implementation.
	AllocationCount() int
	// FreeRegionsCount returns the number of unique regions of free memory in the block. Adjacent
	// regions of free memory are always merged, so they count as a single region.
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes in the block.
	SumFreeSize() int
	// IsEmpty will return true if this block has no live suballocations
	IsEmpty() bool

	// VisitAllRegions will call the provided callback once for each allocation and free region in
	// the block. This walks every region and should generally be used for diagnostics only.
	VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error) error

	// AllocationOffset returns the offset in bytes of a live allocation within the block.
	AllocationOffset(allocHandle BlockAllocationHandle) (int, error)
	// AllocationSize returns the size in bytes of a live allocation within the block.
	AllocationSize(allocHandle BlockAllocationHandle) (int, error)
	// AllocationUserData returns the userdata value provided by the consumer for a live allocation.
	AllocationUserData(allocHandle BlockAllocationHandle) (any, error)
	// SetAllocationUserData replaces the userdata value of a live allocation.
	SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error

	// AddDetailedStatistics sums this block's allocation statistics into the provided
	// memutils.DetailedStatistics object.
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this block's allocation statistics into the provided memutils.Statistics object.
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// PrintDetailedMap populates a json object with information about this block and every region in it
	PrintDetailedMap(json *jwriter.ObjectState)

	// CreateAllocationRequest retrieves an AllocationRequest object indicating where the implementation
	// would prefer to allocate the requested memory. That object can be passed to Alloc to commit the
	// allocation. The boolean return value is false when no free region can hold the request.
	//
	// allocSize - the size in bytes of the requested allocation
	// allocAlignment - the minimum alignment of the requested allocation, which must be a power of two
	// strategy - Whether to prioritize memory usage, memory offset, or allocation speed when choosing
	// a place for the requested allocation.
	CreateAllocationRequest(allocSize int, allocAlignment uint, strategy AllocationStrategy) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest object, creating the suballocation within the block based
	// on the data described in the AllocationRequest. The implementation must return an error if the
	// allocation is no longer valid- i.e. the requested free region no longer exists, is not free,
	// or is no longer large enough to support the request.
	Alloc(request AllocationRequest, userData any) error

	// Free frees a suballocation within the block, causing it to become a free region once again.
	//
	// The implementation must return an error if the provided handle does not map to a live allocation
	// within this block.
	Free(allocHandle BlockAllocationHandle) error
}

// BlockMetadataBase is a simple struct that provides a few shared utilities for BlockMetadata
// implementations.
type BlockMetadataBase struct {
	size int
}

// Init prepares this structure for allocations and sizes the block in bytes based on the parameter size.
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the block in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

func (m *BlockMetadataBase) printDetailedMapHeader(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}

func (m *BlockMetadataBase) printDetailedMapUnusedRange(json *jwriter.ArrayState, offset, size int) {
	obj := json.Object()
	defer obj.End()

	obj.Name("Offset").Int(offset)
	obj.Name("Type").String("Free")
	obj.Name("Size").Int(size)
}

func (m *BlockMetadataBase) printDetailedMapAllocation(json *jwriter.ArrayState, offset, size int, userData any) {
	obj := json.Object()
	defer obj.End()

	obj.Name("Offset").Int(offset)
	obj.Name("Type").String("Allocation")
	obj.Name("Size").Int(size)

	if stringer, ok := userData.(fmt.Stringer); ok {
		obj.Name("CustomData").String(stringer.String())
	} else if userData != nil {
		obj.Name("CustomData").String(fmt.Sprintf("%+v", userData))
	}
}
