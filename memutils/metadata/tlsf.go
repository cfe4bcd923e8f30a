package metadata

import (
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/refcount/memutils"
)

const (
	SmallBufferSize        = 256
	SecondLevelIndex uint8 = 5
	MemoryClassShift       = 7
	MaxMemoryClasses       = 65 - MemoryClassShift
)

var regionPool = sync.Pool{
	New: func() any {
		return &tlsfRegion{}
	},
}

// tlsfRegion is one physical range of the block, either allocated or free. Regions form a
// doubly-linked physical chain ordered by offset, and free regions are additionally threaded
// through a per-size-class free list.
type tlsfRegion struct {
	offset       int
	size         int
	prevPhysical *tlsfRegion
	nextPhysical *tlsfRegion

	prevFree *tlsfRegion
	nextFree *tlsfRegion

	userData any
	handle   BlockAllocationHandle
}

func (r *tlsfRegion) MarkFree() {
	r.prevFree = nil
}

func (r *tlsfRegion) MarkTaken() {
	r.prevFree = r
}

func (r *tlsfRegion) IsFree() bool {
	return r.prevFree != r
}

// TLSFBlockMetadata is a two-level segregated fit implementation of BlockMetadata. Allocation
// and free are O(1) in the common case: free regions are bucketed by a power-of-two memory class
// and a linear second-level index, with bitmaps recording which buckets are populated.
//
// The trailing free region of the block (the "null region") is kept out of the free lists, which
// lets the block grow into untouched space without searching.
type TLSFBlockMetadata struct {
	BlockMetadataBase

	allocCount        int
	freeRegionsCount  int
	freeRegionsSize   int
	isFreeBitmap      uint32
	memoryClasses     int
	innerIsFreeBitmap [MaxMemoryClasses]uint32

	nextHandle BlockAllocationHandle
	handleKey  *swiss.Map[BlockAllocationHandle, *tlsfRegion]
	freeList   []*tlsfRegion
	nullRegion *tlsfRegion
	headRegion *tlsfRegion
}

var _ BlockMetadata = &TLSFBlockMetadata{}

func NewTLSFBlockMetadata() *TLSFBlockMetadata {
	return &TLSFBlockMetadata{}
}

func (m *TLSFBlockMetadata) allocateRegion() *tlsfRegion {
	r := regionPool.Get().(*tlsfRegion)
	r.offset = 0
	r.size = 0
	r.prevPhysical = nil
	r.nextPhysical = nil
	r.nextFree = nil
	r.prevFree = nil
	r.userData = nil
	m.nextHandle++
	r.handle = m.nextHandle
	m.handleKey.Put(r.handle, r)
	return r
}

func (m *TLSFBlockMetadata) freeRegion(r *tlsfRegion) {
	m.handleKey.Delete(r.handle)
	r.userData = nil
	regionPool.Put(r)
}

func (m *TLSFBlockMetadata) getRegion(handle BlockAllocationHandle) (*tlsfRegion, error) {
	region, ok := m.handleKey.Get(handle)
	if !ok {
		return nil, errors.Newf("received handle %d, which is incompatible with this metadata", handle)
	}
	return region, nil
}

func (m *TLSFBlockMetadata) getAllocation(handle BlockAllocationHandle) (*tlsfRegion, error) {
	region, err := m.getRegion(handle)
	if err != nil {
		return nil, err
	}

	if region.IsFree() {
		return nil, errors.Newf("handle %d refers to a free region", handle)
	}

	return region, nil
}

func (m *TLSFBlockMetadata) Init(size int) {
	m.BlockMetadataBase.Init(size)
	m.handleKey = swiss.NewMap[BlockAllocationHandle, *tlsfRegion](42)

	m.nullRegion = m.allocateRegion()
	m.nullRegion.size = size
	m.nullRegion.MarkFree()
	m.headRegion = m.nullRegion
	memoryClass := m.sizeToMemoryClass(size)
	sli := m.sizeToSecondIndex(size, memoryClass)

	listSize := 1
	sliMask := int(uint(1) << SecondLevelIndex)
	if memoryClass != 0 {
		listSize = int(memoryClass-1)*sliMask + int(sli+1)
	}

	listSize += 4

	m.memoryClasses = int(memoryClass + 2)
	m.freeList = make([]*tlsfRegion, listSize)
}

func (m *TLSFBlockMetadata) Validate() error {
	if m.SumFreeSize() > m.Size() {
		return errors.New("invalid metadata free size")
	}

	calculatedSize := m.nullRegion.size
	calculatedFreeSize := m.nullRegion.size
	var allocCount, freeCount, freeListCount int

	for listIndex := 0; listIndex < len(m.freeList); listIndex++ {
		region := m.freeList[listIndex]
		if region == nil {
			continue
		}

		if !region.IsFree() {
			return errors.Newf("region at offset %d is in the free list but is not free", region.offset)
		}

		if region.prevFree != nil {
			return errors.Newf("region at offset %d is the head of a free list but has a previous region", region.offset)
		}

		freeListCount++
		for region.nextFree != nil {
			if !region.nextFree.IsFree() {
				return errors.Newf("region at offset %d is in the free list but it is not free", region.nextFree.offset)
			}
			if region.nextFree.prevFree != region {
				return errors.Newf("region at offset %d lists the region at offset %d as its next region, but the reverse reference is broken", region.offset, region.nextFree.offset)
			}

			freeListCount++
			region = region.nextFree
		}
	}

	if m.nullRegion.nextPhysical != nil {
		return errors.New("null region must be the tail of its physical chain")
	}

	if m.nullRegion.offset+m.nullRegion.size != m.size {
		return errors.Newf("null region ends at %d, but the block is %d bytes", m.nullRegion.offset+m.nullRegion.size, m.size)
	}

	if m.nullRegion.prevPhysical != nil && m.nullRegion.prevPhysical.nextPhysical != m.nullRegion {
		return errors.New("null region has a physical region before it in its chain, but the reverse reference is broken")
	}

	nextOffset := m.nullRegion.offset

	for prev := m.nullRegion.prevPhysical; prev != nil; prev = prev.prevPhysical {
		if prev.offset+prev.size != nextOffset {
			return errors.Newf("physical region at offset %d does not end at the next region's start offset", prev.offset)
		}

		nextOffset = prev.offset
		calculatedSize += prev.size

		if prev.IsFree() {
			freeCount++
			calculatedFreeSize += prev.size
		} else {
			allocCount++
		}

		if prev.prevPhysical != nil && prev.prevPhysical.nextPhysical != prev {
			return errors.Newf("region at offset %d has a previous physical region, but the reverse reference is broken", prev.offset)
		}
	}

	if freeListCount != freeCount {
		return errors.Newf("the number of free regions in the physical chain and the number of regions in the free list do not match! free list size: %d, physical chain free regions: %d", freeListCount, freeCount)
	}

	if nextOffset != 0 {
		return errors.Newf("the first physical region should have an offset of 0, but instead it has an offset of %d", nextOffset)
	}

	if calculatedSize != m.size {
		return errors.Newf("the full size of the metadata is %d, but the regions only added up to %d", m.size, calculatedSize)
	}

	if calculatedFreeSize != m.SumFreeSize() {
		return errors.Newf("the free size of the metadata is %d, but the free regions only added up to %d", m.SumFreeSize(), calculatedFreeSize)
	}

	if allocCount != m.allocCount {
		return errors.Newf("the allocation count of the metadata is %d, but the taken regions only added up to %d", m.allocCount, allocCount)
	}

	if freeCount != m.freeRegionsCount {
		return errors.Newf("the free region count of the metadata is %d, but there were only %d free regions", m.freeRegionsCount, freeCount)
	}

	return nil
}

func (m *TLSFBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += m.size
	if m.nullRegion.size > 0 {
		stats.AddUnusedRange(m.nullRegion.size)
	}

	for region := m.nullRegion.prevPhysical; region != nil; region = region.prevPhysical {
		if region.IsFree() {
			stats.AddUnusedRange(region.size)
		} else {
			stats.AddAllocation(region.size)
		}
	}
}

func (m *TLSFBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount++
	stats.AllocationCount += m.allocCount
	stats.BlockBytes += m.size
	stats.AllocationBytes += m.size - m.SumFreeSize()
}

func (m *TLSFBlockMetadata) getListIndexFromSize(size int) int {
	memoryClass := m.sizeToMemoryClass(size)
	secondIndex := m.sizeToSecondIndex(size, memoryClass)
	return m.getListIndex(memoryClass, secondIndex)
}

func (m *TLSFBlockMetadata) getListIndex(memoryClass uint8, secondIndex uint16) int {
	if memoryClass == 0 {
		return int(secondIndex)
	}

	i := uint32(memoryClass-1)*uint32(uint(1)<<SecondLevelIndex) + uint32(secondIndex)

	return int(i) + 4
}

func (m *TLSFBlockMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *TLSFBlockMetadata) FreeRegionsCount() int {
	if m.nullRegion.size > 0 {
		return m.freeRegionsCount + 1
	}
	return m.freeRegionsCount
}

func (m *TLSFBlockMetadata) SumFreeSize() int {
	return m.freeRegionsSize + m.nullRegion.size
}

func (m *TLSFBlockMetadata) IsEmpty() bool {
	return m.allocCount == 0
}

func (m *TLSFBlockMetadata) sizeToMemoryClass(size int) uint8 {
	if size > SmallBufferSize {
		mostSignificantBit := uint8(63 - bits.LeadingZeros64(uint64(size)))
		return mostSignificantBit - MemoryClassShift
	}

	return 0
}

func (m *TLSFBlockMetadata) sizeToSecondIndex(size int, memoryClass uint8) uint16 {
	if memoryClass != 0 {
		mask := uint(1) << SecondLevelIndex
		indexVal := uint(size) >> (memoryClass + MemoryClassShift - SecondLevelIndex)
		return uint16(indexVal ^ mask)
	}

	return uint16((size - 1) / 64)
}

func (m *TLSFBlockMetadata) CreateAllocationRequest(
	allocSize int, allocAlignment uint,
	strategy AllocationStrategy,
) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if allocSize < 1 {
		return false, allocRequest, errors.Newf("invalid allocSize: %d", allocSize)
	}

	if err := memutils.CheckPow2(allocAlignment, "allocAlignment"); err != nil {
		return false, allocRequest, err
	}

	memutils.DebugValidate(m)

	// Is the block big enough?
	if allocSize > m.SumFreeSize() {
		return false, allocRequest, nil
	}

	// Any free regions in the block?
	if m.freeRegionsCount == 0 {
		success := m.checkRegion(m.nullRegion, len(m.freeList), allocSize, allocAlignment, &allocRequest)
		return success, allocRequest, nil
	}

	// Round up to the next list
	sizeForNextList := allocSize

	smallSizeStep := SmallBufferSize / 4
	if allocSize > SmallBufferSize {
		mostSignificantBit := 63 - bits.LeadingZeros64(uint64(allocSize))
		sizeForNextList += int(uint(1) << (mostSignificantBit - int(SecondLevelIndex)))
	} else if allocSize > SmallBufferSize-smallSizeStep {
		sizeForNextList = SmallBufferSize + 1
	} else {
		sizeForNextList += smallSizeStep
	}

	nextListIndex := 0
	prevListIndex := 0
	doFullSearch := false
	var nextListRegion, prevListRegion *tlsfRegion

	if strategy&AllocationStrategyMinTime != 0 {
		// Check for a larger region first
		nextListRegion, nextListIndex = m.findFreeRegion(sizeForNextList)

		if nextListRegion != nil {
			doFullSearch = true
			if m.checkRegion(nextListRegion, nextListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}
		}

		// If not fitted then the null region
		if m.checkRegion(m.nullRegion, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		// Null region failed, search the larger bucket
		for nextListRegion != nil {
			if m.checkRegion(nextListRegion, nextListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			nextListRegion = nextListRegion.nextFree
		}

		// Failed again, check the best fit bucket
		prevListRegion, prevListIndex = m.findFreeRegion(allocSize)

		for prevListRegion != nil {
			if m.checkRegion(prevListRegion, prevListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			prevListRegion = prevListRegion.nextFree
		}
	} else if strategy&AllocationStrategyMinMemory != 0 {
		// Check the best fit bucket
		prevListRegion, prevListIndex = m.findFreeRegion(allocSize)

		for prevListRegion != nil {
			if m.checkRegion(prevListRegion, prevListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			prevListRegion = prevListRegion.nextFree
		}

		// If failed check the null region
		if m.checkRegion(m.nullRegion, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		// Check the larger bucket
		nextListRegion, nextListIndex = m.findFreeRegion(sizeForNextList)

		for nextListRegion != nil {
			doFullSearch = true
			if m.checkRegion(nextListRegion, nextListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			nextListRegion = nextListRegion.nextFree
		}
	} else if strategy&AllocationStrategyMinOffset != 0 {
		// Walk forward from the lowest offset so the first fit is the lowest fit
		if m.minOffsetCheckRegions(allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		if m.checkRegion(m.nullRegion, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		// Whole range searched, no more memory
		return false, allocRequest, nil
	} else {
		// Check the larger bucket
		nextListRegion, nextListIndex = m.findFreeRegion(sizeForNextList)

		for nextListRegion != nil {
			doFullSearch = true
			if m.checkRegion(nextListRegion, nextListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			nextListRegion = nextListRegion.nextFree
		}

		// If failed, check the null region
		if m.checkRegion(m.nullRegion, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		// Check the best fit bucket
		prevListRegion, prevListIndex = m.findFreeRegion(allocSize)

		for prevListRegion != nil {
			if m.checkRegion(prevListRegion, prevListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			prevListRegion = prevListRegion.nextFree
		}
	}

	if !doFullSearch {
		return false, allocRequest, nil
	}

	// Worst case, full search has to be done
	for nextListIndex++; nextListIndex < len(m.freeList); nextListIndex++ {
		nextListRegion = m.freeList[nextListIndex]
		for nextListRegion != nil {
			if m.checkRegion(nextListRegion, nextListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}

			nextListRegion = nextListRegion.nextFree
		}
	}

	return false, allocRequest, nil
}

func (m *TLSFBlockMetadata) minOffsetCheckRegions(
	allocSize int,
	allocAlignment uint,
	allocRequest *AllocationRequest,
) bool {
	for region := m.headRegion; region != nil; region = region.nextPhysical {
		if region.IsFree() && region.size >= allocSize && region != m.nullRegion {
			if m.checkRegion(region, m.getListIndexFromSize(region.size), allocSize, allocAlignment, allocRequest) {
				return true
			}
		}
	}

	return false
}

func (m *TLSFBlockMetadata) checkRegion(
	region *tlsfRegion,
	listIndex int,
	allocSize int,
	allocAlignment uint,
	allocRequest *AllocationRequest,
) bool {
	if !region.IsFree() {
		panic(fmt.Sprintf("region at offset %d is already taken", region.offset))
	}

	alignedOffset := memutils.AlignUp(region.offset, allocAlignment)

	if region.size < allocSize+alignedOffset-region.offset {
		return false
	}

	allocRequest.BlockAllocationHandle = region.handle
	allocRequest.Size = allocSize
	allocRequest.Offset = alignedOffset

	// Move the region to the head of its list so the next lookup finds it first
	if listIndex != len(m.freeList) && region.prevFree != nil {
		region.prevFree.nextFree = region.nextFree
		if region.nextFree != nil {
			region.nextFree.prevFree = region.prevFree
		}

		region.prevFree = nil
		region.nextFree = m.freeList[listIndex]
		m.freeList[listIndex] = region
		if region.nextFree != nil {
			region.nextFree.prevFree = region
		}
	}

	return true
}

func (m *TLSFBlockMetadata) findFreeRegion(size int) (*tlsfRegion, int) {
	memoryClass := m.sizeToMemoryClass(size)
	innerFreeMap := m.innerIsFreeBitmap[memoryClass] & (uint32(math.MaxUint32) << m.sizeToSecondIndex(size, memoryClass))

	if innerFreeMap == 0 {
		// Check higher levels for available regions
		freeMap := m.isFreeBitmap & (uint32(math.MaxUint32) << (memoryClass + 1))
		if freeMap == 0 {
			return nil, 0
		}

		// Find the lowest populated memory class
		memoryClass = uint8(bits.TrailingZeros32(freeMap))
		innerFreeMap = m.innerIsFreeBitmap[memoryClass]
		if innerFreeMap == 0 {
			panic("free bitmap is in an invalid state")
		}
	}

	listIndex := m.getListIndex(memoryClass, uint16(bits.TrailingZeros32(innerFreeMap)))
	if m.freeList[listIndex] == nil {
		panic(fmt.Sprintf("free list index %d was listed as having free regions, but no regions were in the free list", listIndex))
	}

	return m.freeList[listIndex], listIndex
}

func (m *TLSFBlockMetadata) PrintDetailedMap(json *jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	m.AddDetailedStatistics(&stats)

	m.printDetailedMapHeader(json, stats.BlockBytes-stats.AllocationBytes, stats.AllocationCount, stats.UnusedRangeCount)

	arrayState := json.Name("Suballocations").Array()
	defer arrayState.End()

	for region := m.headRegion; region != nil; region = region.nextPhysical {
		if region.size == 0 {
			continue
		}

		if region.IsFree() {
			m.printDetailedMapUnusedRange(&arrayState, region.offset, region.size)
		} else {
			m.printDetailedMapAllocation(&arrayState, region.offset, region.size, region.userData)
		}
	}
}

func (m *TLSFBlockMetadata) Alloc(req AllocationRequest, userData any) error {
	currentRegion, err := m.getRegion(req.BlockAllocationHandle)
	if err != nil {
		return err
	}

	if !currentRegion.IsFree() {
		return errors.New("allocation request pointed at a region that is already taken")
	}

	offset := req.Offset
	if currentRegion.offset > offset {
		return errors.New("allocation request had a region handle that was incompatible with the requested offset")
	}

	if currentRegion.offset+currentRegion.size < offset+req.Size {
		return errors.New("allocation request had a region handle too small for the request")
	}

	if currentRegion != m.nullRegion {
		m.removeFreeRegion(currentRegion)
	}

	missingAlignment := offset - currentRegion.offset

	// Append missing alignment to the previous region or create a new one
	if missingAlignment != 0 {
		prevRegion := currentRegion.prevPhysical

		if prevRegion == nil {
			return errors.New("somehow had missing alignment at offset 0")
		}

		if prevRegion.IsFree() {
			oldListIndex := m.getListIndexFromSize(prevRegion.size)
			prevRegion.size += missingAlignment

			// The new size may move the region to another list
			if oldListIndex != m.getListIndexFromSize(prevRegion.size) {
				prevRegion.size -= missingAlignment
				m.removeFreeRegion(prevRegion)

				prevRegion.size += missingAlignment
				m.insertFreeRegion(prevRegion)
			} else {
				m.freeRegionsSize += missingAlignment
			}
		} else {
			newRegion := m.allocateRegion()
			currentRegion.prevPhysical = newRegion
			prevRegion.nextPhysical = newRegion
			newRegion.prevPhysical = prevRegion
			newRegion.nextPhysical = currentRegion
			newRegion.size = missingAlignment
			newRegion.offset = currentRegion.offset
			newRegion.MarkTaken()

			m.insertFreeRegion(newRegion)
		}

		currentRegion.size -= missingAlignment
		currentRegion.offset += missingAlignment
	}

	size := req.Size
	if currentRegion.size == size {
		if currentRegion == m.nullRegion {
			// Set up a new, empty null region
			m.nullRegion = m.allocateRegion()
			m.nullRegion.size = 0
			m.nullRegion.offset = currentRegion.offset + size
			m.nullRegion.prevPhysical = currentRegion
			m.nullRegion.nextPhysical = nil
			m.nullRegion.MarkFree()
			currentRegion.nextPhysical = m.nullRegion
			currentRegion.MarkTaken()
		}
	} else {
		// Split off the remainder as a new free region
		newRegion := m.allocateRegion()
		newRegion.size = currentRegion.size - size
		newRegion.offset = currentRegion.offset + size
		newRegion.prevPhysical = currentRegion
		newRegion.nextPhysical = currentRegion.nextPhysical
		currentRegion.nextPhysical = newRegion
		currentRegion.size = size

		if currentRegion == m.nullRegion {
			m.nullRegion = newRegion
			m.nullRegion.MarkFree()
			m.nullRegion.nextFree = nil
			currentRegion.MarkTaken()
		} else {
			newRegion.nextPhysical.prevPhysical = newRegion
			newRegion.MarkTaken()
			m.insertFreeRegion(newRegion)
		}
	}

	currentRegion.userData = userData
	m.allocCount++

	return nil
}

func (m *TLSFBlockMetadata) Free(allocHandle BlockAllocationHandle) error {
	region, err := m.getAllocation(allocHandle)
	if err != nil {
		return err
	}

	region.userData = nil
	next := region.nextPhysical
	m.allocCount--

	// Try merging with the previous region
	prev := region.prevPhysical
	if prev != nil && prev.IsFree() {
		m.removeFreeRegion(prev)
		m.mergeRegion(region, prev)
	}

	if !next.IsFree() {
		m.insertFreeRegion(region)
	} else if next == m.nullRegion {
		m.mergeRegion(m.nullRegion, region)
	} else {
		m.removeFreeRegion(next)
		m.mergeRegion(next, region)

		m.insertFreeRegion(next)
	}

	return nil
}

func (m *TLSFBlockMetadata) removeFreeRegion(region *tlsfRegion) {
	if region == m.nullRegion {
		panic("cannot remove the null region")
	}
	if !region.IsFree() {
		panic("provided region is not free")
	}

	if region.nextFree != nil {
		region.nextFree.prevFree = region.prevFree
	}
	if region.prevFree != nil {
		region.prevFree.nextFree = region.nextFree
	} else {
		memClass := m.sizeToMemoryClass(region.size)
		secondIndex := m.sizeToSecondIndex(region.size, memClass)
		index := m.getListIndex(memClass, secondIndex)

		if m.freeList[index] != region {
			panic("region was not in the free list at the expected location")
		}
		m.freeList[index] = region.nextFree
		if region.nextFree == nil {
			m.innerIsFreeBitmap[memClass] &= ^(uint32(1) << secondIndex)
			if m.innerIsFreeBitmap[memClass] == 0 {
				m.isFreeBitmap &= ^(uint32(1) << memClass)
			}
		}
	}

	region.MarkTaken()
	region.userData = nil
	m.freeRegionsCount--
	m.freeRegionsSize -= region.size
}

func (m *TLSFBlockMetadata) insertFreeRegion(region *tlsfRegion) {
	if region == m.nullRegion {
		panic("cannot insert the null region")
	}

	if region.IsFree() {
		panic("region is already free")
	}

	memClass := m.sizeToMemoryClass(region.size)
	secondIndex := m.sizeToSecondIndex(region.size, memClass)
	index := m.getListIndex(memClass, secondIndex)

	if index >= len(m.freeList) {
		panic("invalid free list index found for region")
	}

	region.prevFree = nil
	region.nextFree = m.freeList[index]
	m.freeList[index] = region
	if region.nextFree != nil {
		region.nextFree.prevFree = region
	} else {
		m.innerIsFreeBitmap[memClass] |= uint32(1) << secondIndex
		m.isFreeBitmap |= uint32(1) << memClass
	}
	m.freeRegionsCount++
	m.freeRegionsSize += region.size
}

func (m *TLSFBlockMetadata) mergeRegion(region *tlsfRegion, prev *tlsfRegion) {
	if region.prevPhysical != prev {
		panic("cannot merge separate physical regions")
	}
	if prev.IsFree() {
		panic("cannot merge a region that belongs to the free list")
	}

	region.offset = prev.offset
	region.size += prev.size
	region.prevPhysical = prev.prevPhysical
	if region.prevPhysical != nil {
		region.prevPhysical.nextPhysical = region
	} else {
		m.headRegion = region
	}

	m.freeRegion(prev)
}

func (m *TLSFBlockMetadata) VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error) error {
	for region := m.nullRegion; region != nil; region = region.prevPhysical {
		err := handleBlock(region.handle, region.offset, region.size, region.userData, region.IsFree())
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *TLSFBlockMetadata) Clear() {
	m.allocCount = 0
	m.freeRegionsCount = 0
	m.freeRegionsSize = 0
	m.isFreeBitmap = 0
	m.nullRegion.offset = 0
	m.nullRegion.size = m.size
	region := m.nullRegion.prevPhysical
	m.nullRegion.prevPhysical = nil
	m.headRegion = m.nullRegion

	for region != nil {
		prev := region.prevPhysical
		m.freeRegion(region)
		region = prev
	}

	m.freeList = make([]*tlsfRegion, len(m.freeList))
	m.innerIsFreeBitmap = [MaxMemoryClasses]uint32{}
}

func (m *TLSFBlockMetadata) AllocationOffset(allocHandle BlockAllocationHandle) (int, error) {
	region, err := m.getAllocation(allocHandle)
	if err != nil {
		return 0, err
	}

	return region.offset, nil
}

func (m *TLSFBlockMetadata) AllocationSize(allocHandle BlockAllocationHandle) (int, error) {
	region, err := m.getAllocation(allocHandle)
	if err != nil {
		return 0, err
	}

	return region.size, nil
}

func (m *TLSFBlockMetadata) AllocationUserData(allocHandle BlockAllocationHandle) (any, error) {
	region, err := m.getAllocation(allocHandle)
	if err != nil {
		return nil, err
	}

	return region.userData, nil
}

func (m *TLSFBlockMetadata) SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error {
	region, err := m.getAllocation(allocHandle)
	if err != nil {
		return err
	}

	region.userData = userData
	return nil
}
