package metadata

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates where
// the metadata intends to allocate new memory. The consumer can reject it freely, or commit it to the
// metadata with BlockMetadata.Alloc
type AllocationRequest struct {
	// BlockAllocationHandle identifies the free region the allocation will be carved out of
	BlockAllocationHandle BlockAllocationHandle
	// Size is the total size of the allocation in bytes
	Size int
	// Offset is the aligned offset within the block that the allocation will begin at
	Offset int
}
