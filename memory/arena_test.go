package memory_test

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/refcount/memory"
	"github.com/vkngwrapper/refcount/memory/mocks"
	"github.com/vkngwrapper/refcount/memutils"
	"github.com/vkngwrapper/refcount/memutils/metadata"
	"go.uber.org/mock/gomock"
)

func TestArenaAllocateAndRelease(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 256, memory.ArenaCreateOptions{})
	require.NoError(t, err)
	require.Equal(t, 256, arena.Capacity())

	words := memory.NewAllocator[int64](arena)
	bytes := memory.Rebind[byte](words)

	b, err := bytes.New(7)
	require.NoError(t, err)
	w, err := words.New(11)
	require.NoError(t, err)
	require.Equal(t, int64(11), *w)
	require.Equal(t, 2, arena.AllocationCount())
	require.NoError(t, arena.Validate())

	var stats memutils.Statistics
	arena.Statistics(&stats)
	require.Equal(t, 2, stats.AllocationCount)

	bytes.Deallocate(b, 1)
	words.Deallocate(w, 1)

	require.True(t, arena.IsEmpty())
	require.NoError(t, arena.Validate())
	require.NoError(t, arena.Destroy())
}

func TestArenaOutOfMemory(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 32, memory.ArenaCreateOptions{
		Flags: memory.ArenaCreateExternallySynchronized,
	})
	require.NoError(t, err)

	words := memory.NewAllocator[int64](arena)

	first, err := words.Allocate(3)
	require.NoError(t, err)

	_, err = words.Allocate(2)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	words.Deallocate(first, 3)

	second, err := words.Allocate(4)
	require.NoError(t, err)
	words.Deallocate(second, 4)
	require.True(t, arena.IsEmpty())
}

func TestArenaIgnoresForeignPointers(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 64, memory.ArenaCreateOptions{})
	require.NoError(t, err)

	words := memory.NewAllocator[int64](arena)
	ptr, err := words.Allocate(1)
	require.NoError(t, err)

	var foreign int64
	words.Deallocate(&foreign, 1)
	require.Equal(t, 1, arena.AllocationCount())

	words.Deallocate(ptr, 1)
	// Deallocating twice is just another foreign pointer
	words.Deallocate(ptr, 1)
	require.True(t, arena.IsEmpty())
	require.NoError(t, arena.Validate())
}

func TestArenaUsesUpstream(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := mocks.NewMockResource(ctrl)

	var storage [2]int32
	layout := memory.LayoutOf[int32](2)
	upstream.EXPECT().Allocate(layout).Return(unsafe.Pointer(&storage), nil)
	upstream.EXPECT().Deallocate(unsafe.Pointer(&storage), layout)

	arena, err := memory.NewArenaResource(nil, 64, memory.ArenaCreateOptions{Upstream: upstream})
	require.NoError(t, err)

	alloc := memory.NewAllocator[int32](arena)
	ptr, err := alloc.Allocate(2)
	require.NoError(t, err)
	require.Same(t, &storage[0], ptr)

	alloc.Deallocate(ptr, 2)
}

func TestArenaDestroyReportsLeaks(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 64, memory.ArenaCreateOptions{
		Flags: memory.ArenaCreateValidateOnDestroy,
	})
	require.NoError(t, err)

	words := memory.NewAllocator[int64](arena)
	_, err = words.Allocate(1)
	require.NoError(t, err)
	_, err = words.Allocate(1)
	require.NoError(t, err)

	err = arena.Destroy()
	require.EqualError(t, err, "arena destroyed with 2 live allocations")
	require.True(t, arena.IsEmpty())
}

func TestArenaBuildStatsString(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 64, memory.ArenaCreateOptions{
		Strategy: metadata.AllocationStrategyMinOffset,
	})
	require.NoError(t, err)

	words := memory.NewAllocator[int64](arena)
	_, err = words.Allocate(2)
	require.NoError(t, err)

	require.JSONEq(t, `{
		"Flags": "None",
		"Strategy": "MinOffset",
		"Total": {
			"BlockCount": 1,
			"BlockBytes": 64,
			"AllocationCount": 1,
			"AllocationBytes": 16,
			"UnusedRangeCount": 1,
			"AllocationSizeMin": 16,
			"AllocationSizeMax": 16,
			"UnusedRangeSizeMin": 48,
			"UnusedRangeSizeMax": 48
		}
	}`, arena.BuildStatsString(false))

	require.JSONEq(t, `{
		"Flags": "None",
		"Strategy": "MinOffset",
		"Total": {
			"BlockCount": 1,
			"BlockBytes": 64,
			"AllocationCount": 1,
			"AllocationBytes": 16,
			"UnusedRangeCount": 1,
			"AllocationSizeMin": 16,
			"AllocationSizeMax": 16,
			"UnusedRangeSizeMin": 48,
			"UnusedRangeSizeMax": 48
		},
		"DetailedMap": {
			"TotalBytes": 64,
			"UnusedBytes": 48,
			"Allocations": 1,
			"UnusedRanges": 1,
			"Suballocations": [
				{"Offset": 0, "Type": "Allocation", "Size": 16, "CustomData": "2 x int64 (16 bytes, align 8)"},
				{"Offset": 16, "Type": "Free", "Size": 48}
			]
		}
	}`, arena.BuildStatsString(true))
}

func TestArenaCreateFlagsString(t *testing.T) {
	require.Equal(t, "None", memory.ArenaCreateFlags(0).String())
	require.Equal(t, "ArenaCreateExternallySynchronized", memory.ArenaCreateExternallySynchronized.String())
	require.Equal(t, "ArenaCreateExternallySynchronized|ArenaCreateValidateOnDestroy",
		(memory.ArenaCreateExternallySynchronized | memory.ArenaCreateValidateOnDestroy).String())
}

func TestArenaBadCapacity(t *testing.T) {
	_, err := memory.NewArenaResource(nil, 0, memory.ArenaCreateOptions{})
	require.Error(t, err)
}

func TestArenaRejectsOverflowingLayout(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 64, memory.ArenaCreateOptions{})
	require.NoError(t, err)

	words := memory.NewAllocator[int64](arena)
	_, err = words.Allocate(math.MaxInt / 4)
	require.Error(t, err)
	require.True(t, arena.IsEmpty())
	require.NoError(t, arena.Validate())
}
