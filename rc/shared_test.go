package rc_test

import (
	"math/rand"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/refcount/memory"
	"github.com/vkngwrapper/refcount/memory/mocks"
	"github.com/vkngwrapper/refcount/memutils"
	"github.com/vkngwrapper/refcount/rc"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slices"
)

func TestSharedCopyCounts(t *testing.T) {
	value := 5
	a, err := rc.Adopt(&value)
	require.NoError(t, err)
	require.Equal(t, uint(1), a.UseCount())

	b := a.Clone()
	require.Equal(t, uint(2), a.UseCount())
	require.Equal(t, uint(2), b.UseCount())
	require.Same(t, a.Get(), b.Get())

	b.Release()
	require.True(t, b.IsEmpty())
	require.Nil(t, b.Get())
	require.Equal(t, uint(1), a.UseCount())
	require.Equal(t, 5, a.Value())

	copies := make([]rc.Shared[int], 25)
	for i := range copies {
		copies[i] = a.Clone()
	}
	require.Equal(t, uint(26), a.UseCount())

	for i := range copies {
		copies[i].Release()
	}
	require.Equal(t, uint(1), a.UseCount())

	a.Release()
	require.Equal(t, uint(0), a.UseCount())
}

func TestSharedAssign(t *testing.T) {
	var disposedA, disposedB int
	a, err := rc.AdoptWith(&tracked{value: 1}, countingDeleter[tracked](&disposedA), memory.Allocator[tracked]{})
	require.NoError(t, err)
	b, err := rc.AdoptWith(&tracked{value: 2}, countingDeleter[tracked](&disposedB), memory.Allocator[tracked]{})
	require.NoError(t, err)

	a.Assign(&b)
	require.Equal(t, 1, disposedA)
	require.Equal(t, 0, disposedB)
	require.Equal(t, uint(2), a.UseCount())
	require.Equal(t, uint(2), b.UseCount())
	require.Equal(t, 2, a.Get().value)

	// Self assignment keeps the share
	a.Assign(&a)
	require.Equal(t, uint(2), a.UseCount())
	require.Equal(t, 0, disposedB)

	a.Release()
	b.Release()
	require.Equal(t, 1, disposedB)
}

func TestSharedAssignMove(t *testing.T) {
	p1, err := rc.Make([]int{-7, -7, -7, -7, -7, -7, -7, -7, -7, -7})
	require.NoError(t, err)

	var disposed int
	payload := make([]int, 13)
	p2, err := rc.AdoptWith(&payload, countingDeleter[[]int](&disposed), memory.Allocator[[]int]{})
	require.NoError(t, err)

	p2.Assign(&p1)
	require.Equal(t, 1, disposed)
	require.Equal(t, uint(2), p1.UseCount())
	require.Equal(t, uint(2), p2.UseCount())
	require.Len(t, p2.Value(), 10)

	var p3 rc.Shared[[]int]
	p3.AssignMove(&p2)
	require.True(t, p2.IsEmpty())
	require.Equal(t, uint(2), p3.UseCount())

	moved := p3.Move()
	require.True(t, p3.IsEmpty())
	require.Equal(t, uint(2), moved.UseCount())

	moved.Release()
	require.Equal(t, uint(1), p1.UseCount())
	p1.Release()
}

func TestSharedSwap(t *testing.T) {
	first, err := rc.Make([]int{1, 0, 0})
	require.NoError(t, err)
	second, err := rc.Make([]int{2, 0, 0})
	require.NoError(t, err)

	for i := 0; i < 1001; i++ {
		first.Swap(&second)
	}

	require.Equal(t, 2, first.Value()[0])
	require.Equal(t, 1, second.Value()[0])
	require.Equal(t, uint(1), first.UseCount())
	require.Equal(t, uint(1), second.UseCount())

	for i := 0; i < 10; i++ {
		third, err := rc.Make([]int{3})
		require.NoError(t, err)

		fourth := second.Clone()
		fourth.Swap(&third)
		require.Equal(t, uint(2), second.UseCount())
		require.Equal(t, uint(1), fourth.UseCount())

		third.Release()
		fourth.Release()
	}
	require.Equal(t, uint(1), second.UseCount())

	var emptyA, emptyB rc.Shared[int]
	emptyA.Swap(&emptyB)
	require.True(t, emptyA.IsEmpty())
	require.True(t, emptyB.IsEmpty())

	first.Release()
	second.Release()
}

func TestSharedReset(t *testing.T) {
	var disposed int
	a, err := rc.AdoptWith(&tracked{value: 1}, countingDeleter[tracked](&disposed), memory.Allocator[tracked]{})
	require.NoError(t, err)
	b := a.Clone()

	a.Reset()
	require.True(t, a.IsEmpty())
	require.Nil(t, a.Get())
	require.Equal(t, uint(1), b.UseCount())
	require.Equal(t, 0, disposed)

	var finalized int
	require.NoError(t, b.ResetTo(&tracked{value: 2, finalized: &finalized}))
	require.Equal(t, 1, disposed)
	require.Equal(t, 2, b.Get().value)
	require.Equal(t, uint(1), b.UseCount())

	b.Reset()
	require.Equal(t, 1, finalized)

	// Resetting an empty handle leaves it empty
	b.Reset()
	require.True(t, b.IsEmpty())
	b.Release()
	require.True(t, b.IsEmpty())
}

func TestSharedEmpty(t *testing.T) {
	var s rc.Shared[int]
	require.True(t, s.IsEmpty())
	require.Nil(t, s.Get())
	require.Equal(t, uint(0), s.UseCount())
	require.Panics(t, func() {
		s.Value()
	})

	clone := s.Clone()
	require.True(t, clone.IsEmpty())

	adopted, err := rc.Adopt[int](nil)
	require.NoError(t, err)
	require.True(t, adopted.IsEmpty())
}

func TestSharedDisposesExactlyOnce(t *testing.T) {
	var disposed int
	s, err := rc.AdoptWith(&tracked{value: 1}, countingDeleter[tracked](&disposed), memory.Allocator[tracked]{})
	require.NoError(t, err)

	handles := []rc.Shared[tracked]{s.Clone(), s.Clone(), s.Clone()}
	for i := range handles {
		handles[i].Release()
		require.Equal(t, 0, disposed)
	}

	s.Release()
	require.Equal(t, 1, disposed)
	s.Release()
	require.Equal(t, 1, disposed)
}

func TestSharedReclaimsSeparateBlock(t *testing.T) {
	counting := memory.NewCountingResource(nil, false)
	alloc := memory.NewAllocator[tracked](counting)

	var finalized int
	payload, err := alloc.New(tracked{value: 7, finalized: &finalized})
	require.NoError(t, err)

	s, err := rc.AdoptWith(payload, nil, alloc)
	require.NoError(t, err)
	require.Equal(t, 2, counting.Statistics().Allocations)

	w := s.Weak()
	s.Release()
	require.Equal(t, 1, finalized)
	require.Equal(t, 1, counting.Statistics().Deallocations)

	w.Release()
	require.Equal(t, 2, counting.Statistics().Deallocations)
	require.Equal(t, 0, counting.Statistics().LiveBytes)
	require.NoError(t, counting.Err())
}

func TestSharedReclaimsColocatedBlock(t *testing.T) {
	counting := memory.NewCountingResource(nil, false)
	alloc := memory.NewAllocator[tracked](counting)

	var finalized int
	s, err := rc.AllocateShared(alloc, tracked{value: 3, finalized: &finalized})
	require.NoError(t, err)
	require.Equal(t, 1, counting.Statistics().Allocations)

	clone := s.Clone()
	s.Release()
	require.Equal(t, 0, finalized)
	require.Equal(t, 3, clone.Get().value)

	clone.Release()
	require.Equal(t, 1, finalized)
	require.Equal(t, memory.CountingStatistics{
		Allocations:   1,
		Deallocations: 1,
		PeakBytes:     counting.Statistics().PeakBytes,
	}, counting.Statistics())
	require.NoError(t, counting.Err())
}

func TestSharedBlockUsesResourceOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	resource := mocks.NewMockResource(ctrl)

	var block unsafe.Pointer
	resource.EXPECT().Allocate(gomock.Any()).DoAndReturn(func(layout memory.Layout) (unsafe.Pointer, error) {
		ptr, err := memory.HeapResource{}.Allocate(layout)
		block = ptr
		return ptr, err
	})

	s, err := rc.AllocateSharedFunc(memory.NewAllocator[[4]int](resource), func(obj *[4]int) {
		obj[3] = 9
	})
	require.NoError(t, err)
	require.Equal(t, 9, s.Get()[3])

	w := s.Weak()
	s.Release()

	resource.EXPECT().Deallocate(gomock.Any(), gomock.Any()).Do(func(ptr unsafe.Pointer, layout memory.Layout) {
		require.Equal(t, block, ptr)
		require.Equal(t, 1, layout.Count)
	})
	w.Release()
}

func TestSharedAllocationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	resource := mocks.NewMockResource(ctrl)

	failure := errors.New("resource exhausted")
	resource.EXPECT().Allocate(gomock.Any()).Return(unsafe.Pointer(nil), failure).Times(2)

	var disposed int
	s, err := rc.AdoptWith(&tracked{}, countingDeleter[tracked](&disposed), memory.NewAllocator[tracked](resource))
	require.ErrorIs(t, err, failure)
	require.True(t, s.IsEmpty())
	require.Equal(t, 1, disposed)

	initialized := false
	s, err = rc.AllocateSharedFunc(memory.NewAllocator[tracked](resource), func(*tracked) {
		initialized = true
	})
	require.ErrorIs(t, err, failure)
	require.True(t, s.IsEmpty())
	require.False(t, initialized)
}

func TestSharedConstructorPanicReturnsStorage(t *testing.T) {
	counting := memory.NewCountingResource(nil, false)

	require.Panics(t, func() {
		_, _ = rc.AllocateSharedFunc(memory.NewAllocator[int](counting), func(*int) {
			panic("constructor failed")
		})
	})

	require.Equal(t, 1, counting.Statistics().Allocations)
	require.Equal(t, 1, counting.Statistics().Deallocations)
}

func TestSharedInArena(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 4096, memory.ArenaCreateOptions{})
	require.NoError(t, err)

	alloc := memory.NewAllocator[[16]int64](arena)

	handles := make([]rc.Shared[[16]int64], 0, 8)
	for i := 0; i < 8; i++ {
		s, err := rc.AllocateShared(alloc, [16]int64{int64(i)})
		require.NoError(t, err)
		handles = append(handles, s)
	}
	require.Equal(t, 8, arena.AllocationCount())

	weak := handles[3].Weak()
	for i := range handles {
		handles[i].Release()
	}

	require.True(t, weak.Expired())
	require.Equal(t, 1, arena.AllocationCount())

	weak.Release()
	require.True(t, arena.IsEmpty())
	require.NoError(t, arena.Validate())
	require.NoError(t, arena.Destroy())
}

func TestSharedArenaOutOfMemory(t *testing.T) {
	arena, err := memory.NewArenaResource(nil, 8, memory.ArenaCreateOptions{})
	require.NoError(t, err)

	var disposed int
	s, err := rc.AdoptWith(&tracked{}, countingDeleter[tracked](&disposed), memory.NewAllocator[tracked](arena))
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)
	require.True(t, s.IsEmpty())
	require.Equal(t, 1, disposed)

	_, err = rc.AllocateShared(memory.NewAllocator[tracked](arena), tracked{})
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)
	require.True(t, arena.IsEmpty())
}

func TestSharedSortByPayload(t *testing.T) {
	random := rand.New(rand.NewSource(7))

	handles := make([]rc.Shared[int], 0, 1000)
	for i := 0; i < 1000; i++ {
		value := random.Intn(99999)
		s, err := rc.Adopt(&value)
		require.NoError(t, err)
		handles = append(handles, s)
	}

	less := func(a, b rc.Shared[int]) bool {
		return *a.Get() < *b.Get()
	}
	slices.SortFunc(handles, less)
	require.True(t, slices.IsSortedFunc(handles, less))

	for i := range handles {
		require.Equal(t, uint(1), handles[i].UseCount())
	}

	for len(handles) > 0 {
		handles[len(handles)-1].Release()
		handles = handles[:len(handles)-1]
	}
}

type selfObserver struct {
	self      rc.Weak[selfObserver]
	finalized *int
}

func (o *selfObserver) Finalize() {
	*o.finalized++
	o.self.Release()
}

func TestSharedPayloadHoldingWeakSelf(t *testing.T) {
	counting := memory.NewCountingResource(nil, false)

	var finalized int
	s, err := rc.AllocateShared(memory.NewAllocator[selfObserver](counting), selfObserver{finalized: &finalized})
	require.NoError(t, err)

	s.Get().self = s.Weak()
	require.Equal(t, uint(1), s.UseCount())

	s.Release()
	require.Equal(t, 1, finalized)
	require.Equal(t, 1, counting.Statistics().Deallocations)
	require.NoError(t, counting.Err())
}
