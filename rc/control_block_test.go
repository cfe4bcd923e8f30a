package rc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/refcount/memory"
)

var defaultIntAllocator = memory.NewAllocator[int](nil)

type recordingBlock struct {
	refCounts

	events []string
}

func (b *recordingBlock) dispose() {
	b.events = append(b.events, "dispose")
}

func (b *recordingBlock) destroy() {
	b.events = append(b.events, "destroy")
}

func TestReleaseStrongWithoutWeak(t *testing.T) {
	block := &recordingBlock{refCounts: refCounts{strong: 2}}

	releaseStrong(block)
	require.Empty(t, block.events)

	releaseStrong(block)
	require.Equal(t, []string{"dispose", "destroy"}, block.events)
	require.Equal(t, refCounts{}, block.refCounts)
}

func TestReleaseStrongWithWeak(t *testing.T) {
	block := &recordingBlock{refCounts: refCounts{strong: 1, weak: 2}}

	releaseStrong(block)
	require.Equal(t, []string{"dispose"}, block.events)
	require.Equal(t, refCounts{weak: 2}, block.refCounts)

	releaseWeak(block)
	require.Equal(t, []string{"dispose"}, block.events)

	releaseWeak(block)
	require.Equal(t, []string{"dispose", "destroy"}, block.events)
}

func TestReleaseWeakWhileStrong(t *testing.T) {
	block := &recordingBlock{refCounts: refCounts{strong: 1, weak: 1}}

	releaseWeak(block)
	require.Empty(t, block.events)
	require.Equal(t, refCounts{strong: 1}, block.refCounts)

	acquireWeak(block)
	acquireStrong(block)
	require.Equal(t, refCounts{strong: 2, weak: 1}, block.refCounts)
}

func TestSeparateBlockDisposeAndDestroy(t *testing.T) {
	value := 4
	var deleted *int

	block, err := newSeparateBlock(&value, func(ptr *int) { deleted = ptr }, defaultIntAllocator)
	require.NoError(t, err)
	require.Equal(t, refCounts{strong: 1}, block.refCounts)

	releaseStrong(block)
	require.Same(t, &value, deleted)
	require.Nil(t, block.ptr)
	require.Nil(t, block.deleter)
}

func TestColocatedBlockInit(t *testing.T) {
	block, err := newColocatedBlock(defaultIntAllocator, func(obj *int) {
		*obj = 17
	})
	require.NoError(t, err)
	require.Equal(t, 17, block.obj)
	require.Equal(t, refCounts{strong: 1}, block.refCounts)

	acquireWeak(block)
	releaseStrong(block)
	require.Equal(t, 0, block.obj)
	require.Equal(t, refCounts{weak: 1}, block.refCounts)

	releaseWeak(block)
}
