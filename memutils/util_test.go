package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/refcount/memutils"
)

func TestAlign(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 8, memutils.AlignUp(1, 8))
	require.Equal(t, 16, memutils.AlignUp(16, 8))
	require.Equal(t, 24, memutils.AlignUp(17, 8))
	require.Equal(t, 5, memutils.AlignUp(5, 1))

	require.Equal(t, 16, memutils.AlignDown(23, 8))
	require.Equal(t, 0, memutils.AlignDown(3, 4))

	require.True(t, memutils.IsAligned(32, 16))
	require.False(t, memutils.IsAligned(33, 16))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(uint(1), "alignment"))
	require.NoError(t, memutils.CheckPow2(64, "alignment"))

	err := memutils.CheckPow2(uint(12), "alignment")
	require.ErrorIs(t, err, memutils.ErrPowerOfTwo)
	require.EqualError(t, err, "alignment is 12: number must be a power of two")

	require.ErrorIs(t, memutils.CheckPow2(uintptr(0), "alignment"), memutils.ErrPowerOfTwo)
}
