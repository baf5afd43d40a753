package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMallocCreatesHeapLazily(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	assert.Nil(t, e.heap)
	addr := e.malloc(64)
	require.NotZero(t, addr)
	assert.NotNil(t, e.heap)
}

func TestMallocZeroSizeNoHeap(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	assert.Equal(t, uint32(0), e.malloc(0))
	assert.Nil(t, e.heap)
}

func TestMfreeTearsDownEmptyHeap(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	addr := e.malloc(32)
	require.NotZero(t, addr)
	e.mfree(addr)
	assert.Nil(t, e.heap)
}

func TestMfreeUnknownAddrIsNoop(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	e.mfree(12345) // no heap yet; must not panic
	assert.Nil(t, e.heap)
}

func TestMzeroClearsRegion(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.image.WriteU32(64, 0xFFFFFFFF))
	require.NoError(t, e.mzero(64, 4))
	v, err := e.image.ReadU32(64)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestMcopyOverlapping(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	for i := uint32(0); i < 8; i++ {
		require.NoError(t, e.image.WriteU8(64+i, byte(i+1)))
	}
	require.NoError(t, e.mcopy(66, 64, 8))
	for i := uint32(0); i < 8; i++ {
		b, err := e.image.ReadU8(66 + i)
		require.NoError(t, err)
		assert.Equal(t, byte(i+1), b)
	}
}

func TestGrowEndMemExpandsImage(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	before := e.image.EndMem()
	ok := e.growEndMem(before + 1000)
	assert.True(t, ok)
	assert.Greater(t, e.image.EndMem(), before)
}
