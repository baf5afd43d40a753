package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds an Engine over a freshly loaded test image, wired to
// a NewOutputBuffer but no Host, for unit tests that never suspend.
func newTestEngine(t *testing.T, ramStart, extStart, endMem, stackSize, startFunc uint32) *Engine {
	t.Helper()
	data := buildTestImage(t, ramStart, extStart, endMem, stackSize, startFunc, 0)
	img, hdr, err := LoadImage(data)
	require.NoError(t, err)
	return NewEngine(img, hdr, nil, nil)
}

func writeStructs(t *testing.T, e *Engine, start uint32, rows [][]byte) {
	t.Helper()
	for i, row := range rows {
		for j, b := range row {
			require.NoError(t, e.image.WriteU8(start+uint32(i*len(row)+j), b))
		}
	}
}

func TestLinearSearchFindsMatch(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	start := uint32(256)
	writeStructs(t, e, start, [][]byte{{1, 0xAA}, {2, 0xBB}, {3, 0xCC}})

	store := StoreTarget{Mode: DestDiscard}
	err := e.linearSearch([]uint32{2, 1, start, 2, 3, 0, SearchReturnIndex}, store)
	require.NoError(t, err)
}

func TestLinearSearchReturnsAddrByDefault(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	start := uint32(256)
	writeStructs(t, e, start, [][]byte{{1, 0xAA}, {2, 0xBB}, {3, 0xCC}})

	store := StoreTarget{Mode: DestDiscard}
	err := e.linearSearch([]uint32{3, 1, start, 2, 3, 0, 0}, store)
	require.NoError(t, err)
}

func TestLinearSearchNotFoundReturnsMinusOneIndex(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	start := uint32(256)
	writeStructs(t, e, start, [][]byte{{1, 0xAA}, {2, 0xBB}})

	// Store to a local variable slot via the frame value stack isn't wired
	// here, so exercise storeValue with DestStack and read it back.
	store := StoreTarget{Mode: DestStack}
	err := e.linearSearch([]uint32{9, 1, start, 2, 2, 0, SearchReturnIndex}, store)
	require.NoError(t, err)
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), v)
}

func TestBinarySearchFindsMatchSortedAscending(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	start := uint32(256)
	writeStructs(t, e, start, [][]byte{{1, 0xAA}, {5, 0xBB}, {9, 0xCC}, {20, 0xDD}})

	store := StoreTarget{Mode: DestStack}
	err := e.binarySearch([]uint32{9, 1, start, 2, 4, 0, SearchReturnIndex}, store)
	require.NoError(t, err)
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
}

func TestBinarySearchNotFound(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	start := uint32(256)
	writeStructs(t, e, start, [][]byte{{1, 0xAA}, {5, 0xBB}, {9, 0xCC}})

	store := StoreTarget{Mode: DestStack}
	err := e.binarySearch([]uint32{4, 1, start, 2, 3, 0, SearchReturnIndex}, store)
	require.NoError(t, err)
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), v)
}

func TestLinkedSearchWalksList(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	// Node layout: [key byte][pad x3][next u32], 8 bytes per node.
	nodeA, nodeB, nodeC := uint32(256), uint32(264), uint32(272)
	require.NoError(t, e.image.WriteU8(nodeA, 1))
	require.NoError(t, e.image.WriteU32(nodeA+4, nodeB))
	require.NoError(t, e.image.WriteU8(nodeB, 2))
	require.NoError(t, e.image.WriteU32(nodeB+4, nodeC))
	require.NoError(t, e.image.WriteU8(nodeC, 3))
	require.NoError(t, e.image.WriteU32(nodeC+4, 0))

	store := StoreTarget{Mode: DestStack}
	err := e.linkedSearch([]uint32{2, 1, nodeA, 0, 4, 0}, store)
	require.NoError(t, err)
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, nodeB, v)
}

func TestLinkedSearchNotFoundReturnsZero(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	nodeA := uint32(256)
	require.NoError(t, e.image.WriteU8(nodeA, 1))
	require.NoError(t, e.image.WriteU32(nodeA+4, 0))

	store := StoreTarget{Mode: DestStack}
	err := e.linkedSearch([]uint32{9, 1, nodeA, 0, 4, 0}, store)
	require.NoError(t, err)
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}
