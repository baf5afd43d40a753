package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLERoundTrip(t *testing.T) {
	orig := []byte{0, 0, 0, 1, 2, 0, 0, 0, 0, 0, 3}
	enc := rleEncode(orig)
	dec := rleDecode(enc, len(orig))
	assert.Equal(t, orig, dec)
}

func TestRLEEncodesLongRunsInChunksOf256(t *testing.T) {
	orig := make([]byte, 600)
	enc := rleEncode(orig)
	dec := rleDecode(enc, len(orig))
	assert.Equal(t, orig, dec)
}

func TestXorBytesRoundTrip(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{4, 3, 2, 1}
	diff := xorBytes(a, b)
	back := xorBytes(diff, b)
	assert.Equal(t, a, back)
}

func TestQuetzalChunkRoundTrip(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	e.pc = 123
	require.NoError(t, e.image.WriteU32(64, 0xCAFEBABE))

	blob, err := e.buildQuetzal()
	require.NoError(t, err)

	chunks, err := parseChunks(blob)
	require.NoError(t, err)
	assert.Contains(t, chunks, chunkIFhd)
	assert.Contains(t, chunks, chunkCMem)
	assert.Contains(t, chunks, chunkStks)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.image.WriteU32(64, 0x11223344))
	e.pc = 70

	saved, err := e.Snapshot()
	require.NoError(t, err)

	require.NoError(t, e.image.WriteU32(64, 0x99999999))
	e.pc = 999

	require.NoError(t, e.Restore(saved))
	v, err := e.image.ReadU32(64)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11223344), v)
	assert.Equal(t, uint32(70), e.pc)
}

func TestSaveUndoThenRestoreUndoResumesWithOne(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	e.pc = 70

	store := StoreTarget{Mode: DestStack}
	require.NoError(t, e.opSaveUndo(store))
	first, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), first)

	require.NoError(t, e.image.WriteU32(64, 0xDEAD))
	e.pc = 900

	require.NoError(t, e.opRestoreUndo(StoreTarget{Mode: DestDiscard}))
	v, err := e.image.ReadU32(64)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
	assert.Equal(t, uint32(70), e.pc)
}

func TestRestoreUndoWithNoSnapshotStoresOne(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	store := StoreTarget{Mode: DestStack}
	require.NoError(t, e.opRestoreUndo(store))
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestApplyQuetzalRejectsSaveFromDifferentImage(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	blob, err := e.buildQuetzal()
	require.NoError(t, err)

	other := newTestEngine(t, 64, 96, 512, 256, 128)
	err = other.applyQuetzal(blob)
	assert.ErrorIs(t, err, ErrSaveWrongImage)
}

func TestApplyQuetzalLeavesEngineUntouchedOnBadHeapChunk(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.image.WriteU32(64, 0xCAFEBABE))
	e.pc = 200

	blob, err := e.buildQuetzal()
	require.NoError(t, err)
	chunks, err := parseChunks(blob)
	require.NoError(t, err)
	chunks[chunkMAll] = []byte{0xFF, 0xFF, 0xFF, 0xFF}

	var corrupted []byte
	corrupted = appendChunk(corrupted, chunkIFhd, chunks[chunkIFhd])
	corrupted = appendChunk(corrupted, chunkRegs, chunks[chunkRegs])
	corrupted = appendChunk(corrupted, chunkCMem, chunks[chunkCMem])
	corrupted = appendChunk(corrupted, chunkStks, chunks[chunkStks])
	corrupted = appendChunk(corrupted, chunkMAll, chunks[chunkMAll])
	form := appendChunk(nil, "FORM", append([]byte("IFZS"), corrupted...))

	require.NoError(t, e.image.WriteU32(64, 0x11111111))
	e.pc = 999

	err = e.applyQuetzal(form)
	require.Error(t, err)

	v, rerr := e.image.ReadU32(64)
	require.NoError(t, rerr)
	assert.Equal(t, uint32(0x11111111), v, "a failed restore must not mutate RAM")
	assert.Equal(t, uint32(999), e.pc, "a failed restore must not mutate pc")
}

func TestApplyQuetzalReinstatesProtectedRAMWindow(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.image.WriteU32(64, 0xAABBCCDD))
	e.protectionStart = 64
	e.protectionLength = 4

	blob, err := e.buildQuetzal()
	require.NoError(t, err)

	require.NoError(t, e.image.WriteU32(64, 0x99999999))
	require.NoError(t, e.applyQuetzal(blob))

	v, rerr := e.image.ReadU32(64)
	require.NoError(t, rerr)
	assert.Equal(t, uint32(0x99999999), v)
}

func TestSaveUndoCapsAtMaxUndoStates(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	store := StoreTarget{Mode: DestDiscard}
	for i := 0; i < maxUndoStates+5; i++ {
		require.NoError(t, e.opSaveUndo(store))
	}
	assert.LessOrEqual(t, len(e.undo), maxUndoStates)
}
