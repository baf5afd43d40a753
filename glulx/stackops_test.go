package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushVals(t *testing.T, e *Engine, vals ...uint32) {
	t.Helper()
	for _, v := range vals {
		require.NoError(t, e.stack.PushU32(v))
	}
}

func TestPeekStackAt(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	pushVals(t, e, 10, 20, 30)

	v, err := e.peekStackAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), v)

	v, err = e.peekStackAt(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), v)
}

func TestPeekStackAtUnderflow(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	_, err := e.peekStackAt(5)
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestStkSwap(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	pushVals(t, e, 1, 2)
	require.NoError(t, e.stkSwap())
	top, err := e.peekStackAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), top)
	next, err := e.peekStackAt(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)
}

func TestStkRollPositiveRotatesDeeper(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	pushVals(t, e, 1, 2, 3, 4)
	require.NoError(t, e.stkRoll(4, 1))
	// Rolling by 1: [1,2,3,4] -> [4,1,2,3] (bottom to top, base-relative)
	vals := make([]uint32, 4)
	for i := range vals {
		v, err := e.peekStackAt(uint32(i))
		require.NoError(t, err)
		vals[i] = v
	}
	assert.Equal(t, []uint32{3, 2, 1, 4}, vals)
}

func TestStkRollZeroIsNoop(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	pushVals(t, e, 1, 2)
	require.NoError(t, e.stkRoll(0, 5))
	top, err := e.peekStackAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), top)
}

func TestStkCopyDuplicatesTopN(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	pushVals(t, e, 1, 2, 3)
	require.NoError(t, e.stkCopy(2))
	top, err := e.peekStackAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), top)
	next, err := e.peekStackAt(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next)
}

func TestStkCopyUnderflow(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	err := e.stkCopy(5)
	assert.ErrorIs(t, err, ErrStackUnderflow)
}
