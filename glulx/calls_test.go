package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStackFormatFunction plants a minimal stack-calling-convention
// function header (tag 0xC0, empty locals-format list) at addr.
func writeStackFormatFunction(t *testing.T, e *Engine, addr uint32) {
	t.Helper()
	require.NoError(t, e.image.WriteU8(addr, funcFormatStack))
	require.NoError(t, e.image.WriteU8(addr+1, 0))
	require.NoError(t, e.image.WriteU8(addr+2, 0))
}

func TestOpCallPushesArgsAndAdvancesPC(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	const target = 256
	writeStackFormatFunction(t, e, target)

	pushVals(t, e, 10, 20)
	store := StoreTarget{Mode: DestDiscard}
	require.NoError(t, e.opCall(target, 2, store, false))

	assert.Equal(t, uint32(target+3), e.pc)

	count, err := e.peekStackAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	arg0, err := e.peekStackAt(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), arg0)

	arg1, err := e.peekStackAt(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), arg1)
}

func TestOpCallNPassesArgsDirectly(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	const target = 256
	writeStackFormatFunction(t, e, target)

	store := StoreTarget{Mode: DestDiscard}
	require.NoError(t, e.opCallN(target, []uint32{5, 6, 7}, store))

	count, err := e.peekStackAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)
}

func TestOpThrowInvalidTokenRejected(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	err := e.opThrow(0, 2) // below callStubBytes
	assert.ErrorIs(t, err, ErrInvalidCatchToken)
}

func TestOpThrowUnwindsToStub(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	const target = 256
	writeStackFormatFunction(t, e, target)

	store := StoreTarget{Mode: DestStack}
	savedPC := e.pc
	require.NoError(t, e.opCall(target, 0, store, false))

	// The catch token is the stack position right after the call stub was
	// pushed for this call, i.e. the frame's own FP.
	token := e.frame.FP
	require.NoError(t, e.opThrow(0xABCD, token))

	assert.Equal(t, savedPC, e.pc)
	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCD), v)
}
