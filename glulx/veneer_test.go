package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccelFuncRegisterAndLookup(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.accelFunc(12, 999))
	n, ok := e.veneer.Lookup(999)
	require.True(t, ok)
	assert.Equal(t, uint32(12), n)
}

func TestAccelFuncZeroSlotUnregisters(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.accelFunc(12, 999))
	require.NoError(t, e.accelFunc(0, 999))
	_, ok := e.veneer.Lookup(999)
	assert.False(t, ok)
}

func TestAccelParamStored(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	require.NoError(t, e.accelParam(3, 0xABCD))
	assert.Equal(t, uint32(0xABCD), e.veneer.accel.params[3])
}

func TestAccelUnsignedCompare(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	v, err := accelUnsignedCompare(e, []uint32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), v)

	v, err = accelUnsignedCompare(e, []uint32{0xFFFFFFFF, 1})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = accelUnsignedCompare(e, []uint32{5, 5})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestInvokeVeneerFallsBackWithoutNativeHandler(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	const target = 256
	writeStackFormatFunction(t, e, target)
	require.NoError(t, e.accelFunc(99, target)) // slot 99 has no native handler

	store := StoreTarget{Mode: DestDiscard}
	require.NoError(t, e.opCall(target, 0, store, false))
	// Falling back means a real frame got built at the target, advancing pc
	// past its header exactly as an un-accelerated call would.
	assert.Equal(t, uint32(target+3), e.pc)
}

func TestInvokeVeneerUsesNativeHandlerWhenAccelerationOn(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	const target = 256
	writeStackFormatFunction(t, e, target)
	require.NoError(t, e.accelFunc(12, target)) // Unsigned__Compare has a native handler

	pushVals(t, e, 1, 2)
	store := StoreTarget{Mode: DestStack}
	require.NoError(t, e.opCall(target, 2, store, false))

	v, err := e.stack.PeekU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), v)
}

func TestSetAccelerationOffForcesBytecodeFallback(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	const target = 256
	writeStackFormatFunction(t, e, target)
	require.NoError(t, e.accelFunc(12, target))
	e.SetAcceleration(false)

	pushVals(t, e, 1, 2)
	store := StoreTarget{Mode: DestStack}
	require.NoError(t, e.opCall(target, 2, store, false))

	// Fell back to bytecode, so pc advances past the function header
	// instead of a native result landing on the stack.
	assert.Equal(t, uint32(target+3), e.pc)
}
