package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObjectHeader(t *testing.T, e *Engine, addr, propTableAddr uint32) {
	t.Helper()
	require.NoError(t, e.image.WriteU8(addr, objTagHeader))
	require.NoError(t, e.image.WriteU32(addr+1, 0)) // parent
	require.NoError(t, e.image.WriteU32(addr+5, 0)) // sibling
	require.NoError(t, e.image.WriteU32(addr+9, 0)) // child
	require.NoError(t, e.image.WriteU32(addr+objHeaderPropTableOff, propTableAddr))
}

func writePropTable(t *testing.T, e *Engine, addr uint32, entries []propEntry) {
	t.Helper()
	require.NoError(t, e.image.WriteU32(addr, uint32(len(entries))))
	off := addr + 4
	for _, ent := range entries {
		require.NoError(t, e.image.WriteU16(off, uint16(ent.ID)))
		require.NoError(t, e.image.WriteU16(off+2, uint16(ent.Length)))
		require.NoError(t, e.image.WriteU32(off+4, ent.Addr))
		require.NoError(t, e.image.WriteU8(off+8, ent.Flags))
		off += propEntrySize
	}
}

func TestZRegionClassifiesByTag(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	writeObjectHeader(t, e, 200, 300)
	writeStackFormatFunction(t, e, 400)
	require.NoError(t, e.image.WriteU8(500, strTagCString))

	v, err := accelZRegion(e, []uint32{200})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = accelZRegion(e, []uint32{400})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)

	v, err = accelZRegion(e, []uint32{500})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)

	v, err = accelZRegion(e, []uint32{600})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestMetaClassMapsRegionsThroughClassesTable(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	const classesTable = 900
	require.NoError(t, e.image.WriteU32(classesTable+0, 1000)) // Class
	require.NoError(t, e.image.WriteU32(classesTable+4, 1001)) // Object
	require.NoError(t, e.image.WriteU32(classesTable+8, 1002)) // Routine
	require.NoError(t, e.image.WriteU32(classesTable+12, 1003)) // String
	require.NoError(t, e.accelParam(paramClassesTable, classesTable))

	writeObjectHeader(t, e, 200, 300)
	writeStackFormatFunction(t, e, 400)
	require.NoError(t, e.image.WriteU8(500, strTagCString))

	v, err := accelMetaClass(e, []uint32{200})
	require.NoError(t, err)
	assert.Equal(t, uint32(1001), v)

	v, err = accelMetaClass(e, []uint32{400})
	require.NoError(t, err)
	assert.Equal(t, uint32(1002), v)

	v, err = accelMetaClass(e, []uint32{500})
	require.NoError(t, err)
	assert.Equal(t, uint32(1003), v)

	// One of the metaclass objects' own metaclass is Class.
	v, err = accelMetaClass(e, []uint32{1001})
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), v)
}

func TestCPTabAndRAPrAndRLPrFindOwnProperty(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	writeObjectHeader(t, e, 200, 300)
	writePropTable(t, e, 300, []propEntry{
		{ID: 5, Length: 4, Addr: 400},
		{ID: 7, Length: 1, Addr: 410},
	})
	require.NoError(t, e.image.WriteU32(400, 0xDEADBEEF))
	require.NoError(t, e.image.WriteU8(410, 0x42))

	addr, err := accelCPTab(e, []uint32{200, 5})
	require.NoError(t, err)
	assert.Equal(t, uint32(400), addr)

	addr, err = accelRAPr(e, []uint32{200, 7})
	require.NoError(t, err)
	assert.Equal(t, uint32(410), addr)

	length, err := accelRLPr(e, []uint32{200, 5})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), length)

	missing, err := accelCPTab(e, []uint32{200, 99})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), missing)
}

func TestRVPrReadsValueBySize(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	writeObjectHeader(t, e, 200, 300)
	writePropTable(t, e, 300, []propEntry{
		{ID: 5, Length: 4, Addr: 400},
		{ID: 7, Length: 1, Addr: 410},
	})
	require.NoError(t, e.image.WriteU32(400, 0xDEADBEEF))
	require.NoError(t, e.image.WriteU8(410, 0x42))

	v, err := accelRVPr(e, []uint32{200, 5})
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)

	v, err = accelRVPr(e, []uint32{200, 7})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x42), v)
}

func TestRVPrFallsBackToDefaultsTable(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	writeObjectHeader(t, e, 200, 300)
	writePropTable(t, e, 300, nil)

	const defaults = 800
	require.NoError(t, e.accelParam(paramDefaultsTable, defaults))
	require.NoError(t, e.accelParam(paramIndivPropStart, 64))
	require.NoError(t, e.image.WriteU32(defaults+(9-1)*4, 777))

	v, err := accelRVPr(e, []uint32{200, 9})
	require.NoError(t, err)
	assert.Equal(t, uint32(777), v)
}

func TestRAPrHidesPrivatePropertyFromNonSelf(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	writeObjectHeader(t, e, 200, 300)
	writePropTable(t, e, 300, []propEntry{
		{ID: 9, Length: 4, Addr: 700, Flags: propFlagPrivate},
	})
	require.NoError(t, e.image.WriteU32(700, 0x11111111))

	// self (Global0, at ram_start) holds some other object.
	require.NoError(t, e.image.WriteU32(e.image.RAMStart(), 999))
	addr, err := accelRAPr(e, []uint32{200, 9})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), addr)

	// self now holds the object itself: the private property becomes visible.
	require.NoError(t, e.image.WriteU32(e.image.RAMStart(), 200))
	addr, err = accelRAPr(e, []uint32{200, 9})
	require.NoError(t, err)
	assert.Equal(t, uint32(700), addr)
}

func TestOPPrReportsOwnPropertyAndMetaproperties(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	writeObjectHeader(t, e, 200, 300)
	writePropTable(t, e, 300, []propEntry{{ID: 5, Length: 4, Addr: 400}})
	require.NoError(t, e.image.WriteU8(500, strTagCString))
	writeStackFormatFunction(t, e, 600)
	require.NoError(t, e.accelParam(paramPrintProp, 50))
	require.NoError(t, e.accelParam(paramCallProp, 51))

	v, err := accelOPPr(e, []uint32{200, 5})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = accelOPPr(e, []uint32{200, 6})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = accelOPPr(e, []uint32{500, 50})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = accelOPPr(e, []uint32{600, 51})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestOCClMatchesMetaclassAndClassList(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	const classesTable = 900
	require.NoError(t, e.image.WriteU32(classesTable+0, 1000))
	require.NoError(t, e.image.WriteU32(classesTable+4, 1001))
	require.NoError(t, e.image.WriteU32(classesTable+8, 1002))
	require.NoError(t, e.image.WriteU32(classesTable+12, 1003))
	require.NoError(t, e.accelParam(paramClassesTable, classesTable))

	writeObjectHeader(t, e, 200, 300)

	// Class-list property 8 points at a zero-terminated array containing
	// class object 777.
	const classList = 850
	require.NoError(t, e.image.WriteU32(classList+0, 777))
	require.NoError(t, e.image.WriteU32(classList+4, 0))
	writePropTable(t, e, 300, []propEntry{{ID: 8, Length: 8, Addr: classList}})
	require.NoError(t, e.accelParam(paramClassListProp, 8))

	v, err := accelOCCl(e, []uint32{200, 1001}) // Object metaclass
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = accelOCCl(e, []uint32{200, 777}) // declared class
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = accelOCCl(e, []uint32{200, 778}) // not a member
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestRTChLDWAndChSTWRoundTripWithinBounds(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	const array = 500
	v, err := accelRTChSTW(e, []uint32{array, 2, 0xCAFEBABE})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = accelRTChLDW(e, []uint32{array, 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), v)
}

func TestRTChLDWOutOfBoundsReturnsZeroWithoutErrorRoutine(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	v, err := accelRTChLDW(e, []uint32{1020, 100})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestRTChLDBRoundTrip(t *testing.T) {
	e := newTestEngine(t, 64, 96, 1024, 256, 64)
	const array = 500
	_, err := accelRTChSTW(e, []uint32{array, 0, 0x000000FF})
	require.NoError(t, err)
	v, err := accelRTChLDB(e, []uint32{array, 3}) // low byte of the word just written
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFF), v)
}
