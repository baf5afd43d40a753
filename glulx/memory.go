package glulx

// mzero implements the mzero opcode: zero-fill a region of memory
//.
func (e *Engine) mzero(addr, length uint32) error {
	return e.image.Zero(addr, length)
}

// mcopy implements the mcopy opcode: copy a region of memory, correct for
// overlap in either direction.
func (e *Engine) mcopy(dst, src, length uint32) error {
	return e.image.CopyWithin(dst, src, length)
}

// malloc implements the malloc opcode: lazily creates the
// heap on first call, growing end_mem through the image's own resize path.
func (e *Engine) malloc(size uint32) uint32 {
	if e.heap == nil {
		if size == 0 {
			return 0
		}
		start := e.image.EndMem()
		e.heap = NewHeap(start, maxHeapSize, e.growEndMem, e.image.EndMem)
	}
	return e.heap.Alloc(size)
}

// mfree implements the mfree opcode: releases a block, tearing the heap
// down entirely once it is empty so getmemsize/setmemsize behave as if the
// heap never existed.
func (e *Engine) mfree(addr uint32) {
	if e.heap == nil {
		return
	}
	e.heap.Free(addr)
	if e.heap.Destroyed() {
		e.heap = nil
	}
}

// growEndMem is the Heap's negotiation callback: it just resizes the
// image, since this implementation never refuses a grow that fits in
// maxHeapSize (already checked by Heap.Alloc before calling back).
func (e *Engine) growEndMem(newEndMem uint32) bool {
	return e.image.SetEndMem(newEndMem) == nil
}

// maxHeapSize caps how far above end_mem the heap may grow; chosen large
// enough not to bind any real program while keeping save files bounded.
const maxHeapSize = 0x10000000
