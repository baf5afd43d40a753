package glulx

import "sort"

// Block is an allocated or free heap region.
type Block struct {
	Start  uint32
	Length uint32
}

func (b Block) end() uint32 { return b.Start + b.Length }

// GrowFunc is the "request more memory" callback a Heap is constructed
// with. It attempts to set end_mem to newEndMem and reports whether the
// request succeeded, mirroring the way KTStephano-GVM/vm/devices.go's
// memoryManagement device negotiates bounds changes with the running VM.
type GrowFunc func(newEndMem uint32) bool

// Heap is the dynamic allocator living above static RAM (component C3).
// It tracks allocated and free blocks as two lists sorted by start
// address and grows/shrinks end_mem through GrowFunc as needed.
type Heap struct {
	start     uint32
	maxSize   uint32
	extent    uint32 // current heap size, start..start+extent is the heap region
	allocated []Block
	free      []Block
	grow      GrowFunc
	curEndMem func() uint32
}

// NewHeap constructs a heap starting at start (normally the image's
// end_mem at the moment of the first malloc), with maxSize as the total
// byte budget above start, grow as the end_mem negotiation callback, and
// curEndMem reporting the image's current end_mem (needed to decide when
// the heap has shrunk to at most half of the region below end_mem).
func NewHeap(start, maxSize uint32, grow GrowFunc, curEndMem func() uint32) *Heap {
	return &Heap{start: start, maxSize: maxSize, grow: grow, curEndMem: curEndMem}
}

func (h *Heap) Start() uint32  { return h.start }
func (h *Heap) Extent() uint32 { return h.extent }

func sortBlocks(blocks []Block) {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
}

// Alloc finds space for size bytes: first-fit against the free list, else
// grows the heap end. Returns 0 on any failure, including
// size == 0.
func (h *Heap) Alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	for i, blk := range h.free {
		if blk.Length >= size {
			addr := blk.Start
			if blk.Length == size {
				h.free = append(h.free[:i], h.free[i+1:]...)
			} else {
				h.free[i] = Block{Start: blk.Start + size, Length: blk.Length - size}
			}
			h.insertAllocated(Block{Start: addr, Length: size})
			return addr
		}
	}

	// No hole large enough: extend at the heap end.
	addr := h.start + h.extent
	newExtent := h.extent + size
	grown := maxu32(h.extent*5/4, h.extent+size)
	if grown > newExtent {
		newExtent = grown
	}
	if newExtent > h.maxSize {
		newExtent = h.extent + size
		if newExtent > h.maxSize {
			return 0
		}
	}

	if h.grow != nil {
		if !h.grow(h.start + newExtent) {
			return 0
		}
	}

	h.extent = newExtent
	h.insertAllocated(Block{Start: addr, Length: size})
	return addr
}

func (h *Heap) insertAllocated(b Block) {
	h.allocated = append(h.allocated, b)
	sortBlocks(h.allocated)
}

// Free releases the block starting at addr, coalescing it with adjacent
// free neighbors and shrinking the heap end when appropriate.
func (h *Heap) Free(addr uint32) bool {
	idx := -1
	for i, b := range h.allocated {
		if b.Start == addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	freed := h.allocated[idx]
	h.allocated = append(h.allocated[:idx], h.allocated[idx+1:]...)

	h.free = append(h.free, freed)
	sortBlocks(h.free)
	h.coalesce()

	if freed.end() == h.start+h.extent {
		h.shrinkExtentToLastBlock()
	}

	h.maybeShrinkEndMem()
	return true
}

func (h *Heap) coalesce() {
	if len(h.free) < 2 {
		return
	}
	merged := h.free[:1]
	for _, b := range h.free[1:] {
		last := &merged[len(merged)-1]
		if last.end() == b.Start {
			last.Length += b.Length
		} else {
			merged = append(merged, b)
		}
	}
	h.free = merged
}

func (h *Heap) shrinkExtentToLastBlock() {
	var last uint32 = h.start
	for _, b := range h.allocated {
		if b.end() > last {
			last = b.end()
		}
	}
	for _, b := range h.free {
		if b.Start < last && b.end() > last {
			// A free block spanning the would-be boundary can't happen
			// given coalescing, but guard anyway.
			last = b.Start
		}
	}
	h.extent = last - h.start
	// Drop any free entries that now sit entirely outside the shrunk heap.
	kept := h.free[:0]
	for _, b := range h.free {
		if b.Start < h.start+h.extent {
			kept = append(kept, b)
		}
	}
	h.free = kept
}

// maybeShrinkEndMem implements: when the heap is at most half of the
// region below end_mem, shrink end_mem back down via the grow callback
// and drop free-list entries that fall outside memory.
func (h *Heap) maybeShrinkEndMem() {
	if h.grow == nil {
		return
	}
	if h.extent == 0 {
		// Heap is fully empty: tear it down, returning end_mem to what it
		// was before the heap existed.
		h.grow(h.start)
		return
	}

	if h.curEndMem == nil {
		return
	}
	regionBelowEndMem := h.curEndMem() - h.start
	if regionBelowEndMem == 0 || h.extent > regionBelowEndMem/2 {
		return
	}

	newEndMem := h.start + h.extent
	if h.grow(newEndMem) {
		kept := h.free[:0]
		for _, b := range h.free {
			if b.end() <= newEndMem {
				kept = append(kept, b)
			}
		}
		h.free = kept
	}
}

// Destroyed reports whether the heap has no live allocations left (the
// engine uses this to tear the Heap object down entirely).
func (h *Heap) Destroyed() bool {
	return len(h.allocated) == 0
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// SaveState serializes the heap as (heap_start, block_count, {start,
// length}*), sufficient to reconstruct both lists by
// inferring free ranges between consecutive allocated blocks.
func (h *Heap) SaveState() []byte {
	out := make([]byte, 8+8*len(h.allocated))
	putU32(out[0:], h.start)
	putU32(out[4:], uint32(len(h.allocated)))
	off := 8
	for _, b := range h.allocated {
		putU32(out[off:], b.Start)
		putU32(out[off+4:], b.Length)
		off += 8
	}
	return out
}

// LoadHeapState reconstructs a Heap from the SaveState encoding, inferring
// free blocks between consecutive allocated blocks. No free block is
// inferred after the last allocated block; the heap ends where it ends.
func LoadHeapState(data []byte, maxSize uint32, grow GrowFunc, curEndMem func() uint32) (*Heap, error) {
	if len(data) < 8 {
		return nil, ErrBadSaveFile
	}
	start := readU32(data)
	count := readU32(data[4:])
	if uint64(len(data)) < 8+uint64(count)*8 {
		return nil, ErrBadSaveFile
	}

	h := &Heap{start: start, maxSize: maxSize, grow: grow, curEndMem: curEndMem}
	off := 8
	cursor := start
	for i := uint32(0); i < count; i++ {
		blkStart := readU32(data[off:])
		blkLen := readU32(data[off+4:])
		off += 8

		if blkStart > cursor {
			h.free = append(h.free, Block{Start: cursor, Length: blkStart - cursor})
		}
		h.allocated = append(h.allocated, Block{Start: blkStart, Length: blkLen})
		cursor = blkStart + blkLen
	}
	h.extent = cursor - start
	return h, nil
}
