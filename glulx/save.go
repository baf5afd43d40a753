package glulx

import (
	"bytes"
	"encoding/binary"
)

// Component C7: Quetzal-inspired ("IFZS") save format, plus the in-memory
// undo FIFO. Chunk layout is a simplified IFF/FORM structure carrying
// enough state to resume exactly where save/saveundo left off: the
// original 128-byte header (for identity verification on restore), a
// register snapshot (pc/fp), an RLE-compressed RAM delta, a raw stack
// dump, and an optional heap snapshot.
const (
	chunkIFhd = "IFhd"
	chunkRegs = "Regs"
	chunkCMem = "CMem"
	chunkStks = "Stks"
	chunkMAll = "MAll"
)

// opSave implements the save opcode: arg is reserved (a glk fileref id in
// a fuller Glk binding; unused here since Host.SaveRequested owns where
// the bytes go). Stores 0 on success, 1 on failure.
func (e *Engine) opSave(arg uint32, store StoreTarget) error {
	if e.host == nil {
		return e.storeValue(store, 1)
	}
	data, err := e.buildQuetzal()
	if err != nil {
		return e.storeValue(store, 1)
	}
	if err := e.host.SaveRequested(data); err != nil {
		return e.storeValue(store, 1)
	}
	return e.storeValue(store, 0)
}

// opRestore implements the restore opcode. On success, engine state is
// replaced wholesale and execution continues from the restored pc — the
// store target decoded for this instruction is simply discarded, since
// control never returns to it.
func (e *Engine) opRestore(arg uint32, store StoreTarget) error {
	if e.host == nil {
		return e.storeValue(store, 1)
	}
	data, err := e.host.LoadRequested()
	if err != nil || len(data) == 0 {
		return e.storeValue(store, 1)
	}
	if err := e.applyQuetzal(data); err != nil {
		return e.storeValue(store, 1)
	}
	return nil
}

// opSaveUndo pushes a full-state snapshot taken just before storing retVal
// through store, so that a later restoreundo can resume right after this
// instruction as though it had returned 1 instead of 0.
func (e *Engine) opSaveUndo(store StoreTarget) error {
	if e.nativeDepth > 0 {
		return ErrNativeCallPending
	}
	st := undoState{
		ram:         e.image.ReadRAMAll(),
		endMem:      e.image.EndMem(),
		stackCopy:   append([]byte(nil), e.stack.buf[:e.stack.sp]...),
		sp:          e.stack.sp,
		pc:          e.pc,
		fp:          e.frame.FP,
		resumeStore: store,
	}
	if e.heap != nil {
		st.heapState = e.heap.SaveState()
	}
	e.undo = append(e.undo, st)
	if len(e.undo) > maxUndoStates {
		e.undo = e.undo[len(e.undo)-maxUndoStates:]
	}
	return e.storeValue(store, 0)
}

// opRestoreUndo pops the most recent snapshot and restores it, storing 1
// through its captured resumeStore so the game sees its saveundo call
// "return" the alternate branch.
func (e *Engine) opRestoreUndo(store StoreTarget) error {
	if len(e.undo) == 0 {
		return e.storeValue(store, 1)
	}
	st := e.undo[len(e.undo)-1]

	var heap *Heap
	if st.heapState != nil {
		h, err := LoadHeapState(st.heapState, maxHeapSize, e.growEndMem, e.image.EndMem)
		if err != nil {
			return err
		}
		heap = h
	}
	e.undo = e.undo[:len(e.undo)-1]

	var protected []byte
	if e.protectionLength > 0 {
		protected, _ = e.image.ReadRAM(e.protectionStart, e.protectionLength)
	}
	if err := e.image.SetRAM(st.ram, st.endMem-e.image.RAMStart()); err != nil {
		return err
	}
	if len(protected) > 0 {
		if err := e.image.WriteRAM(e.protectionStart, protected); err != nil {
			return err
		}
	}
	e.stack.buf = make([]byte, len(e.stack.buf))
	copy(e.stack.buf, st.stackCopy)
	e.stack.sp = st.sp
	e.pc = st.pc
	if err := e.restoreFrameAt(st.fp); err != nil {
		return err
	}
	e.heap = heap
	return e.storeValue(st.resumeStore, 1)
}

// buildQuetzal serializes current engine state into the simplified IFZS
// chunk set.
func (e *Engine) buildQuetzal() ([]byte, error) {
	var out []byte

	out = appendChunk(out, chunkIFhd, e.image.GetOriginalHeader())

	regs := make([]byte, 8)
	binary.BigEndian.PutUint32(regs[0:], e.pc)
	binary.BigEndian.PutUint32(regs[4:], e.frame.FP)
	out = appendChunk(out, chunkRegs, regs)

	orig := e.image.GetOriginalRAM()
	cur := e.image.ReadRAMAll()
	diff := xorBytes(cur, orig)
	payload := make([]byte, 4+len(rleEncode(diff)))
	binary.BigEndian.PutUint32(payload[0:], uint32(len(cur)))
	copy(payload[4:], rleEncode(diff))
	out = appendChunk(out, chunkCMem, payload)

	stk := make([]byte, 4+e.stack.sp)
	binary.BigEndian.PutUint32(stk[0:], e.stack.sp)
	copy(stk[4:], e.stack.buf[:e.stack.sp])
	out = appendChunk(out, chunkStks, stk)

	if e.heap != nil {
		out = appendChunk(out, chunkMAll, e.heap.SaveState())
	}

	form := appendChunk(nil, "FORM", append([]byte("IFZS"), out...))
	return form, nil
}

// applyQuetzal parses and installs a save image built by buildQuetzal. Every
// chunk is parsed and validated into local values before anything in e is
// touched, so a malformed save (bad IFhd, truncated Stks, corrupt MAll)
// leaves the engine exactly as it was, rather than half-restored.
func (e *Engine) applyQuetzal(data []byte) error {
	chunks, err := parseChunks(data)
	if err != nil {
		return err
	}

	ihdr, ok := chunks[chunkIFhd]
	if !ok || !bytes.Equal(ihdr, e.image.GetOriginalHeader()) {
		return ErrSaveWrongImage
	}

	regs, ok := chunks[chunkRegs]
	if !ok || len(regs) < 8 {
		return ErrBadSaveFile
	}
	pc := binary.BigEndian.Uint32(regs[0:])
	fp := binary.BigEndian.Uint32(regs[4:])

	var newRAM []byte
	haveRAM := false
	if cmem, ok := chunks[chunkCMem]; ok {
		if len(cmem) < 4 {
			return ErrBadSaveFile
		}
		length := binary.BigEndian.Uint32(cmem[0:])
		diff := rleDecode(cmem[4:], int(length))
		orig := e.image.GetOriginalRAM()
		newRAM = xorBytes(diff, padTo(orig, len(diff)))
		haveRAM = true
	}

	var newStack []byte
	var newSP uint32
	haveStack := false
	if stk, ok := chunks[chunkStks]; ok {
		if len(stk) < 4 {
			return ErrBadSaveFile
		}
		sp := binary.BigEndian.Uint32(stk[0:])
		if uint64(len(stk)) < 4+uint64(sp) {
			return ErrBadSaveFile
		}
		newStack = make([]byte, len(e.stack.buf))
		copy(newStack, stk[4:4+sp])
		newSP = sp
		haveStack = true
	}

	var newHeap *Heap
	if mall, ok := chunks[chunkMAll]; ok {
		h, err := LoadHeapState(mall, maxHeapSize, e.growEndMem, e.image.EndMem)
		if err != nil {
			return err
		}
		newHeap = h
	}

	var protected []byte
	if e.protectionLength > 0 {
		protected, _ = e.image.ReadRAM(e.protectionStart, e.protectionLength)
	}

	if haveRAM {
		if err := e.image.SetRAM(newRAM, uint32(len(newRAM))); err != nil {
			return err
		}
	}
	if len(protected) > 0 {
		if err := e.image.WriteRAM(e.protectionStart, protected); err != nil {
			return err
		}
	}
	if haveStack {
		e.stack.buf = newStack
		e.stack.sp = newSP
	}
	e.heap = newHeap
	e.pc = pc
	return e.restoreFrameAt(fp)
}

func appendChunk(buf []byte, id string, payload []byte) []byte {
	buf = append(buf, id...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)
	if len(payload)%2 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// parseChunks walks a buildQuetzal-style "FORM"/"IFZS" blob and returns
// each sub-chunk's payload keyed by its four-character id.
func parseChunks(data []byte) (map[string][]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "FORM" || string(data[8:12]) != "IFZS" {
		return nil, ErrBadSaveFile
	}
	out := make(map[string][]byte)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		n := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		start := pos + 8
		end := start + int(n)
		if end > len(data) {
			return nil, ErrBadSaveFile
		}
		out[id] = data[start:end]
		pos = end
		if n%2 != 0 {
			pos++
		}
	}
	return out, nil
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = av ^ bv
	}
	return out
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// rleEncode run-length-encodes runs of zero bytes as (0x00, runLength-1)
// pairs (max run 256), leaving non-zero bytes untouched — the Quetzal
// CMem compression scheme.
func rleEncode(diff []byte) []byte {
	var out []byte
	i := 0
	for i < len(diff) {
		if diff[i] == 0 {
			run := 0
			for i < len(diff) && diff[i] == 0 && run < 256 {
				run++
				i++
			}
			out = append(out, 0, byte(run-1))
		} else {
			out = append(out, diff[i])
			i++
		}
	}
	return out
}

func rleDecode(data []byte, outLen int) []byte {
	out := make([]byte, 0, outLen)
	i := 0
	for i < len(data) && len(out) < outLen {
		b := data[i]
		i++
		if b == 0 && i < len(data) {
			count := int(data[i]) + 1
			i++
			for j := 0; j < count && len(out) < outLen; j++ {
				out = append(out, 0)
			}
		} else {
			out = append(out, b)
		}
	}
	for len(out) < outLen {
		out = append(out, 0)
	}
	return out
}
