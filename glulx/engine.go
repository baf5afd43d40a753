package glulx

import (
	"math/rand"

	"go.uber.org/zap"
)

// Execution modes. When mode is not ModeCode, each loop
// iteration emits the next character of whatever is being printed instead
// of fetching a new opcode.
type ExecMode uint8

const (
	ModeCode ExecMode = iota
	ModeCString
	ModeUnicodeString
	ModeCompressedString
	ModeDecimalNumber
	ModeReturnFromNative
)

// I/O system selectors for setiosys/getiosys.
const (
	IOSysNull     uint32 = 0
	IOSysFilter   uint32 = 1
	IOSysLibrary  uint32 = 2
	IOSysChannels uint32 = 20
)

// Engine is the interpreter core (component C8): fetch/decode/dispatch
// loop, stack, call frames, and all mutable VM registers. It owns image
// memory, the stack, the heap, the output buffer, the string decoder and
// the veneer table, and drives them the way KTStephano-GVM/vm/vm.go's VM
// struct owns registers/stack/program and invokes its devices.
type Engine struct {
	image  *Image
	stack  *Stack
	heap   *Heap
	output *OutputBuffer
	veneer *VeneerTable
	decoder *StringDecoder
	host   Host
	log    *zap.Logger

	pc    uint32
	frame Frame

	execMode       ExecMode
	printingDigit  int
	printingVal    int32
	printingBitPos uint32
	printingAddr   uint32
	printingArgs   []uint32

	outputSystem      uint32
	filterAddress     uint32
	decodingTable     uint32
	protectionStart   uint32
	protectionLength  uint32
	stringTable       uint32

	running bool
	lastErr error

	rng *rand.Rand

	nativeDepth int

	undo []undoState

	pending *pendingInput

	accelerationOff bool
}

type undoState struct {
	ram         []byte
	endMem      uint32
	stackCopy   []byte
	sp          uint32
	pc          uint32
	fp          uint32
	heapState   []byte
	resumeStore StoreTarget
}

const maxUndoStates = 3

// NewEngine constructs an Engine ready to run from start_func.
// host may be nil only for tests that never hit a suspension
// point; logger may be nil (falls back to a no-op logger).
func NewEngine(img *Image, hdr Header, host Host, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		image:         img,
		stack:         NewStack(hdr.StackSize),
		output:        NewOutputBuffer(),
		veneer:        NewVeneerTable(),
		host:          host,
		log:           logger,
		decodingTable: hdr.DecodingTable,
		rng:           rand.New(rand.NewSource(1)),
		running:       true,
	}
	if hdr.DecodingTable != 0 {
		e.decoder = NewStringDecoder(e, hdr.DecodingTable)
	}
	e.pushCallFrame(hdr.StartFunc, nil, CallStub{DestType: DestDiscard})
	return e
}

func (e *Engine) Image() *Image          { return e.image }
func (e *Engine) Stack() *Stack          { return e.stack }
func (e *Engine) Output() *OutputBuffer  { return e.output }
func (e *Engine) Veneer() *VeneerTable   { return e.veneer }
func (e *Engine) PC() uint32             { return e.pc }
func (e *Engine) Running() bool          { return e.running }
func (e *Engine) Err() error             { return e.lastErr }

// SetAcceleration toggles whether accelfunc-registered addresses run their
// native implementation. Off forces every call through ordinary bytecode
// execution, useful for comparing native veneer output against the
// reference bytecode path.
func (e *Engine) SetAcceleration(on bool) {
	e.accelerationOff = !on
}

// SeedRandom reseeds the @random generator deterministically, the CLI-level
// equivalent of the setrandom opcode with a nonzero seed.
func (e *Engine) SeedRandom(seed uint32) {
	e.setRandom(seed)
}

// Snapshot returns a Quetzal-format save image of the engine's current
// state, without going through the saveundo opcode's resume-store bookkeeping.
func (e *Engine) Snapshot() ([]byte, error) {
	return e.buildQuetzal()
}

// Restore replaces the engine's state with a previously captured Quetzal
// image, as the restore opcode does, but callable directly by a host that
// wants to load a save file before resuming Step/Run.
func (e *Engine) Restore(data []byte) error {
	return e.applyQuetzal(data)
}
func (e *Engine) Heap() *Heap            { return e.heap }

// Halt stops the engine at the next instruction boundary.
func (e *Engine) Halt() {
	e.running = false
}

func (e *Engine) fault(err error) {
	e.running = false
	e.lastErr = err
	e.log.Warn("runtime fault", zap.Error(err), zap.Uint32("pc", e.pc))
}

// ---- call frame construction / teardown ----

// functionFormatStack / functionFormatLocals are the two function-entry
// tags a called routine may start with.
const (
	funcFormatStack  = 0xC0
	funcFormatLocals = 0xC1
)

// pushCallFrame builds a new frame at the current stack pointer for a call
// to target, following the function-entry sequence, and pushes stub as
// the call stub beneath it.
func (e *Engine) pushCallFrame(target uint32, args []uint32, stub CallStub) error {
	if v, ok := e.veneer.Lookup(target); ok {
		return e.invokeVeneer(v, target, args, stub)
	}

	if err := e.stack.PushStub(stub); err != nil {
		return err
	}

	tag, err := e.image.ReadU8(target)
	if err != nil {
		return err
	}

	groups, localsBytesLen, err := e.readLocalsFormat(target + 1)
	if err != nil {
		return err
	}

	fp := e.stack.sp
	// frame header: frame_len(4) + locals_pos(4) + descriptors + padding
	descBytes := uint32(len(groups))*2 + 2 // each group is 2 bytes + terminating (0,0)
	localsPos := 8 + descBytes
	localsPos = (localsPos + 3) &^ 3 // align locals storage to 4 bytes
	frameLen := localsPos + localsBytesLen
	frameLen = (frameLen + 3) &^ 3

	if err := e.stack.checkPush(frameLen); err != nil {
		return err
	}
	// zero the frame header + locals region
	for i := uint32(0); i < frameLen; i++ {
		e.stack.buf[fp+i] = 0
	}
	putU32(e.stack.buf[fp:], frameLen)
	putU32(e.stack.buf[fp+4:], localsPos)
	off := fp + 8
	for _, g := range groups {
		e.stack.buf[off] = byte(g.SizeBytes)
		e.stack.buf[off+1] = byte(g.Count)
		off += 2
	}
	e.stack.sp = fp + frameLen

	e.frame = Frame{FP: fp, FrameLen: frameLen, LocalsPos: localsPos, Locals: groups}

	switch tag {
	case funcFormatStack:
		for i := len(args) - 1; i >= 0; i-- {
			if err := e.stack.PushU32(args[i]); err != nil {
				return err
			}
		}
		if err := e.stack.PushU32(uint32(len(args))); err != nil {
			return err
		}
	case funcFormatLocals:
		if err := e.storeLocalsArgs(args); err != nil {
			return err
		}
	default:
		return ErrBadFunctionFormat
	}

	e.pc = target + 1 + uint32(len(groups))*2 + 2
	return nil
}

// readLocalsFormat walks the (size_bytes,count) groups starting at addr
// until a (0,0) terminator, returning the groups and the total byte
// length of locals storage.
func (e *Engine) readLocalsFormat(addr uint32) ([]LocalsGroup, uint32, error) {
	var groups []LocalsGroup
	var total uint32
	for {
		sz, err := e.image.ReadU8(addr)
		if err != nil {
			return nil, 0, err
		}
		cnt, err := e.image.ReadU8(addr + 1)
		if err != nil {
			return nil, 0, err
		}
		addr += 2
		if sz == 0 && cnt == 0 {
			break
		}
		groups = append(groups, LocalsGroup{SizeBytes: uint32(sz), Count: uint32(cnt)})
		// Padding: a group must start aligned to its element size.
		if sz > 1 {
			pad := total % sz
			if pad != 0 {
				total += sz - pad
			}
		}
		total += uint32(sz) * uint32(cnt)
	}
	return groups, total, nil
}

// storeLocalsArgs loads args into local storage in declaration order,
// zero-filling any surplus locals.
func (e *Engine) storeLocalsArgs(args []uint32) error {
	idx := 0
	off := e.frame.LocalsPos
	for _, g := range e.frame.Locals {
		if g.SizeBytes > 1 {
			pad := off % g.SizeBytes
			if pad != 0 {
				off += g.SizeBytes - pad
			}
		}
		for i := uint32(0); i < g.Count; i++ {
			var v uint32
			if idx < len(args) {
				v = args[idx]
			}
			idx++
			if err := e.writeLocalAt(off, g.SizeBytes, v); err != nil {
				return err
			}
			off += g.SizeBytes
		}
	}
	return nil
}

// readLocal reads the 32-bit local variable whose byte offset (from the
// locals-format descriptors) is off, widening narrower locals.
func (e *Engine) readLocal(off uint32) (uint32, error) {
	sz, base, err := e.localSlot(off)
	if err != nil {
		return 0, err
	}
	switch sz {
	case 1:
		return uint32(e.stack.buf[base]), nil
	case 2:
		return uint32(readU16(e.stack.buf[base:])), nil
	default:
		return readU32(e.stack.buf[base:]), nil
	}
}

func (e *Engine) writeLocal(off uint32, v uint32) error {
	sz, addr, err := e.localSlot(off)
	if err != nil {
		return err
	}
	return e.writeLocalAt(addr, sz, v)
}

// localSlot resolves a locals-format byte offset to its element size and
// absolute stack-buffer address.
func (e *Engine) localSlot(off uint32) (sz uint32, addr uint32, err error) {
	pos := e.frame.LocalsPos
	cursor := uint32(0)
	for _, g := range e.frame.Locals {
		if g.SizeBytes > 1 {
			pad := cursor % g.SizeBytes
			if pad != 0 {
				cursor += g.SizeBytes - pad
			}
		}
		groupLen := g.SizeBytes * g.Count
		if off >= cursor && off < cursor+groupLen {
			elemOff := off - cursor
			elemOff -= elemOff % g.SizeBytes
			return g.SizeBytes, pos + cursor + elemOff, nil
		}
		cursor += groupLen
	}
	return 0, 0, ErrInvalidOperand
}

func (e *Engine) writeLocalAt(addr uint32, sz uint32, v uint32) error {
	if addr+sz > uint32(len(e.stack.buf)) {
		return ErrStackOverflow
	}
	switch sz {
	case 1:
		e.stack.buf[addr] = byte(v)
	case 2:
		putU16(e.stack.buf[addr:], uint16(v))
	default:
		putU32(e.stack.buf[addr:], v)
	}
	return nil
}

// popCallFrame tears down the current frame, pops the call stub beneath
// it, and deposits retVal through the stub's destination.
func (e *Engine) popCallFrame(retVal uint32) error {
	e.stack.sp = e.frame.FP
	stub, err := e.stack.PopStub()
	if err != nil {
		return err
	}
	return e.resumeFromStub(stub, retVal)
}

// resumeFromStub restores fp/frame state from the saved fp, then deposits
// retVal at the stub's destination (memory/local/stack/discard) or, for
// print-resume destinations, resumes the printing state machine.
func (e *Engine) resumeFromStub(stub CallStub, retVal uint32) error {
	switch stub.DestType {
	case DestDiscard:
		e.pc = stub.ResumePC
		return e.restoreFrameAt(stub.SavedFP)
	case DestMemory:
		if err := e.image.WriteU32(stub.DestAddr, retVal); err != nil {
			return err
		}
		e.pc = stub.ResumePC
		return e.restoreFrameAt(stub.SavedFP)
	case DestStack:
		e.pc = stub.ResumePC
		if err := e.restoreFrameAt(stub.SavedFP); err != nil {
			return err
		}
		return e.stack.PushU32(retVal)
	case DestLocal:
		e.pc = stub.ResumePC
		if err := e.restoreFrameAt(stub.SavedFP); err != nil {
			return err
		}
		return e.writeLocal(stub.DestAddr, retVal)
	case DestResumeNative:
		e.execMode = ModeReturnFromNative
		e.printingVal = int32(retVal)
		return nil
	default:
		// Any other destination (e.g. a string/number printing stub): restore
		// fp/pc and go back to executing code. Printing runs synchronously,
		// so no printing mode is resumed here.
		e.pc = stub.ResumePC
		if err := e.restoreFrameAt(stub.SavedFP); err != nil {
			return err
		}
		e.execMode = ModeCode
		return nil
	}
}

// callAndRun invokes addr as an ordinary function call and drives the
// fetch/decode/dispatch loop until it returns, then hands back its result.
// Used by the string decoder's indirect-function leaves and by veneer
// routines that need to call back into game code:
// since Glulx has no concurrency, "call a routine and wait for its value"
// is just running the loop a little further before resuming our caller.
func (e *Engine) callAndRun(addr uint32, args []uint32) (uint32, error) {
	e.nativeDepth++
	defer func() { e.nativeDepth-- }()

	savedPC := e.pc
	savedFrame := e.frame
	stub := CallStub{DestType: DestResumeNative}
	if err := e.pushCallFrame(addr, args, stub); err != nil {
		return 0, err
	}
	for e.execMode != ModeReturnFromNative {
		if err := e.stepOpcode(); err != nil {
			return 0, err
		}
	}
	result := uint32(e.printingVal)
	e.execMode = ModeCode
	e.pc = savedPC
	e.frame = savedFrame
	return result, nil
}

// restart reinitializes memory and the stack to their load-time state and
// re-enters start_func, discarding the heap and any pending undo states.
// protect's window survives restart (it is a persistent register, not
// load-time state), so it is captured before the image reverts and
// re-copied over the reverted RAM.
func (e *Engine) restart() error {
	stackSize := e.stack.Cap()
	var protected []byte
	if e.protectionLength > 0 {
		protected, _ = e.image.ReadRAM(e.protectionStart, e.protectionLength)
	}
	e.image.Revert()
	if len(protected) > 0 {
		if err := e.image.WriteRAM(e.protectionStart, protected); err != nil {
			return err
		}
	}

	startFunc, err := e.image.ReadU32(hdrStartFunc)
	if err != nil {
		return err
	}
	decodingTable, err := e.image.ReadU32(hdrDecodingTable)
	if err != nil {
		return err
	}

	e.stack = NewStack(stackSize)
	e.heap = nil
	e.undo = nil
	e.decodingTable = decodingTable
	if decodingTable != 0 {
		e.decoder = NewStringDecoder(e, decodingTable)
	} else {
		e.decoder = nil
	}
	e.outputSystem = 0
	e.filterAddress = 0
	e.running = true
	return e.pushCallFrame(startFunc, nil, CallStub{DestType: DestDiscard})
}

// restoreFrameAt reconstructs e.frame's header fields by re-reading the
// frame_len/locals_pos words stored at fp (they are never mutated after
// being written by pushCallFrame, so this is a cheap re-derivation rather
// than a full locals-format re-walk).
func (e *Engine) restoreFrameAt(fp uint32) error {
	if fp == 0 && e.stack.sp == 0 {
		e.frame = Frame{}
		return nil
	}
	frameLen := readU32(e.stack.buf[fp:])
	localsPos := readU32(e.stack.buf[fp+4:])
	e.frame = Frame{FP: fp, FrameLen: frameLen, LocalsPos: localsPos, Locals: e.frame.locals(fp, e.stack.buf)}
	return nil
}

// locals re-parses the (size,count) descriptor bytes stored between the
// frame header and the aligned locals storage, given frame_len/locals_pos
// already known.
func (f Frame) locals(fp uint32, buf []byte) []LocalsGroup {
	var groups []LocalsGroup
	off := fp + 8
	for off < fp+f.LocalsPos {
		sz := buf[off]
		cnt := buf[off+1]
		off += 2
		if sz == 0 && cnt == 0 {
			break
		}
		groups = append(groups, LocalsGroup{SizeBytes: uint32(sz), Count: uint32(cnt)})
	}
	return groups
}
