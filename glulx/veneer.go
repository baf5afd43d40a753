package glulx

// accelFuncNames maps the standard accelerated-function numbers (as used
// by accelfunc) to their conventional Inform library names, for gestalt
// probing and tracing. Only entries with a native
// implementation in nativeVeneerFuncs are actually accelerated; numbers
// outside this table fall back to ordinary bytecode execution.
var accelFuncNames = map[uint32]string{
	1:  "Z__Region",
	2:  "CP__Tab",
	3:  "RA__Pr",
	4:  "RL__Pr",
	5:  "OC__Cl",
	6:  "RV__Pr",
	7:  "OP__Pr",
	8:  "RT__ChLDW",
	9:  "RT__ChSTW",
	10: "RT__ChLDB",
	11: "Meta__class",
	12: "Unsigned__Compare",
}

// accelState holds the object-tree layout parameters supplied through
// accelparam and the set of addresses currently accelerated through
// accelfunc, mirroring Glulxe/Quixe's "acceleration" extension.
type accelState struct {
	funcs  map[uint32]uint32 // function address -> accel number
	params map[uint32]uint32 // param index -> value (class numbers, table addrs)
}

func newAccelState() *accelState {
	return &accelState{funcs: make(map[uint32]uint32), params: make(map[uint32]uint32)}
}

// VeneerTable is component C6: the set of game-supplied function
// addresses the engine has been told (via accelfunc) to intercept with a
// native implementation. KTStephano-GVM/vm/bytecode.go fixes its built-in
// opcode table at compile time; here the table is registration-based
// instead, since the veneer set is chosen by the compiled game, not the VM.
type VeneerTable struct {
	accel *accelState
}

func NewVeneerTable() *VeneerTable {
	return &VeneerTable{accel: newAccelState()}
}

// Lookup reports whether target has been accelerated, and if so which
// accel number it maps to.
func (v *VeneerTable) Lookup(target uint32) (uint32, bool) {
	if v.accel == nil {
		return 0, false
	}
	n, ok := v.accel.funcs[target]
	return n, ok
}

// accelFunc implements the accelfunc opcode: register (or, with slot 0,
// unregister) a native implementation for funcAddr.
func (e *Engine) accelFunc(slot, funcAddr uint32) error {
	if e.veneer.accel == nil {
		e.veneer.accel = newAccelState()
	}
	if slot == 0 {
		delete(e.veneer.accel.funcs, funcAddr)
		return nil
	}
	e.veneer.accel.funcs[funcAddr] = slot
	return nil
}

// accelParam implements the accelparam opcode: set one of the numbered
// object-tree layout parameters the native routines consult.
func (e *Engine) accelParam(index, value uint32) error {
	if e.veneer.accel == nil {
		e.veneer.accel = newAccelState()
	}
	e.veneer.accel.params[index] = value
	return nil
}

// invokeVeneer runs the native implementation for accel number v against
// args, depositing its result through stub exactly as a popCallFrame
// would. Accel numbers without a native implementation fall back to
// ordinary bytecode execution of the registered address, since accelfunc
// is purely a performance hint — correctness never depends on it.
func (e *Engine) invokeVeneer(v uint32, target uint32, args []uint32, stub CallStub) error {
	fn, ok := nativeVeneerFuncs[v]
	if !ok || e.accelerationOff {
		return e.pushCallFrameBypassingVeneer(target, args, stub)
	}
	result, err := fn(e, args)
	if err != nil {
		return err
	}
	return e.resumeFromStub(stub, result)
}

// pushCallFrameBypassingVeneer re-enters pushCallFrame's body for an
// address that is registered as accelerated but has no native handler; it
// must not re-check the veneer table (that would recurse), so it inlines
// the same construction pushCallFrame does for an un-accelerated target.
func (e *Engine) pushCallFrameBypassingVeneer(target uint32, args []uint32, stub CallStub) error {
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
	descBytes := uint32(len(groups))*2 + 2
	localsPos := (8 + descBytes + 3) &^ 3
	frameLen := (localsPos + localsBytesLen + 3) &^ 3
	if err := e.stack.checkPush(frameLen); err != nil {
		return err
	}
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

type nativeVeneerFunc func(e *Engine, args []uint32) (uint32, error)

// nativeVeneerFuncs implements every required accelerated-function slot.
// Z__Region and Unsigned__Compare need nothing but their own arguments;
// the rest read the object tree through the accelparam-supplied layout
// (see objectmodel.go).
var nativeVeneerFuncs = map[uint32]nativeVeneerFunc{
	1:  accelZRegion,         // Z__Region(addr)
	2:  accelCPTab,           // CP__Tab(obj, id)
	3:  accelRAPr,            // RA__Pr(obj, id)
	4:  accelRLPr,            // RL__Pr(obj, id)
	5:  accelOCCl,            // OC__Cl(obj, class)
	6:  accelRVPr,            // RV__Pr(obj, id)
	7:  accelOPPr,            // OP__Pr(obj, id)
	8:  accelRTChLDW,         // RT__ChLDW(array, index)
	9:  accelRTChSTW,         // RT__ChSTW(array, index, value)
	10: accelRTChLDB,         // RT__ChLDB(array, index)
	11: accelMetaClass,       // Meta__class(obj)
	12: accelUnsignedCompare, // Unsigned__Compare(a, b)
}

// accelUnsignedCompare returns -1, 0, or 1 (as unsigned 0xFFFFFFFF/0/1)
// comparing its two arguments as unsigned 32-bit values.
func accelUnsignedCompare(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	a, b := args[0], args[1]
	switch {
	case a < b:
		return 0xFFFFFFFF, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}
