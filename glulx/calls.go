package glulx

// opCall implements the call opcode: argc arguments already pushed onto
// the value stack (deepest first) are popped off and handed to the
// function at addr as a fresh call frame.
func (e *Engine) opCall(addr, argc uint32, store StoreTarget, tail bool) error {
	args := make([]uint32, argc)
	floor := e.frame.ValueFloor()
	for i := int(argc) - 1; i >= 0; i-- {
		v, err := e.stack.PopU32(floor)
		if err != nil {
			return err
		}
		args[i] = v
	}
	stub := CallStub{DestType: store.Mode, DestAddr: store.Addr, ResumePC: e.pc, SavedFP: e.frame.FP}
	return e.pushCallFrame(addr, args, stub)
}

// opCallN implements the callfi/callfii/callfiii family: args are already
// decoded load operands given directly in source order.
func (e *Engine) opCallN(addr uint32, args []uint32, store StoreTarget) error {
	stub := CallStub{DestType: store.Mode, DestAddr: store.Addr, ResumePC: e.pc, SavedFP: e.frame.FP}
	return e.pushCallFrame(addr, append([]uint32(nil), args...), stub)
}

// opTailCall discards the current frame before calling addr, reusing the
// caller's own call stub so the new function returns directly to whoever
// called the current one.
func (e *Engine) opTailCall(addr, argc uint32) error {
	args := make([]uint32, argc)
	floor := e.frame.ValueFloor()
	for i := int(argc) - 1; i >= 0; i-- {
		v, err := e.stack.PopU32(floor)
		if err != nil {
			return err
		}
		args[i] = v
	}
	e.stack.sp = e.frame.FP
	stub, err := e.stack.PopStub()
	if err != nil {
		return err
	}
	return e.pushCallFrame(addr, args, stub)
}

// opThrow unwinds the stack back to the catch token's saved position and
// resumes from its stub with val as the "return value".
func (e *Engine) opThrow(val, token uint32) error {
	if token < callStubBytes || token > e.stack.sp {
		return ErrInvalidCatchToken
	}
	stubPos := token - callStubBytes
	stub := decodeCallStub(e.stack.buf[stubPos:])
	e.stack.sp = stubPos
	return e.resumeFromStub(stub, val)
}
