package glulx

// peekStackAt returns the value idx slots below the current top of the
// value stack (0 = top itself), without disturbing it.
func (e *Engine) peekStackAt(idx uint32) (uint32, error) {
	floor := e.frame.ValueFloor()
	n := e.stack.StkCount(floor)
	if idx >= n {
		return 0, ErrStackUnderflow
	}
	off := e.stack.sp - 4*(idx+1)
	return readU32(e.stack.buf[off:]), nil
}

// stkSwap exchanges the top two value-stack entries.
func (e *Engine) stkSwap() error {
	floor := e.frame.ValueFloor()
	if e.stack.StkCount(floor) < 2 {
		return ErrStackUnderflow
	}
	top := e.stack.sp - 4
	next := e.stack.sp - 8
	a := readU32(e.stack.buf[top:])
	b := readU32(e.stack.buf[next:])
	putU32(e.stack.buf[top:], b)
	putU32(e.stack.buf[next:], a)
	return nil
}

// stkRoll rotates the top n value-stack entries by amount positions
// (positive rotates the top entry deeper, negative rotates entries
// upward).
func (e *Engine) stkRoll(n uint32, amount int32) error {
	if n == 0 {
		return nil
	}
	floor := e.frame.ValueFloor()
	if e.stack.StkCount(floor) < n {
		return ErrStackUnderflow
	}
	base := e.stack.sp - 4*n
	vals := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		vals[i] = readU32(e.stack.buf[base+4*i:])
	}
	shift := amount % int32(n)
	if shift < 0 {
		shift += int32(n)
	}
	rolled := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		src := (int32(i) - shift + int32(n)) % int32(n)
		rolled[i] = vals[src]
	}
	for i := uint32(0); i < n; i++ {
		putU32(e.stack.buf[base+4*i:], rolled[i])
	}
	return nil
}

// stkCopy duplicates the top n value-stack entries, in order, onto the
// stack.
func (e *Engine) stkCopy(n uint32) error {
	if n == 0 {
		return nil
	}
	floor := e.frame.ValueFloor()
	if e.stack.StkCount(floor) < n {
		return ErrStackUnderflow
	}
	base := e.stack.sp - 4*n
	if err := e.stack.checkPush(4 * n); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		v := readU32(e.stack.buf[base+4*i:])
		if err := e.stack.PushU32(v); err != nil {
			return err
		}
	}
	return nil
}
