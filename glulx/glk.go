package glulx

// Glk selector numbers (component C9, the glk shim) for the subset of the
// Glk API this engine implements directly rather than leaving to a
// separate library: character/string output and line/character input,
// which is all the external-interface Host contract actually needs
// to mediate. Any other selector is answered with 0, matching how real
// interpreters tolerate probing for unsupported calls.
const (
	glkPutChar          = 0x0020
	glkPutString        = 0x0084
	glkPutBuffer        = 0x0086
	glkRequestLineEvent = 0x00D0
	glkRequestCharEvent = 0x00D2
	glkSelect           = 0x00C0
	glkCancelLineEvent  = 0x00D8
)

// Glk event types written into the event struct by glk_select.
const (
	evtNone = 0
	evtChar = 2
	evtLine = 3
)

type pendingInput struct {
	kind   uint8 // evtChar or evtLine
	bufAddr uint32
	bufLen  uint32
}

// opGlk implements the glk opcode: L[0] is the selector, L[1] is an
// argument count, and that many further arguments are popped from the
// value stack in reverse order.
func (e *Engine) opGlk(selector, argc uint32, store StoreTarget) error {
	args := make([]uint32, argc)
	floor := e.frame.ValueFloor()
	for i := int(argc) - 1; i >= 0; i-- {
		v, err := e.stack.PopU32(floor)
		if err != nil {
			return err
		}
		args[i] = v
	}

	switch selector {
	case glkPutChar:
		e.output.WriteChar(rune(byte(args[0])))
		return e.storeValue(store, 0)
	case glkPutString:
		s, err := readCString(e.image, args[0])
		if err != nil {
			return err
		}
		e.output.WriteString(s)
		return e.storeValue(store, 0)
	case glkPutBuffer:
		addr, n := args[0], args[1]
		for i := uint32(0); i < n; i++ {
			b, err := e.image.ReadU8(addr + i)
			if err != nil {
				return err
			}
			e.output.WriteChar(rune(b))
		}
		return e.storeValue(store, 0)
	case glkRequestLineEvent:
		e.pending = &pendingInput{kind: evtLine, bufAddr: args[1], bufLen: args[2]}
		return e.storeValue(store, 0)
	case glkRequestCharEvent:
		e.pending = &pendingInput{kind: evtChar}
		return e.storeValue(store, 0)
	case glkCancelLineEvent:
		e.pending = nil
		return e.storeValue(store, 0)
	case glkSelect:
		return e.doGlkSelect(args[0], store)
	default:
		return e.storeValue(store, 0)
	}
}

// doGlkSelect blocks on whatever input glk_request_line_event or
// glk_request_char_event last armed, then fills the four-word event
// struct at eventAddr: (type, window, val1, val2).
func (e *Engine) doGlkSelect(eventAddr uint32, store StoreTarget) error {
	if e.pending == nil || e.host == nil {
		return e.writeEvent(eventAddr, evtNone, 0, 0, store)
	}
	flushed := e.output.Flush()
	switch e.pending.kind {
	case evtLine:
		line, err := e.host.LineWanted(flushed, e.pending.bufLen)
		if err != nil {
			return err
		}
		n := uint32(len(line))
		if n > e.pending.bufLen {
			n = e.pending.bufLen
		}
		for i := uint32(0); i < n; i++ {
			if err := e.image.WriteU8(e.pending.bufAddr+i, line[i]); err != nil {
				return err
			}
		}
		e.pending = nil
		return e.writeEvent(eventAddr, evtLine, 0, n, store)
	case evtChar:
		r, err := e.host.KeyWanted(flushed)
		if err != nil {
			return err
		}
		e.pending = nil
		return e.writeEvent(eventAddr, evtChar, 0, uint32(r), store)
	default:
		return e.writeEvent(eventAddr, evtNone, 0, 0, store)
	}
}

func (e *Engine) writeEvent(addr uint32, typ, win, val1 uint32, store StoreTarget) error {
	if err := e.image.WriteU32(addr, typ); err != nil {
		return err
	}
	if err := e.image.WriteU32(addr+4, win); err != nil {
		return err
	}
	if err := e.image.WriteU32(addr+8, val1); err != nil {
		return err
	}
	if err := e.image.WriteU32(addr+12, 0); err != nil {
		return err
	}
	return e.storeValue(store, 0)
}
