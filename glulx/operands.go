package glulx

// Operand addressing modes. The same mode space is used for
// load and store operands; mode 0 means "literal zero" for a load operand
// and "discard" for a store operand, and mode 8 means "pop" for a load and
// "push" for a store.
const (
	ModeZeroOrDiscard = 0x0
	ModeConst8        = 0x1
	ModeConst16       = 0x2
	ModeConst32       = 0x3
	ModeMem8          = 0x5
	ModeMem16         = 0x6
	ModeMem32         = 0x7
	ModeStackOrPush   = 0x8
	ModeLocal8        = 0x9
	ModeLocal16       = 0xA
	ModeLocal32       = 0xB
	ModeRAM8          = 0xD
	ModeRAM16         = 0xE
	ModeRAM32         = 0xF
)

// StoreTarget names a destination for a store operand or delayed store,
// resolved at decode time but written only once the handler has its
// result.
type StoreTarget struct {
	Mode DestType
	Addr uint32
}

// fetchOperandModes reads ceil(n/2) bytes from the instruction stream and
// unpacks n mode nibbles, low nibble first within each byte.
func (e *Engine) fetchOperandModes(n int) ([]byte, error) {
	modes := make([]byte, n)
	for i := 0; i < n; i += 2 {
		b, err := e.fetchU8()
		if err != nil {
			return nil, err
		}
		modes[i] = b & 0x0F
		if i+1 < n {
			modes[i+1] = (b >> 4) & 0x0F
		}
	}
	return modes, nil
}

func (e *Engine) fetchU8() (byte, error) {
	v, err := e.image.ReadU8(e.pc)
	if err != nil {
		return 0, err
	}
	e.pc++
	return v, nil
}

func (e *Engine) fetchU16() (uint16, error) {
	v, err := e.image.ReadU16(e.pc)
	if err != nil {
		return 0, err
	}
	e.pc += 2
	return v, nil
}

func (e *Engine) fetchU32() (uint32, error) {
	v, err := e.image.ReadU32(e.pc)
	if err != nil {
		return 0, err
	}
	e.pc += 4
	return v, nil
}

// loadOperand resolves a load operand's value given its mode nibble.
func (e *Engine) loadOperand(mode byte) (uint32, error) {
	switch mode {
	case ModeZeroOrDiscard:
		return 0, nil
	case ModeConst8:
		v, err := e.fetchU8()
		return uint32(int8(v)), err
	case ModeConst16:
		v, err := e.fetchU16()
		return uint32(int16(v)), err
	case ModeConst32:
		return e.fetchU32()
	case ModeMem8, ModeMem16, ModeMem32, ModeRAM8, ModeRAM16, ModeRAM32:
		addr, err := e.fetchAddressOperand(mode)
		if err != nil {
			return 0, err
		}
		return e.image.ReadU32(addr)
	case ModeStackOrPush:
		return e.stack.PopU32(e.frame.ValueFloor())
	case ModeLocal8, ModeLocal16, ModeLocal32:
		off, err := e.fetchLocalOffset(mode)
		if err != nil {
			return 0, err
		}
		return e.readLocal(off)
	default:
		return 0, ErrInvalidOperand
	}
}

// fetchAddressOperand reads the pointer-width bytes for a memory or
// RAM-relative operand and returns the final resolved image address.
func (e *Engine) fetchAddressOperand(mode byte) (uint32, error) {
	var base uint32
	switch mode {
	case ModeMem8, ModeRAM8:
		v, err := e.fetchU8()
		if err != nil {
			return 0, err
		}
		base = uint32(v)
	case ModeMem16, ModeRAM16:
		v, err := e.fetchU16()
		if err != nil {
			return 0, err
		}
		base = uint32(v)
	case ModeMem32, ModeRAM32:
		v, err := e.fetchU32()
		if err != nil {
			return 0, err
		}
		base = v
	}
	if mode == ModeRAM8 || mode == ModeRAM16 || mode == ModeRAM32 {
		base += e.image.RAMStart()
	}
	return base, nil
}

func (e *Engine) fetchLocalOffset(mode byte) (uint32, error) {
	switch mode {
	case ModeLocal8:
		v, err := e.fetchU8()
		return uint32(v), err
	case ModeLocal16:
		v, err := e.fetchU16()
		return uint32(v), err
	default:
		return e.fetchU32()
	}
}

// fetchStoreTarget reads the address bytes (if any) for a store operand
// mode and returns a StoreTarget to be written via storeValue once the
// instruction's result is known.
func (e *Engine) fetchStoreTarget(mode byte) (StoreTarget, error) {
	switch mode {
	case ModeZeroOrDiscard:
		return StoreTarget{Mode: DestDiscard}, nil
	case ModeStackOrPush:
		return StoreTarget{Mode: DestStack}, nil
	case ModeMem8, ModeMem16, ModeMem32, ModeRAM8, ModeRAM16, ModeRAM32:
		addr, err := e.fetchAddressOperand(mode)
		if err != nil {
			return StoreTarget{}, err
		}
		return StoreTarget{Mode: DestMemory, Addr: addr}, nil
	case ModeLocal8, ModeLocal16, ModeLocal32:
		off, err := e.fetchLocalOffset(mode)
		if err != nil {
			return StoreTarget{}, err
		}
		return StoreTarget{Mode: DestLocal, Addr: off}, nil
	default:
		return StoreTarget{}, ErrInvalidOperand
	}
}

// storeValue deposits v into the resolved destination.
func (e *Engine) storeValue(t StoreTarget, v uint32) error {
	switch t.Mode {
	case DestDiscard:
		return nil
	case DestStack:
		return e.stack.PushU32(v)
	case DestMemory:
		return e.image.WriteU32(t.Addr, v)
	case DestLocal:
		return e.writeLocal(t.Addr, v)
	default:
		return ErrInvalidOperand
	}
}
