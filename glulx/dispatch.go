package glulx

import (
	"fmt"

	"go.uber.org/zap"
)

// Step executes exactly one unit of work: either the next opcode, or (if
// mid-excursion) the next character of a string/number print. The returned
// *Suspend is always nil: input and save/restore are obtained by calling the
// Host directly and synchronously from inside the opcode that needs them.
func (e *Engine) Step() (*Suspend, error) {
	if !e.running {
		return nil, e.lastErr
	}

	if e.execMode != ModeCode {
		return e.stepPrinting()
	}

	if err := e.stepOpcode(); err != nil {
		if err == ErrQuit {
			e.running = false
			e.lastErr = ErrQuit
			return nil, nil
		}
		e.fault(err)
		return nil, err
	}
	return nil, nil
}

// Run drives Step until the engine halts or a runtime fault occurs. Since
// Step never returns a non-nil *Suspend, neither does Run; the host is
// consulted through direct Host calls during execution.
func (e *Engine) Run() (*Suspend, error) {
	for e.running {
		susp, err := e.Step()
		if err != nil {
			return nil, err
		}
		if susp != nil {
			return susp, nil
		}
	}
	return nil, e.lastErr
}

// fetchOpcode decodes the variable-width opcode number.
func (e *Engine) fetchOpcode() (Opcode, error) {
	b0, err := e.fetchU8()
	if err != nil {
		return 0, err
	}
	switch {
	case b0 < 0x80:
		return Opcode(b0), nil
	case b0 < 0xC0:
		b1, err := e.fetchU8()
		if err != nil {
			return 0, err
		}
		v := (uint32(b0) << 8) | uint32(b1)
		return Opcode(v - 0x8000), nil
	default:
		b1, err := e.fetchU8()
		if err != nil {
			return 0, err
		}
		b2, err := e.fetchU8()
		if err != nil {
			return 0, err
		}
		b3, err := e.fetchU8()
		if err != nil {
			return 0, err
		}
		v := (uint32(b0) << 24) | (uint32(b1) << 16) | (uint32(b2) << 8) | uint32(b3)
		return Opcode(v - 0xC0000000), nil
	}
}

func (e *Engine) stepOpcode() error {
	startPC := e.pc
	code, err := e.fetchOpcode()
	if err != nil {
		return err
	}

	info, ok := lookupOp(code)
	if !ok {
		return fmt.Errorf("%w: 0x%x at pc %d", ErrUnknownOpcode, uint32(code), startPC)
	}

	modes, err := e.fetchOperandModes(info.loads + info.stores)
	if err != nil {
		return err
	}

	loads := make([]uint32, info.loads)
	for i := 0; i < info.loads; i++ {
		v, err := e.loadOperand(modes[i])
		if err != nil {
			return err
		}
		loads[i] = v
	}

	stores := make([]StoreTarget, info.stores)
	for i := 0; i < info.stores; i++ {
		t, err := e.fetchStoreTarget(modes[info.loads+i])
		if err != nil {
			return err
		}
		stores[i] = t
	}

	return e.execute(code, loads, stores)
}

// doBranch implements the shared branch-target semantics of every jump
// opcode: a target of 0 or 1 returns that value from the
// current function; any other value is relative to the address
// immediately after the branch operand (which is e.pc at call time).
func (e *Engine) doBranch(target uint32) error {
	if target == 0 {
		return e.popCallFrame(0)
	}
	if target == 1 {
		return e.popCallFrame(1)
	}
	e.pc = e.pc + target - 2
	return nil
}

func signed(v uint32) int32 { return int32(v) }

// execute dispatches a fully-decoded instruction. It mirrors the shape of
// KTStephano-GVM/vm/exec.go's execNextInstruction switch,
// generalized from a one-register stack machine to Glulx's operand model.
func (e *Engine) execute(code Opcode, L []uint32, S []StoreTarget) error {
	switch code {
	case OpNop:
		return nil

	case OpAdd:
		return e.storeValue(S[0], L[0]+L[1])
	case OpSub:
		return e.storeValue(S[0], L[0]-L[1])
	case OpMul:
		return e.storeValue(S[0], L[0]*L[1])
	case OpDiv:
		if L[1] == 0 {
			return ErrDivideByZero
		}
		return e.storeValue(S[0], uint32(signed(L[0])/signed(L[1])))
	case OpMod:
		if L[1] == 0 {
			return ErrDivideByZero
		}
		return e.storeValue(S[0], uint32(signed(L[0])%signed(L[1])))
	case OpNeg:
		return e.storeValue(S[0], uint32(-signed(L[0])))
	case OpBitAnd:
		return e.storeValue(S[0], L[0]&L[1])
	case OpBitOr:
		return e.storeValue(S[0], L[0]|L[1])
	case OpBitXor:
		return e.storeValue(S[0], L[0]^L[1])
	case OpBitNot:
		return e.storeValue(S[0], ^L[0])
	case OpShiftL:
		if L[1] >= 32 {
			return e.storeValue(S[0], 0)
		}
		return e.storeValue(S[0], L[0]<<L[1])
	case OpUShiftR:
		if L[1] >= 32 {
			return e.storeValue(S[0], 0)
		}
		return e.storeValue(S[0], L[0]>>L[1])
	case OpSShiftR:
		if L[1] >= 32 {
			if signed(L[0]) < 0 {
				return e.storeValue(S[0], 0xFFFFFFFF)
			}
			return e.storeValue(S[0], 0)
		}
		return e.storeValue(S[0], uint32(signed(L[0])>>L[1]))

	case OpJump:
		return e.doBranch(L[0])
	case OpJumpAbs:
		e.pc = L[0]
		return nil
	case OpJz:
		if L[0] == 0 {
			return e.doBranch(L[1])
		}
		return nil
	case OpJnz:
		if L[0] != 0 {
			return e.doBranch(L[1])
		}
		return nil
	case OpJeq:
		if L[0] == L[1] {
			return e.doBranch(L[2])
		}
		return nil
	case OpJne:
		if L[0] != L[1] {
			return e.doBranch(L[2])
		}
		return nil
	case OpJlt:
		if signed(L[0]) < signed(L[1]) {
			return e.doBranch(L[2])
		}
		return nil
	case OpJge:
		if signed(L[0]) >= signed(L[1]) {
			return e.doBranch(L[2])
		}
		return nil
	case OpJgt:
		if signed(L[0]) > signed(L[1]) {
			return e.doBranch(L[2])
		}
		return nil
	case OpJle:
		if signed(L[0]) <= signed(L[1]) {
			return e.doBranch(L[2])
		}
		return nil
	case OpJltu:
		if L[0] < L[1] {
			return e.doBranch(L[2])
		}
		return nil
	case OpJgeu:
		if L[0] >= L[1] {
			return e.doBranch(L[2])
		}
		return nil
	case OpJgtu:
		if L[0] > L[1] {
			return e.doBranch(L[2])
		}
		return nil
	case OpJleu:
		if L[0] <= L[1] {
			return e.doBranch(L[2])
		}
		return nil

	case OpCall:
		return e.opCall(L[0], L[1], S[0], false)
	case OpTailCall:
		return e.opTailCall(L[0], L[1])
	case OpCallF:
		return e.opCall(L[0], 0, S[0], false)
	case OpCallFI:
		return e.opCallN(L[0], L[1:], S[0])
	case OpCallFII:
		return e.opCallN(L[0], L[1:], S[0])
	case OpCallFIII:
		return e.opCallN(L[0], L[1:], S[0])
	case OpReturn:
		return e.popCallFrame(L[0])
	case OpCatch:
		token := e.stack.sp + callStubBytes
		if err := e.stack.PushStub(CallStub{DestType: S[0].Mode, DestAddr: S[0].Addr, ResumePC: e.pc, SavedFP: e.frame.FP}); err != nil {
			return err
		}
		if err := e.storeValue(S[0], token); err != nil {
			return err
		}
		return e.doBranch(L[0])
	case OpThrow:
		return e.opThrow(L[0], L[1])

	case OpCopy:
		return e.storeValue(S[0], L[0])
	case OpCopyS:
		return e.storeValue(S[0], uint32(uint16(L[0])))
	case OpCopyB:
		return e.storeValue(S[0], uint32(byte(L[0])))
	case OpSexS:
		return e.storeValue(S[0], uint32(int32(int16(uint16(L[0])))))
	case OpSexB:
		return e.storeValue(S[0], uint32(int32(int8(byte(L[0])))))

	case OpALoad:
		v, err := e.image.ReadU32(L[0] + 4*L[1])
		if err != nil {
			return err
		}
		return e.storeValue(S[0], v)
	case OpALoadS:
		v, err := e.image.ReadU16(L[0] + 2*L[1])
		if err != nil {
			return err
		}
		return e.storeValue(S[0], uint32(v))
	case OpALoadB:
		v, err := e.image.ReadU8(L[0] + L[1])
		if err != nil {
			return err
		}
		return e.storeValue(S[0], uint32(v))
	case OpALoadBit:
		addr, bit := normalizeBitIndex(L[0], int32(signed(L[1])))
		b, err := e.image.ReadU8(addr)
		if err != nil {
			return err
		}
		if b&(1<<bit) != 0 {
			return e.storeValue(S[0], 1)
		}
		return e.storeValue(S[0], 0)
	case OpAStore:
		return e.image.WriteU32(L[0]+4*L[1], L[2])
	case OpAStoreS:
		return e.image.WriteU16(L[0]+2*L[1], uint16(L[2]))
	case OpAStoreB:
		return e.image.WriteU8(L[0]+L[1], byte(L[2]))
	case OpAStoreBit:
		addr, bit := normalizeBitIndex(L[0], int32(signed(L[1])))
		b, err := e.image.ReadU8(addr)
		if err != nil {
			return err
		}
		if L[2] != 0 {
			b |= 1 << bit
		} else {
			b &^= 1 << bit
		}
		return e.image.WriteU8(addr, b)

	case OpStreamChar:
		return e.streamChar(rune(byte(L[0])))
	case OpStreamUniChar:
		return e.streamChar(rune(L[0]))
	case OpStreamNum:
		return e.streamNum(int32(signed(L[0])))
	case OpStreamStr:
		return e.streamStr(L[0])

	case OpGetStringTbl:
		return e.storeValue(S[0], e.decodingTable)
	case OpSetStringTbl:
		e.decodingTable = L[0]
		if L[0] == 0 {
			e.decoder = nil
		} else {
			e.decoder = NewStringDecoder(e, L[0])
		}
		return nil
	case OpGetIOSys:
		if err := e.storeValue(S[0], e.outputSystem); err != nil {
			return err
		}
		return e.storeValue(S[1], e.filterAddress)
	case OpSetIOSys:
		e.outputSystem = L[0]
		e.filterAddress = L[1]
		return nil
	case OpGlk:
		return e.opGlk(L[0], L[1], S[0])

	case OpGestalt:
		return e.storeValue(S[0], gestalt(L[0], L[1]))
	case OpDebugTrap:
		e.log.Debug("debugtrap", zap.Uint32("code", L[0]))
		return nil

	case OpGetMemSize:
		return e.storeValue(S[0], e.image.EndMem())
	case OpSetMemSize:
		if e.heap != nil {
			return e.storeValue(S[0], 1)
		}
		if err := e.image.SetEndMem(L[0]); err != nil {
			return err
		}
		return e.storeValue(S[0], 0)
	case OpMZero:
		return e.mzero(L[0], L[1])
	case OpMCopy:
		return e.mcopy(L[0], L[1], L[2])
	case OpMAlloc:
		return e.storeValue(S[0], e.malloc(L[0]))
	case OpMFree:
		e.mfree(L[0])
		return nil

	case OpAccelFunc:
		return e.accelFunc(L[0], L[1])
	case OpAccelParam:
		return e.accelParam(L[0], L[1])

	case OpRandom:
		return e.storeValue(S[0], e.random(int32(signed(L[0]))))
	case OpSetRandom:
		e.setRandom(L[0])
		return nil

	case OpQuit:
		return ErrQuit
	case OpVerify:
		return e.storeValue(S[0], 0)
	case OpRestart:
		return e.restart()
	case OpSave:
		return e.opSave(L[0], S[0])
	case OpRestore:
		return e.opRestore(L[0], S[0])
	case OpSaveUndo:
		return e.opSaveUndo(S[0])
	case OpRestoreUndo:
		return e.opRestoreUndo(S[0])
	case OpProtect:
		e.protectionStart = L[0]
		e.protectionLength = L[1]
		return nil

	case OpStkCount:
		return e.storeValue(S[0], e.stack.StkCount(e.frame.ValueFloor()))
	case OpStkPeek:
		v, err := e.peekStackAt(L[0])
		if err != nil {
			return err
		}
		return e.storeValue(S[0], v)
	case OpStkSwap:
		return e.stkSwap()
	case OpStkRoll:
		return e.stkRoll(L[0], int32(signed(L[1])))
	case OpStkCopy:
		return e.stkCopy(L[0])

	case OpLinearSearch, OpBinarySearch, OpLinkedSearch:
		return e.doSearch(code, L, S[0])

	case OpNumToF, OpFToNumZ, OpFToNumN, OpFAdd, OpFSub, OpFMul, OpFDiv, OpFMod,
		OpCeil, OpFloor, OpSqrt, OpExp, OpLog, OpPow,
		OpSin, OpCos, OpTan, OpASin, OpACos, OpATan, OpATan2,
		OpJFEq, OpJFNe, OpJFLt, OpJFLe, OpJFGt, OpJFGe, OpJIsNaN, OpJIsInf:
		return e.execFloat(code, L, S)

	default:
		return fmt.Errorf("%w: 0x%x", ErrUnknownOpcode, uint32(code))
	}
}

func normalizeBitIndex(addr uint32, bit int32) (uint32, uint32) {
	for bit < 0 {
		bit += 8
		addr--
	}
	addr += uint32(bit) / 8
	bit = bit % 8
	return addr, uint32(bit)
}
