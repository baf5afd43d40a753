package glulx

// Opcode is a Glulx instruction number. Unlike KTStephano-GVM/vm/bytecode.go's
// single-byte Bytecode type, Glulx opcode numbers are
// variable-width so this is a plain uint32.
type Opcode uint32

const (
	OpNop    Opcode = 0x00
	OpAdd    Opcode = 0x10
	OpSub    Opcode = 0x11
	OpMul    Opcode = 0x12
	OpDiv    Opcode = 0x13
	OpMod    Opcode = 0x14
	OpNeg    Opcode = 0x15
	OpBitAnd Opcode = 0x18
	OpBitOr  Opcode = 0x19
	OpBitXor Opcode = 0x1A
	OpBitNot Opcode = 0x1B
	OpShiftL Opcode = 0x1C
	OpSShiftR Opcode = 0x1D
	OpUShiftR Opcode = 0x1E

	OpJump    Opcode = 0x20
	OpJz      Opcode = 0x22
	OpJnz     Opcode = 0x23
	OpJeq     Opcode = 0x24
	OpJne     Opcode = 0x25
	OpJlt     Opcode = 0x26
	OpJge     Opcode = 0x27
	OpJgt     Opcode = 0x28
	OpJle     Opcode = 0x29
	OpJltu    Opcode = 0x2A
	OpJgeu    Opcode = 0x2B
	OpJgtu    Opcode = 0x2C
	OpJleu    Opcode = 0x2D
	OpJumpAbs Opcode = 0x104

	OpCall     Opcode = 0x30
	OpReturn   Opcode = 0x31
	OpCatch    Opcode = 0x32
	OpThrow    Opcode = 0x33
	OpTailCall Opcode = 0x34
	OpCallF    Opcode = 0x160
	OpCallFI   Opcode = 0x161
	OpCallFII  Opcode = 0x162
	OpCallFIII Opcode = 0x163

	OpCopy  Opcode = 0x40
	OpCopyS Opcode = 0x41
	OpCopyB Opcode = 0x42
	OpSexS  Opcode = 0x44
	OpSexB  Opcode = 0x45
	OpALoad    Opcode = 0x48
	OpALoadS   Opcode = 0x49
	OpALoadB   Opcode = 0x4A
	OpALoadBit Opcode = 0x4B
	OpAStore    Opcode = 0x4C
	OpAStoreS   Opcode = 0x4D
	OpAStoreB   Opcode = 0x4E
	OpAStoreBit Opcode = 0x4F

	OpStreamChar     Opcode = 0x70
	OpStreamNum      Opcode = 0x71
	OpStreamStr      Opcode = 0x72
	OpStreamUniChar  Opcode = 0x73
	OpGestalt        Opcode = 0x100
	OpDebugTrap      Opcode = 0x101
	OpGetMemSize     Opcode = 0x102
	OpSetMemSize     Opcode = 0x103
	OpGetStringTbl   Opcode = 0x108
	OpSetStringTbl   Opcode = 0x109
	OpGetIOSys       Opcode = 0x148
	OpSetIOSys       Opcode = 0x149
	OpGlk            Opcode = 0x130
	OpRandom         Opcode = 0x110
	OpSetRandom      Opcode = 0x111
	OpQuit           Opcode = 0x120
	OpVerify         Opcode = 0x121
	OpRestart        Opcode = 0x122
	OpSave           Opcode = 0x123
	OpRestore        Opcode = 0x124
	OpSaveUndo       Opcode = 0x125
	OpRestoreUndo    Opcode = 0x126
	OpProtect        Opcode = 0x127
	OpMZero          Opcode = 0x170
	OpMCopy          Opcode = 0x171
	OpMAlloc         Opcode = 0x178
	OpMFree          Opcode = 0x179
	OpAccelFunc      Opcode = 0x180
	OpAccelParam     Opcode = 0x181

	OpNumToF  Opcode = 0x190
	OpFToNumZ Opcode = 0x191
	OpFToNumN Opcode = 0x192
	OpFAdd    Opcode = 0x198
	OpFSub    Opcode = 0x199
	OpFMul    Opcode = 0x19A
	OpFDiv    Opcode = 0x19B
	OpFMod    Opcode = 0x19C
	OpCeil    Opcode = 0x19E
	OpFloor   Opcode = 0x19F
	OpSqrt    Opcode = 0x1A0
	OpExp     Opcode = 0x1A1
	OpLog     Opcode = 0x1A2
	OpPow     Opcode = 0x1A3
	OpSin     Opcode = 0x1A4
	OpCos     Opcode = 0x1A5
	OpTan     Opcode = 0x1A6
	OpASin    Opcode = 0x1A7
	OpACos    Opcode = 0x1A8
	OpATan    Opcode = 0x1A9
	OpATan2   Opcode = 0x1AA
	OpJFEq    Opcode = 0x1B0
	OpJFNe    Opcode = 0x1B1
	OpJFLt    Opcode = 0x1B2
	OpJFLe    Opcode = 0x1B3
	OpJFGt    Opcode = 0x1B4
	OpJFGe    Opcode = 0x1B5
	OpJIsNaN  Opcode = 0x1B6
	OpJIsInf  Opcode = 0x1B7

	OpLinearSearch Opcode = 0x150
	OpBinarySearch Opcode = 0x151
	OpLinkedSearch Opcode = 0x152

	OpStkCount Opcode = 0x140
	OpStkPeek  Opcode = 0x141
	OpStkSwap  Opcode = 0x142
	OpStkRoll  Opcode = 0x143
	OpStkCopy  Opcode = 0x144
)

// searchOption bit flags.
const (
	SearchKeyIndirect       uint32 = 1
	SearchZeroKeyTerminates uint32 = 2
	SearchReturnIndex       uint32 = 4
)

// opInfo records how many load and store operands an opcode consumes and
// gives its mnemonic for tracing, mirroring
// KTStephano-GVM/vm/bytecode.go's NumRequiredOpArgs/NumOptionalOpArgs split,
// generalized to Glulx's fixed per-opcode load/store arity.
type opInfo struct {
	name   string
	loads  int
	stores int
}

// The opcode table is split into opcodeDense and opcodeSparse: a dense array
// for the single-byte opcode range and a map for everything wider, so
// dispatch cost for common opcodes stays O(1) array indexing.
var opcodeDense [0x80]opInfo
var opcodeSparse = map[Opcode]opInfo{}

func defOp(code Opcode, name string, loads, stores int) {
	info := opInfo{name: name, loads: loads, stores: stores}
	if code < 0x80 {
		opcodeDense[code] = info
		return
	}
	opcodeSparse[code] = info
}

func lookupOp(code Opcode) (opInfo, bool) {
	if code < 0x80 {
		info := opcodeDense[code]
		if info.name == "" && code != OpNop {
			return opInfo{}, false
		}
		return info, true
	}
	info, ok := opcodeSparse[code]
	return info, ok
}

func init() {
	defOp(OpNop, "nop", 0, 0)

	defOp(OpAdd, "add", 2, 1)
	defOp(OpSub, "sub", 2, 1)
	defOp(OpMul, "mul", 2, 1)
	defOp(OpDiv, "div", 2, 1)
	defOp(OpMod, "mod", 2, 1)
	defOp(OpNeg, "neg", 1, 1)
	defOp(OpBitAnd, "bitand", 2, 1)
	defOp(OpBitOr, "bitor", 2, 1)
	defOp(OpBitXor, "bitxor", 2, 1)
	defOp(OpBitNot, "bitnot", 1, 1)
	defOp(OpShiftL, "shiftl", 2, 1)
	defOp(OpSShiftR, "sshiftr", 2, 1)
	defOp(OpUShiftR, "ushiftr", 2, 1)

	defOp(OpJump, "jump", 1, 0)
	defOp(OpJz, "jz", 2, 0)
	defOp(OpJnz, "jnz", 2, 0)
	defOp(OpJeq, "jeq", 3, 0)
	defOp(OpJne, "jne", 3, 0)
	defOp(OpJlt, "jlt", 3, 0)
	defOp(OpJge, "jge", 3, 0)
	defOp(OpJgt, "jgt", 3, 0)
	defOp(OpJle, "jle", 3, 0)
	defOp(OpJltu, "jltu", 3, 0)
	defOp(OpJgeu, "jgeu", 3, 0)
	defOp(OpJgtu, "jgtu", 3, 0)
	defOp(OpJleu, "jleu", 3, 0)
	defOp(OpJumpAbs, "jumpabs", 1, 0)

	defOp(OpCall, "call", 2, 1)
	defOp(OpReturn, "return", 1, 0)
	defOp(OpCatch, "catch", 1, 1)
	defOp(OpThrow, "throw", 2, 0)
	defOp(OpTailCall, "tailcall", 2, 0)
	defOp(OpCallF, "callf", 1, 1)
	defOp(OpCallFI, "callfi", 2, 1)
	defOp(OpCallFII, "callfii", 3, 1)
	defOp(OpCallFIII, "callfiii", 4, 1)

	defOp(OpCopy, "copy", 1, 1)
	defOp(OpCopyS, "copys", 1, 1)
	defOp(OpCopyB, "copyb", 1, 1)
	defOp(OpSexS, "sexs", 1, 1)
	defOp(OpSexB, "sexb", 1, 1)
	defOp(OpALoad, "aload", 2, 1)
	defOp(OpALoadS, "aloads", 2, 1)
	defOp(OpALoadB, "aloadb", 2, 1)
	defOp(OpALoadBit, "aloadbit", 2, 1)
	defOp(OpAStore, "astore", 3, 0)
	defOp(OpAStoreS, "astores", 3, 0)
	defOp(OpAStoreB, "astoreb", 3, 0)
	defOp(OpAStoreBit, "astorebit", 3, 0)

	defOp(OpStreamChar, "streamchar", 1, 0)
	defOp(OpStreamNum, "streamnum", 1, 0)
	defOp(OpStreamStr, "streamstr", 1, 0)
	defOp(OpStreamUniChar, "streamunichar", 1, 0)
	defOp(OpGestalt, "gestalt", 2, 1)
	defOp(OpDebugTrap, "debugtrap", 1, 0)
	defOp(OpGetMemSize, "getmemsize", 0, 1)
	defOp(OpSetMemSize, "setmemsize", 1, 1)
	defOp(OpGetStringTbl, "getstringtbl", 0, 1)
	defOp(OpSetStringTbl, "setstringtbl", 1, 0)
	defOp(OpGetIOSys, "getiosys", 0, 2)
	defOp(OpSetIOSys, "setiosys", 2, 0)
	defOp(OpGlk, "glk", 2, 1)
	defOp(OpRandom, "random", 1, 1)
	defOp(OpSetRandom, "setrandom", 1, 0)
	defOp(OpQuit, "quit", 0, 0)
	defOp(OpVerify, "verify", 0, 1)
	defOp(OpRestart, "restart", 0, 0)
	defOp(OpSave, "save", 1, 1)
	defOp(OpRestore, "restore", 1, 1)
	defOp(OpSaveUndo, "saveundo", 0, 1)
	defOp(OpRestoreUndo, "restoreundo", 0, 1)
	defOp(OpProtect, "protect", 2, 0)
	defOp(OpMZero, "mzero", 2, 0)
	defOp(OpMCopy, "mcopy", 3, 0)
	defOp(OpMAlloc, "malloc", 1, 1)
	defOp(OpMFree, "mfree", 1, 0)
	defOp(OpAccelFunc, "accelfunc", 2, 0)
	defOp(OpAccelParam, "accelparam", 2, 0)

	defOp(OpNumToF, "numtof", 1, 1)
	defOp(OpFToNumZ, "ftonumz", 1, 1)
	defOp(OpFToNumN, "ftonumn", 1, 1)
	defOp(OpFAdd, "fadd", 2, 1)
	defOp(OpFSub, "fsub", 2, 1)
	defOp(OpFMul, "fmul", 2, 1)
	defOp(OpFDiv, "fdiv", 2, 1)
	defOp(OpFMod, "fmod", 2, 2)
	defOp(OpCeil, "ceil", 1, 1)
	defOp(OpFloor, "floor", 1, 1)
	defOp(OpSqrt, "sqrt", 1, 1)
	defOp(OpExp, "exp", 1, 1)
	defOp(OpLog, "log", 1, 1)
	defOp(OpPow, "pow", 2, 1)
	defOp(OpSin, "sin", 1, 1)
	defOp(OpCos, "cos", 1, 1)
	defOp(OpTan, "tan", 1, 1)
	defOp(OpASin, "asin", 1, 1)
	defOp(OpACos, "acos", 1, 1)
	defOp(OpATan, "atan", 1, 1)
	defOp(OpATan2, "atan2", 2, 1)
	defOp(OpJFEq, "jfeq", 4, 0)
	defOp(OpJFNe, "jfne", 4, 0)
	defOp(OpJFLt, "jflt", 3, 0)
	defOp(OpJFLe, "jfle", 3, 0)
	defOp(OpJFGt, "jfgt", 3, 0)
	defOp(OpJFGe, "jfge", 3, 0)
	defOp(OpJIsNaN, "jisnan", 2, 0)
	defOp(OpJIsInf, "jisinf", 2, 0)

	defOp(OpLinearSearch, "linearsearch", 7, 1)
	defOp(OpBinarySearch, "binarysearch", 7, 1)
	defOp(OpLinkedSearch, "linkedsearch", 6, 1)

	defOp(OpStkCount, "stkcount", 0, 1)
	defOp(OpStkPeek, "stkpeek", 1, 1)
	defOp(OpStkSwap, "stkswap", 0, 0)
	defOp(OpStkRoll, "stkroll", 2, 0)
	defOp(OpStkCopy, "stkcopy", 1, 0)
}
