package glulx

// Native implementations of the object-model veneer routines. Unlike
// Z__Region/Unsigned__Compare, these read an object tree whose exact byte
// layout Glulx itself never standardizes — the compiling library and the
// interpreter agree on it through accelparam. The slot numbers and table
// shapes below are this engine's own accelparam convention (an Open
// Question decision, not literal spec text): the library calls
// accelparam(slot, value) for each of these once, before registering any
// object-model accelfunc target.
const (
	paramClassesTable   = 1 // addr of 4 consecutive object numbers: Class, Object, Routine, String metaclasses
	paramIndivPropStart = 2 // lowest property id treated as "individual" (no class inheritance)
	paramDefaultsTable  = 3 // addr of the common-property defaults array, indexed (id-1)*4
	paramClassListProp  = 4 // property id whose value address holds obj's zero-terminated class list
	paramPrintProp      = 5 // property id standing in for the "print" metaproperty on strings
	paramCallProp       = 6 // property id standing in for the "call" metaproperty on routines
	paramRTErrorRoutine = 7 // routine called with (errcode, array, index) when RT__Ch* bounds-checks fail
)

// objTagHeader marks the start of a compiled object, the same way
// funcFormatStack/funcFormatLocals mark a routine and strTagCString and
// friends mark a string. Object layout, once past the tag byte:
// [parent u32][sibling u32][child u32][prop_table_addr u32].
const objTagHeader = 0x70

const (
	objHeaderPropTableOff = 13
	objHeaderLen          = 17
)

// Property table layout at prop_table_addr: [count u32] followed by count
// entries sorted ascending by id, each [id u16][length u16][value_addr
// u32][flags u8][pad u8 x3]. flags bit 0 marks the entry private to self.
const (
	propEntrySize   = 12
	propFlagPrivate = 0x01
)

func (e *Engine) param(slot uint32) uint32 {
	if e.veneer.accel == nil {
		return 0
	}
	return e.veneer.accel.params[slot]
}

// region classifies addr the same way the region opcode-free veneer
// routines do: by the tag byte found there. 1 = object, 2 = routine,
// 3 = string, 0 = anything else (including an address out of range).
func (e *Engine) region(addr uint32) uint32 {
	tag, err := e.image.ReadU8(addr)
	if err != nil {
		return 0
	}
	switch tag {
	case objTagHeader:
		return 1
	case funcFormatStack, funcFormatLocals:
		return 2
	case strTagCString, strTagCompress, strTagUnicode:
		return 3
	default:
		return 0
	}
}

// accelZRegion implements Z__Region(addr).
func accelZRegion(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 1 {
		return 0, ErrInvalidOperand
	}
	return e.region(args[0]), nil
}

// metaclassNumbers reads the 4 metaclass object numbers (Class, Object,
// Routine, String, in that order) out of the classes table, or nil if no
// table has been registered yet.
func (e *Engine) metaclassNumbers() []uint32 {
	table := e.param(paramClassesTable)
	if table == 0 {
		return nil
	}
	out := make([]uint32, 4)
	for i := range out {
		v, err := e.image.ReadU32(table + uint32(i)*4)
		if err != nil {
			return nil
		}
		out[i] = v
	}
	return out
}

// accelMetaClass implements Meta__class(obj): the metaclass of one of the
// 4 registered metaclass objects is Class itself; otherwise it follows
// from which region obj falls into.
func accelMetaClass(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 1 {
		return 0, ErrInvalidOperand
	}
	obj := args[0]
	classes := e.metaclassNumbers()
	if classes == nil {
		return 0, nil
	}
	for _, c := range classes {
		if obj == c {
			return classes[0], nil
		}
	}
	switch e.region(obj) {
	case 1:
		return classes[1], nil
	case 2:
		return classes[2], nil
	case 3:
		return classes[3], nil
	default:
		return 0, nil
	}
}

// propTable returns obj's own property-table entries, or nil if obj is
// not a recognized object or carries no properties.
func (e *Engine) propTable(obj uint32) ([]propEntry, error) {
	if e.region(obj) != 1 {
		return nil, nil
	}
	tableAddr, err := e.image.ReadU32(obj + objHeaderPropTableOff)
	if err != nil {
		return nil, err
	}
	if tableAddr == 0 {
		return nil, nil
	}
	count, err := e.image.ReadU32(tableAddr)
	if err != nil {
		return nil, err
	}
	entries := make([]propEntry, count)
	for i := uint32(0); i < count; i++ {
		off := tableAddr + 4 + i*propEntrySize
		id, err := e.image.ReadU16(off)
		if err != nil {
			return nil, err
		}
		length, err := e.image.ReadU16(off + 2)
		if err != nil {
			return nil, err
		}
		valueAddr, err := e.image.ReadU32(off + 4)
		if err != nil {
			return nil, err
		}
		flags, err := e.image.ReadU8(off + 8)
		if err != nil {
			return nil, err
		}
		entries[i] = propEntry{ID: uint32(id), Length: uint32(length), Addr: valueAddr, Flags: flags}
	}
	return entries, nil
}

type propEntry struct {
	ID     uint32
	Length uint32
	Addr   uint32
	Flags  byte
}

// findProp binary-searches obj's own property table for id (CP__Tab's
// job); entries are required to be sorted ascending by id.
func (e *Engine) findProp(obj, id uint32) (propEntry, bool, error) {
	entries, err := e.propTable(obj)
	if err != nil {
		return propEntry{}, false, err
	}
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].ID < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(entries) && entries[lo].ID == id {
		return entries[lo], true, nil
	}
	return propEntry{}, false, nil
}

// selfGlobal is the "self" global's fixed RAM offset: Global0, the first
// word of RAM.
func (e *Engine) selfGlobal() (uint32, error) {
	return e.image.ReadU32(e.image.RAMStart())
}

// visibleProp finds id on obj and applies the private-to-self gate:
// a private entry is visible only while "self" holds obj itself.
func (e *Engine) visibleProp(obj, id uint32) (propEntry, bool, error) {
	entry, ok, err := e.findProp(obj, id)
	if err != nil || !ok {
		return propEntry{}, ok, err
	}
	if entry.Flags&propFlagPrivate != 0 {
		self, err := e.selfGlobal()
		if err != nil {
			return propEntry{}, false, err
		}
		if self != obj {
			return propEntry{}, false, nil
		}
	}
	return entry, true, nil
}

// accelCPTab implements CP__Tab(obj, id): the value address recorded in
// the property entry, or 0 if obj carries no such property.
func accelCPTab(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	entry, ok, err := e.findProp(args[0], args[1])
	if err != nil || !ok {
		return 0, err
	}
	return entry.Addr, nil
}

// accelRAPr implements RA__Pr(obj, id): the property's value address, 0
// if absent or hidden behind the private-to-self gate.
func accelRAPr(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	entry, ok, err := e.visibleProp(args[0], args[1])
	if err != nil || !ok {
		return 0, err
	}
	return entry.Addr, nil
}

// accelRLPr implements RL__Pr(obj, id): the property's length in bytes, 0
// if absent or hidden.
func accelRLPr(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	entry, ok, err := e.visibleProp(args[0], args[1])
	if err != nil || !ok {
		return 0, err
	}
	return entry.Length, nil
}

// accelRVPr implements RV__Pr(obj, id): the property's value, read as a
// big-endian integer no wider than 4 bytes, falling back to the compiler
// defaults table when obj carries no such property.
func accelRVPr(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	obj, id := args[0], args[1]
	entry, ok, err := e.visibleProp(obj, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		table := e.param(paramDefaultsTable)
		indivStart := e.param(paramIndivPropStart)
		if table == 0 || indivStart == 0 || id == 0 || id >= indivStart {
			return 0, nil
		}
		return e.image.ReadU32(table + (id-1)*4)
	}
	switch entry.Length {
	case 0:
		return 0, nil
	case 1:
		v, err := e.image.ReadU8(entry.Addr)
		return uint32(v), err
	case 2:
		v, err := e.image.ReadU16(entry.Addr)
		return uint32(v), err
	default:
		return e.image.ReadU32(entry.Addr)
	}
}

// accelOPPr implements OP__Pr(obj, id): the "provides" predicate, plus
// the printing/call metaproperties on strings and routines.
func accelOPPr(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	obj, id := args[0], args[1]
	switch e.region(obj) {
	case 3:
		if p := e.param(paramPrintProp); p != 0 && p == id {
			return 1, nil
		}
	case 2:
		if p := e.param(paramCallProp); p != 0 && p == id {
			return 1, nil
		}
	}
	_, ok, err := e.visibleProp(obj, id)
	if err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// accelOCCl implements OC__Cl(obj, cls): obj's metaclass matches cls
// directly, or cls appears in obj's registered class list.
func accelOCCl(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	obj, cls := args[0], args[1]
	meta, err := accelMetaClass(e, []uint32{obj})
	if err != nil {
		return 0, err
	}
	if meta == cls {
		return 1, nil
	}
	classes := e.metaclassNumbers()
	for _, c := range classes {
		if cls == c {
			// cls is itself one of the 4 primitive metaclasses and obj's
			// own metaclass already failed to match above.
			return 0, nil
		}
	}
	listProp := e.param(paramClassListProp)
	if listProp == 0 {
		return 0, nil
	}
	entry, ok, err := e.visibleProp(obj, listProp)
	if err != nil || !ok {
		return 0, err
	}
	for i := uint32(0); i < entry.Length/4; i++ {
		v, err := e.image.ReadU32(entry.Addr + i*4)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			break
		}
		if v == cls {
			return 1, nil
		}
	}
	return 0, nil
}

// rtBoundsFail reports a RT__Ch* bounds violation to the configured
// runtime-error routine, if any, before returning 0 to the caller.
func (e *Engine) rtBoundsFail(errcode, array, index uint32) (uint32, error) {
	routine := e.param(paramRTErrorRoutine)
	if routine != 0 {
		if _, err := e.callAndRun(routine, []uint32{errcode, array, index}); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// accelRTChLDW implements RT__ChLDW(array, index): bounds-checked word
// read from a -->  style array.
func accelRTChLDW(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	array, index := args[0], args[1]
	addr := array + index*4
	if uint64(addr)+4 > uint64(e.image.EndMem()) {
		return e.rtBoundsFail(1, array, index)
	}
	return e.image.ReadU32(addr)
}

// accelRTChSTW implements RT__ChSTW(array, index, value): bounds-checked
// word store, storing 0 for the (discarded) result.
func accelRTChSTW(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 3 {
		return 0, ErrInvalidOperand
	}
	array, index, value := args[0], args[1], args[2]
	addr := array + index*4
	if uint64(addr)+4 > uint64(e.image.EndMem()) {
		return e.rtBoundsFail(2, array, index)
	}
	return 0, e.image.WriteU32(addr, value)
}

// accelRTChLDB implements RT__ChLDB(array, index): bounds-checked byte
// read from a -> style array.
func accelRTChLDB(e *Engine, args []uint32) (uint32, error) {
	if len(args) < 2 {
		return 0, ErrInvalidOperand
	}
	array, index := args[0], args[1]
	addr := array + index
	if uint64(addr)+1 > uint64(e.image.EndMem()) {
		return e.rtBoundsFail(3, array, index)
	}
	v, err := e.image.ReadU8(addr)
	return uint32(v), err
}
