package glulx

import "bytes"

// doSearch dispatches to the linear/binary/linked search opcode handlers
//.
func (e *Engine) doSearch(code Opcode, L []uint32, store StoreTarget) error {
	switch code {
	case OpLinearSearch:
		return e.linearSearch(L, store)
	case OpBinarySearch:
		return e.binarySearch(L, store)
	case OpLinkedSearch:
		return e.linkedSearch(L, store)
	default:
		return ErrUnknownOpcode
	}
}

// readKeyBytes resolves the key operand to the keySize bytes to compare
// against each candidate: either indirect (key is an address to read
// keySize bytes from) or literal (the low-order keySize bytes of the
// 32-bit key value itself).
func (e *Engine) readKeyBytes(key, keySize uint32, indirect bool) ([]byte, error) {
	if indirect {
		return e.readBytes(key, keySize)
	}
	if keySize > 4 {
		return nil, ErrBadSearchOptions
	}
	var full [4]byte
	putU32(full[:], key)
	return append([]byte(nil), full[4-keySize:]...), nil
}

func (e *Engine) readBytes(addr, n uint32) ([]byte, error) {
	out := make([]byte, n)
	for i := uint32(0); i < n; i++ {
		b, err := e.image.ReadU8(addr + i)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// linearSearch implements linearsearch: key, keySize,
// start, structSize, numStructs, keyOffset, options.
func (e *Engine) linearSearch(L []uint32, store StoreTarget) error {
	key, keySize, start, structSize, numStructs, keyOffset, options := L[0], L[1], L[2], L[3], L[4], L[5], L[6]
	indirect := options&SearchKeyIndirect != 0
	zeroTerm := options&SearchZeroKeyTerminates != 0
	retIdx := options&SearchReturnIndex != 0

	keyBytes, err := e.readKeyBytes(key, keySize, indirect)
	if err != nil {
		return err
	}

	for i := uint32(0); i < numStructs; i++ {
		addr := start + i*structSize
		cand, err := e.readBytes(addr+keyOffset, keySize)
		if err != nil {
			return err
		}
		if bytes.Equal(cand, keyBytes) {
			if retIdx {
				return e.storeValue(store, i)
			}
			return e.storeValue(store, addr)
		}
		if zeroTerm && allZero(cand) {
			break
		}
	}
	if retIdx {
		return e.storeValue(store, 0xFFFFFFFF)
	}
	return e.storeValue(store, 0)
}

// binarySearch implements binarysearch: the same operand layout as
// linearsearch, over a struct array sorted ascending by unsigned byte
// comparison of the key field.
func (e *Engine) binarySearch(L []uint32, store StoreTarget) error {
	key, keySize, start, structSize, numStructs, keyOffset, options := L[0], L[1], L[2], L[3], L[4], L[5], L[6]
	indirect := options&SearchKeyIndirect != 0
	retIdx := options&SearchReturnIndex != 0

	keyBytes, err := e.readKeyBytes(key, keySize, indirect)
	if err != nil {
		return err
	}

	lo, hi := uint32(0), numStructs
	for lo < hi {
		mid := lo + (hi-lo)/2
		addr := start + mid*structSize
		cand, err := e.readBytes(addr+keyOffset, keySize)
		if err != nil {
			return err
		}
		switch bytes.Compare(cand, keyBytes) {
		case 0:
			if retIdx {
				return e.storeValue(store, mid)
			}
			return e.storeValue(store, addr)
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	if retIdx {
		return e.storeValue(store, 0xFFFFFFFF)
	}
	return e.storeValue(store, 0)
}

// linkedSearch implements linkedsearch: key, keySize, start, keyOffset,
// nextOffset, options, walking a singly linked list of structs.
func (e *Engine) linkedSearch(L []uint32, store StoreTarget) error {
	key, keySize, start, keyOffset, nextOffset, options := L[0], L[1], L[2], L[3], L[4], L[5]
	indirect := options&SearchKeyIndirect != 0
	zeroTerm := options&SearchZeroKeyTerminates != 0

	keyBytes, err := e.readKeyBytes(key, keySize, indirect)
	if err != nil {
		return err
	}

	cur := start
	for cur != 0 {
		cand, err := e.readBytes(cur+keyOffset, keySize)
		if err != nil {
			return err
		}
		if bytes.Equal(cand, keyBytes) {
			return e.storeValue(store, cur)
		}
		if zeroTerm && allZero(cand) {
			break
		}
		next, err := e.image.ReadU32(cur + nextOffset)
		if err != nil {
			return err
		}
		cur = next
	}
	return e.storeValue(store, 0)
}
