package glulx

// Compressed-string decode-tree node types.
const (
	stringNodeBranch             = 0x00
	stringNodeEnd                = 0x01
	stringNodeChar                = 0x02
	stringNodeCString             = 0x03
	stringNodeUniChar             = 0x04
	stringNodeUniString           = 0x05
	stringNodeIndirectCString     = 0x06
	stringNodeIndirectUniString   = 0x07
	stringNodeIndirectCompressed  = 0x08
	stringNodeIndirectFunc        = 0x0E
)

// decodeTableHeader byte offsets, relative to the table address stored in
// the image header / set by setstringtbl.
const (
	tblLen       = 0
	tblNodeCount = 4
	tblRootAddr  = 8
	tblNodesBase = 12
)

// cachedNode is a memoized read of one tree node: its type tag plus just
// enough payload to avoid re-reading image bytes on every visit. Only
// populated when the table lives in ROM, where it can never change under
// us.
type cachedNode struct {
	tag      byte
	left     uint32
	right    uint32
}

// StringDecoder walks a Huffman-compressed string using the tree rooted at
// a decoding table. It mirrors KTStephano-GVM/vm/bytecode.go's dense
// opcode-dispatch split in miniature: a
// cache for the common read-only case, a live fallback otherwise.
type StringDecoder struct {
	img      *Image
	root     uint32
	cacheable bool
	cache    map[uint32]cachedNode
}

// NewStringDecoder builds a decoder for the tree at tableAddr. e is used
// only to read RAMStart() and image bytes at construction time.
func NewStringDecoder(e *Engine, tableAddr uint32) *StringDecoder {
	d := &StringDecoder{img: e.image}
	root, err := e.image.ReadU32(tableAddr + tblRootAddr)
	if err != nil {
		return d
	}
	d.root = root
	d.cacheable = tableAddr < e.image.RAMStart()
	if d.cacheable {
		d.cache = make(map[uint32]cachedNode)
	}
	return d
}

type bitCursor struct {
	img  *Image
	addr uint32
	bit  uint8
}

func (c *bitCursor) readBit() (uint32, error) {
	b, err := c.img.ReadU8(c.addr)
	if err != nil {
		return 0, err
	}
	bit := uint32(b>>c.bit) & 1
	c.bit++
	if c.bit == 8 {
		c.bit = 0
		c.addr++
	}
	return bit, nil
}

// readNode returns the tag and, for branch nodes, both children, using the
// cache when available.
func (d *StringDecoder) readNode(addr uint32) (cachedNode, error) {
	if d.cacheable {
		if n, ok := d.cache[addr]; ok {
			return n, nil
		}
	}
	tag, err := d.img.ReadU8(addr)
	if err != nil {
		return cachedNode{}, err
	}
	n := cachedNode{tag: tag}
	if tag == stringNodeBranch {
		left, err := d.img.ReadU32(addr + 1)
		if err != nil {
			return cachedNode{}, err
		}
		right, err := d.img.ReadU32(addr + 5)
		if err != nil {
			return cachedNode{}, err
		}
		n.left, n.right = left, right
	}
	if d.cacheable {
		d.cache[addr] = n
	}
	return n, nil
}

// walkToLeaf descends from the tree root, consuming one bit per branch,
// until it reaches a non-branch node.
func (d *StringDecoder) walkToLeaf(cur *bitCursor) (byte, uint32, error) {
	addr := d.root
	for {
		n, err := d.readNode(addr)
		if err != nil {
			return 0, 0, err
		}
		if n.tag != stringNodeBranch {
			return n.tag, addr, nil
		}
		bit, err := cur.readBit()
		if err != nil {
			return 0, 0, err
		}
		if bit == 0 {
			addr = n.left
		} else {
			addr = n.right
		}
	}
}

// Print decodes and writes a compressed string starting at the given byte
// address (immediately after the 0xE1 tag byte) to e's output, following
// indirect references and routine-call leaves as it goes.
func (d *StringDecoder) Print(e *Engine, startAddr uint32) error {
	cur := &bitCursor{img: e.image, addr: startAddr}
	for {
		tag, addr, err := d.walkToLeaf(cur)
		if err != nil {
			return err
		}
		switch tag {
		case stringNodeEnd:
			return nil
		case stringNodeChar:
			b, err := e.image.ReadU8(addr + 1)
			if err != nil {
				return err
			}
			e.output.WriteChar(rune(b))
		case stringNodeUniChar:
			v, err := e.image.ReadU32(addr + 1)
			if err != nil {
				return err
			}
			e.output.WriteChar(rune(v))
		case stringNodeCString:
			s, err := readCString(e.image, addr+1)
			if err != nil {
				return err
			}
			e.output.WriteString(s)
		case stringNodeUniString:
			s, err := readUniString(e.image, addr+1)
			if err != nil {
				return err
			}
			e.output.WriteString(s)
		case stringNodeIndirectCString:
			ptr, err := e.image.ReadU32(addr + 1)
			if err != nil {
				return err
			}
			s, err := readCString(e.image, ptr)
			if err != nil {
				return err
			}
			e.output.WriteString(s)
		case stringNodeIndirectUniString:
			ptr, err := e.image.ReadU32(addr + 1)
			if err != nil {
				return err
			}
			s, err := readUniString(e.image, ptr)
			if err != nil {
				return err
			}
			e.output.WriteString(s)
		case stringNodeIndirectCompressed:
			ptr, err := e.image.ReadU32(addr + 1)
			if err != nil {
				return err
			}
			if err := e.streamStr(ptr); err != nil {
				return err
			}
		case stringNodeIndirectFunc:
			ptr, err := e.image.ReadU32(addr + 1)
			if err != nil {
				return err
			}
			if _, err := e.callAndRun(ptr, nil); err != nil {
				return err
			}
		default:
			return ErrBadStringTree
		}
	}
}
