package glulx

import (
	"fmt"
	"io"
)

// Header field byte offsets.
const (
	hdrMagic          = 0
	hdrVersion        = 4
	hdrRAMStart       = 8
	hdrExtStart       = 12
	hdrEndMem         = 16
	hdrStackSize      = 20
	hdrStartFunc      = 24
	hdrDecodingTable  = 28
	hdrChecksum       = 32
	minHeaderLen      = 36
	headerSnapshotLen = 128
)

var glulMagic = [4]byte{'G', 'l', 'u', 'l'}

// Image is the flat byte buffer backing a running program: header, ROM and
// RAM. Addresses are 32-bit offsets
// from 0. KTStephano-GVM's VM keeps memory as a single fixed-size array
// (KTStephano-GVM/vm/vm.go, field `stack [stackSize]byte`); Image
// generalizes that flat-buffer approach to a resizable slice with a
// ROM/RAM boundary.
type Image struct {
	mem      []byte
	ramStart uint32

	origROMAndRAM []byte // copy of bytes [0, original end_mem) as loaded
	origRAM       []byte // copy of RAM [ram_start, original end_mem) as loaded
}

// Header is the parsed set of fixed 32-bit fields at the start of an image.
type Header struct {
	Version        uint32
	RAMStart       uint32
	ExtStart       uint32
	EndMem         uint32
	StackSize      uint32
	StartFunc      uint32
	DecodingTable  uint32
	Checksum       uint32
}

// LoadImage validates and parses a raw Glulx image and returns the Image
// plus its parsed header.
func LoadImage(data []byte) (*Image, Header, error) {
	var hdr Header
	if len(data) < minHeaderLen {
		return nil, hdr, ErrImageTooSmall
	}
	if data[0] != glulMagic[0] || data[1] != glulMagic[1] || data[2] != glulMagic[2] || data[3] != glulMagic[3] {
		return nil, hdr, ErrBadMagic
	}

	hdr = Header{
		Version:       readU32(data[hdrVersion:]),
		RAMStart:      readU32(data[hdrRAMStart:]),
		ExtStart:      readU32(data[hdrExtStart:]),
		EndMem:        readU32(data[hdrEndMem:]),
		StackSize:     readU32(data[hdrStackSize:]),
		StartFunc:     readU32(data[hdrStartFunc:]),
		DecodingTable: readU32(data[hdrDecodingTable:]),
		Checksum:      readU32(data[hdrChecksum:]),
	}

	// Glulx versions are packed as (major<<16 | minor<<8 | subminor);
	// accept 2.0.0 through 3.1.x inclusive, i.e. 0x00020000..0x000301FF.
	if hdr.Version < 0x00020000 || hdr.Version > 0x000301FF {
		return nil, hdr, ErrBadVersion
	}

	if int(hdr.ExtStart) > len(data) {
		return nil, hdr, fmt.Errorf("%w: ext_start past end of file", ErrImageTooSmall)
	}

	if err := verifyChecksum(data, hdr); err != nil {
		return nil, hdr, err
	}

	img := &Image{ramStart: hdr.RAMStart}

	endMem := roundUp256(hdr.EndMem)
	img.mem = make([]byte, endMem)
	copy(img.mem, data[:hdr.ExtStart])
	// Bytes between ext_start and end_mem are the initial RAM that ships
	// zeroed in the image file (it is implicit past the stored length).

	img.origROMAndRAM = make([]byte, hdr.EndMem)
	copy(img.origROMAndRAM, img.mem[:hdr.EndMem])
	img.origRAM = make([]byte, hdr.EndMem-hdr.RAMStart)
	copy(img.origRAM, img.mem[hdr.RAMStart:hdr.EndMem])

	return img, hdr, nil
}

// verifyChecksum sums every 32-bit word from offset 0 through ext_start
// (the checksum word itself counted as zero) and compares it against the
// stored field.
func verifyChecksum(data []byte, hdr Header) error {
	var sum uint32
	limit := hdr.ExtStart
	if limit > uint32(len(data)) {
		limit = uint32(len(data))
	}
	limit -= limit % 4

	for off := uint32(0); off < limit; off += 4 {
		if off == hdrChecksum {
			continue
		}
		sum += readU32(data[off:])
	}

	if sum != hdr.Checksum {
		return ErrBadChecksum
	}
	return nil
}

// EndMem is the current upper bound of addressable memory.
func (img *Image) EndMem() uint32 {
	return uint32(len(img.mem))
}

// RAMStart is the address dividing ROM from RAM.
func (img *Image) RAMStart() uint32 {
	return img.ramStart
}

func (img *Image) checkRead(off, size uint32) error {
	if uint64(off)+uint64(size) > uint64(len(img.mem)) {
		return ErrOutOfRange
	}
	return nil
}

func (img *Image) checkWrite(off, size uint32) error {
	if off < img.ramStart {
		return ErrROMWrite
	}
	return img.checkRead(off, size)
}

func (img *Image) ReadU8(off uint32) (byte, error) {
	if err := img.checkRead(off, 1); err != nil {
		return 0, err
	}
	return img.mem[off], nil
}

func (img *Image) ReadU16(off uint32) (uint16, error) {
	if err := img.checkRead(off, 2); err != nil {
		return 0, err
	}
	return readU16(img.mem[off:]), nil
}

func (img *Image) ReadU32(off uint32) (uint32, error) {
	if err := img.checkRead(off, 4); err != nil {
		return 0, err
	}
	return readU32(img.mem[off:]), nil
}

func (img *Image) WriteU8(off uint32, v byte) error {
	if err := img.checkWrite(off, 1); err != nil {
		return err
	}
	img.mem[off] = v
	return nil
}

func (img *Image) WriteU16(off uint32, v uint16) error {
	if err := img.checkWrite(off, 2); err != nil {
		return err
	}
	putU16(img.mem[off:], v)
	return nil
}

func (img *Image) WriteU32(off uint32, v uint32) error {
	if err := img.checkWrite(off, 4); err != nil {
		return err
	}
	putU32(img.mem[off:], v)
	return nil
}

// SetEndMem implements the setmemsize opcode's memory resize: rounds up to
// a multiple of 256, preserving existing bytes and zero-filling growth.
func (img *Image) SetEndMem(v uint32) error {
	newLen := roundUp256(v)
	old := img.mem
	if newLen <= uint32(len(old)) {
		img.mem = old[:newLen]
		return nil
	}
	grown := make([]byte, newLen)
	copy(grown, old)
	img.mem = grown
	return nil
}

// Revert restores memory to the original header + RAM captured at load
// time, used by restart.
func (img *Image) Revert() {
	endMem := roundUp256(uint32(len(img.origROMAndRAM)))
	img.mem = make([]byte, endMem)
	copy(img.mem, img.origROMAndRAM)
}

// GetOriginalHeader returns the first 128 bytes of the image as loaded.
func (img *Image) GetOriginalHeader() []byte {
	out := make([]byte, headerSnapshotLen)
	copy(out, img.origROMAndRAM)
	return out
}

// GetOriginalRAM returns the bytes from ram_start to the original end_mem.
func (img *Image) GetOriginalRAM() []byte {
	out := make([]byte, len(img.origRAM))
	copy(out, img.origRAM)
	return out
}

// ReadRAMAll returns a copy of every byte from ram_start to the current
// end_mem (used by the save/undo codec, component C7).
func (img *Image) ReadRAMAll() []byte {
	out := make([]byte, len(img.mem)-int(img.ramStart))
	copy(out, img.mem[img.ramStart:])
	return out
}

// ReadRAM returns a copy of len bytes starting at off (an address >= ram_start).
func (img *Image) ReadRAM(off, length uint32) ([]byte, error) {
	if err := img.checkRead(off, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, img.mem[off:off+length])
	return out, nil
}

// WriteRAM overwrites RAM starting at off with the given bytes, growing
// memory first if necessary. Used by restore (C7) to install decompressed
// RAM contents.
func (img *Image) WriteRAM(off uint32, data []byte) error {
	need := off + uint32(len(data))
	if need > uint32(len(img.mem)) {
		if err := img.SetEndMem(need); err != nil {
			return err
		}
	}
	copy(img.mem[off:], data)
	return nil
}

// SetRAM replaces RAM wholesale (used by restore), resizing memory so that
// end_mem matches embeddedLength and copying bytes in above ram_start.
func (img *Image) SetRAM(bytes []byte, embeddedLength uint32) error {
	if err := img.SetEndMem(img.ramStart + embeddedLength); err != nil {
		return err
	}
	copy(img.mem[img.ramStart:], bytes)
	// Zero anything past the supplied bytes but below the new end_mem.
	for i := img.ramStart + uint32(len(bytes)); i < img.ramStart+embeddedLength; i++ {
		img.mem[i] = 0
	}
	return nil
}

// Zero clears length bytes starting at off, honoring the same ROM-write
// protection as WriteU8 (used by the mzero opcode).
func (img *Image) Zero(off, length uint32) error {
	if err := img.checkWrite(off, length); err != nil {
		return err
	}
	clear := img.mem[off : off+length]
	for i := range clear {
		clear[i] = 0
	}
	return nil
}

// CopyWithin copies length bytes from src to dst, honoring overlap the way
// the mcopy opcode requires: forward when dst < src, backward otherwise,
// so an overlapping shift behaves like memmove rather than memcpy.
func (img *Image) CopyWithin(dst, src, length uint32) error {
	if err := img.checkWrite(dst, length); err != nil {
		return err
	}
	if err := img.checkRead(src, length); err != nil {
		return err
	}
	if dst == src || length == 0 {
		return nil
	}
	if dst < src {
		for i := uint32(0); i < length; i++ {
			img.mem[dst+i] = img.mem[src+i]
		}
	} else {
		for i := length; i > 0; i-- {
			img.mem[dst+i-1] = img.mem[src+i-1]
		}
	}
	return nil
}

// Bytes exposes the raw buffer for callers (string decoder, veneer) that
// need direct slice access rather than the checked accessors above. The
// returned slice aliases Image's storage and must not be retained across a
// resize.
func (img *Image) Bytes() []byte {
	return img.mem
}
