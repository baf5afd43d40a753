package glulx

import (
	"encoding/binary"
	"io"
)

// Glulx is defined entirely in big-endian terms, unlike KTStephano-GVM's
// little-endian virtual architecture. Every
// multi-byte read/write in the engine funnels through these helpers so the
// byte order lives in exactly one place.

func readU16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func readU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func putU16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

func putU32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	putU16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	putU32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU16From(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return readU16(buf[:]), nil
}

func readU32From(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return readU32(buf[:]), nil
}

// roundUp256 rounds v up to the next multiple of 256, the required
// granularity for growing end_mem.
func roundUp256(v uint32) uint32 {
	return (v + 255) &^ 255
}
