package glulx

import "strconv"

// String-address tag bytes: the byte at a string address
// says how the bytes that follow are encoded.
const (
	strTagCString  = 0xE0
	strTagCompress = 0xE1
	strTagUnicode  = 0xE2
)

// streamChar/streamUniChar write a single character straight to the
// current output channel; no decode excursion is needed for a literal
// operand.
func (e *Engine) streamChar(r rune) error {
	e.output.WriteChar(r)
	return nil
}

// streamNum renders v in decimal and writes it to the current channel
//.
func (e *Engine) streamNum(v int32) error {
	e.output.WriteString(strconv.FormatInt(int64(v), 10))
	return nil
}

// streamStr prints the string or routine found at addr: a C-string, a Unicode string, a Huffman-compressed string
// using the active decoding table, or — for the "function as string"
// extension — a routine invoked purely for its printing side effects.
func (e *Engine) streamStr(addr uint32) error {
	tag, err := e.image.ReadU8(addr)
	if err != nil {
		return err
	}
	switch tag {
	case strTagCString:
		s, err := readCString(e.image, addr+1)
		if err != nil {
			return err
		}
		e.output.WriteString(s)
		return nil
	case strTagUnicode:
		s, err := readUniString(e.image, addr+1)
		if err != nil {
			return err
		}
		e.output.WriteString(s)
		return nil
	case strTagCompress:
		if e.decoder == nil {
			return ErrBadStringTree
		}
		return e.decoder.Print(e, addr+1)
	case funcFormatStack, funcFormatLocals:
		_, err := e.callAndRun(addr, nil)
		return err
	default:
		return ErrBadStringTree
	}
}

// stepPrinting exists to satisfy the run loop's ExecMode switch; every
// print path in this implementation resolves synchronously inside
// streamStr/callAndRun rather than interleaving with Step, so reaching
// here with anything but ModeCode only happens if a veneer routine
// returned through the native-resume path without a caller to consume it.
// Treat that as "done printing" and fall back to fetching code.
func (e *Engine) stepPrinting() (*Suspend, error) {
	e.execMode = ModeCode
	return nil, nil
}

// readCString reads a null-terminated Latin-1 string starting at addr.
func readCString(img *Image, addr uint32) (string, error) {
	var out []byte
	for {
		b, err := img.ReadU8(addr)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		out = append(out, b)
		addr++
	}
	return string(out), nil
}

// readUniString reads a sequence of 4-byte big-endian Unicode code points
// terminated by a zero word, starting at addr.
func readUniString(img *Image, addr uint32) (string, error) {
	var out []rune
	for {
		v, err := img.ReadU32(addr)
		if err != nil {
			return "", err
		}
		if v == 0 {
			break
		}
		out = append(out, rune(v))
		addr += 4
	}
	return string(out), nil
}
