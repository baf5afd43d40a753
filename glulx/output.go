package glulx

import "strings"

// MainChannel is the default output channel identifier.
const MainChannel = "MAIN"

// OutputBuffer is the multi-channel text accumulator (component C4).
// Selecting a channel other than MAIN clears its accumulator first; MAIN
// accumulates across turns until explicitly flushed.
type OutputBuffer struct {
	channels map[string]*strings.Builder
	order    []string
	current  string
}

// NewOutputBuffer returns a buffer with MAIN selected and empty.
func NewOutputBuffer() *OutputBuffer {
	ob := &OutputBuffer{channels: make(map[string]*strings.Builder)}
	ob.current = MainChannel
	return ob
}

func (ob *OutputBuffer) builder(name string) *strings.Builder {
	b, ok := ob.channels[name]
	if !ok {
		b = &strings.Builder{}
		ob.channels[name] = b
		ob.order = append(ob.order, name)
	}
	return b
}

// SelectChannel switches the channel new output is appended to. Switching
// to a non-MAIN channel clears that channel first; selecting MAIN never
// clears it.
func (ob *OutputBuffer) SelectChannel(name string) {
	if name != MainChannel {
		if b, ok := ob.channels[name]; ok {
			b.Reset()
		}
	}
	ob.current = name
}

// WriteChar appends a single character to the current channel.
func (ob *OutputBuffer) WriteChar(r rune) {
	ob.builder(ob.current).WriteRune(r)
}

// WriteString appends a string to the current channel.
func (ob *OutputBuffer) WriteString(s string) {
	ob.builder(ob.current).WriteString(s)
}

// Flush atomically returns every non-empty channel's accumulated text,
// keyed by its four-character identifier, and empties those channels.
func (ob *OutputBuffer) Flush() map[string]string {
	out := make(map[string]string)
	for _, name := range ob.order {
		b := ob.channels[name]
		if b.Len() > 0 {
			out[name] = b.String()
			b.Reset()
		}
	}
	return out
}
