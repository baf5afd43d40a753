package glulx

import (
	"math/rand"
	"time"
)

// random implements the random opcode: n > 0 returns a value in [0, n); n < 0 returns
// a value in (n, 0]; n == 0 returns a full 32-bit spread assembled by
// OR-ing four independently drawn bytes into each byte lane, rather than
// adding four bytes (which would bias the result toward small magnitudes).
func (e *Engine) random(n int32) uint32 {
	switch {
	case n > 0:
		return uint32(e.rng.Int63n(int64(n)))
	case n < 0:
		return uint32(int32(-e.rng.Int63n(int64(-n))))
	default:
		var v uint32
		for shift := uint(0); shift < 32; shift += 8 {
			v |= uint32(e.rng.Intn(256)) << shift
		}
		return v
	}
}

// setRandom implements the setrandom opcode: seed 0 reseeds
// non-deterministically from the current time, any other seed reseeds
// deterministically.
func (e *Engine) setRandom(seed uint32) {
	if seed == 0 {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		return
	}
	e.rng = rand.New(rand.NewSource(int64(seed)))
}
