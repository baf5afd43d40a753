package glulx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomPositiveRangeBound(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	for i := 0; i < 200; i++ {
		v := e.random(10)
		assert.Less(t, int32(v), int32(10))
	}
}

func TestRandomNegativeRangeBound(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	for i := 0; i < 200; i++ {
		v := int32(e.random(-10))
		assert.Greater(t, v, int32(-10))
		assert.LessOrEqual(t, v, int32(0))
	}
}

func TestSetRandomDeterministicWithFixedSeed(t *testing.T) {
	e1 := newTestEngine(t, 64, 96, 512, 256, 64)
	e1.setRandom(42)
	e2 := newTestEngine(t, 64, 96, 512, 256, 64)
	e2.setRandom(42)

	for i := 0; i < 20; i++ {
		assert.Equal(t, e1.random(1000), e2.random(1000))
	}
}

func TestSetRandomZeroReseedsNonDeterministically(t *testing.T) {
	e := newTestEngine(t, 64, 96, 512, 256, 64)
	e.setRandom(0)
	// Just confirm it doesn't panic and the generator still works.
	_ = e.random(100)
}
