package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_PadFrom(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})

	var slept time.Duration
	td.sleep = func(d time.Duration) { slept = d }

	td.PadFrom(time.Now())

	assert.Greater(t, slept, 90*time.Millisecond)
	assert.LessOrEqual(t, slept, 150*time.Millisecond)
}

func TestTimingDelay_PadFrom_AlreadyElapsed(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 50})

	called := false
	td.sleep = func(time.Duration) { called = true }

	td.PadFrom(time.Now().Add(-time.Second))

	assert.False(t, called)
}

func TestTimingDelay_Nil(t *testing.T) {
	var td *TimingDelay
	assert.NotPanics(t, func() { td.PadFrom(time.Now()) })
}

func TestCryptoRandIntn(t *testing.T) {
	assert.Equal(t, 0, cryptoRandIntn(0))
	for i := 0; i < 100; i++ {
		n := cryptoRandIntn(10)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 10)
	}
}
