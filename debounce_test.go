package reflex

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncerStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
