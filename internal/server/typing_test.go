package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingTimers_FiresOnceAfterWindow(t *testing.T) {
	tt := newTypingTimers(50 * time.Millisecond)

	var fired atomic.Int32
	tt.Touch("conv-1", func() { fired.Add(1) })

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 10*time.Millisecond, "expected timer to fire once after the window elapsed")

	// no further fires
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "expected exactly one fire")
}

func TestTypingTimers_RepeatedTouchCoalesces(t *testing.T) {
	tt := newTypingTimers(150 * time.Millisecond)

	var fired atomic.Int32
	// touch repeatedly within the window; only the last arm may fire
	for i := 0; i < 5; i++ {
		tt.Touch("conv-1", func() { fired.Add(1) })
		time.Sleep(50 * time.Millisecond)
	}

	assert.Equal(t, int32(0), fired.Load(), "expected no fire while touches keep arriving within the window")

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 10*time.Millisecond, "expected exactly one fire after the last touch's window elapsed")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "expected no additional fires")
}

func TestTypingTimers_CancelPreventsFire(t *testing.T) {
	tt := newTypingTimers(50 * time.Millisecond)

	var fired atomic.Int32
	tt.Touch("conv-1", func() { fired.Add(1) })

	assert.True(t, tt.Cancel("conv-1"), "expected cancel to report a pending timer")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "expected cancelled timer to never fire")
}

func TestTypingTimers_CancelWithoutTimer(t *testing.T) {
	tt := newTypingTimers(50 * time.Millisecond)
	assert.False(t, tt.Cancel("conv-1"), "expected cancel with no pending timer to report false")
}

func TestTypingTimers_CancelAfterFireIsNoOp(t *testing.T) {
	tt := newTypingTimers(10 * time.Millisecond)

	var fired atomic.Int32
	tt.Touch("conv-1", func() { fired.Add(1) })

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond, "expected timer to fire")

	assert.False(t, tt.Cancel("conv-1"), "expected cancel after fire to be a harmless no-op")
}

func TestTypingTimers_TimersAreIndependentPerConversation(t *testing.T) {
	tt := newTypingTimers(50 * time.Millisecond)

	var firedA, firedB atomic.Int32
	tt.Touch("conv-a", func() { firedA.Add(1) })
	tt.Touch("conv-b", func() { firedB.Add(1) })

	assert.True(t, tt.Cancel("conv-a"), "expected pending timer for conv-a")

	assert.Eventually(t, func() bool {
		return firedB.Load() == 1
	}, time.Second, 10*time.Millisecond, "expected conv-b timer to fire independently")
	assert.Equal(t, int32(0), firedA.Load(), "expected cancelled conv-a timer to never fire")
}

func TestTypingTimers_CancelAll(t *testing.T) {
	tt := newTypingTimers(50 * time.Millisecond)

	var fired atomic.Int32
	tt.Touch("conv-a", func() { fired.Add(1) })
	tt.Touch("conv-b", func() { fired.Add(1) })

	tt.CancelAll()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "expected no timers to fire after CancelAll")
	assert.Empty(t, tt.timers, "expected timer table to be empty")
}
