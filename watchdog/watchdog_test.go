package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seznam/jobslib-go/clock"
)

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watchdog callback")
	}
}

func TestWatchdog_ExpiresWithoutExtend(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))

	expired := make(chan struct{})
	w.Arm(10*time.Second, func() bool { return true }, func() { close(expired) })

	fc.Advance(10 * time.Second)
	waitFor(t, expired)
	assert.False(t, w.Armed())
}

func TestWatchdog_ExtendCoalescesAndRenews(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))

	refreshCalls := make(chan struct{}, 10)
	expired := make(chan struct{})
	w.Arm(10*time.Second, func() bool {
		refreshCalls <- struct{}{}
		return true
	}, func() { close(expired) })

	w.ExtendLock()
	w.ExtendLock()
	w.ExtendLock()

	fc.Advance(10 * time.Second)
	waitFor(t, refreshCalls)

	select {
	case <-refreshCalls:
		t.Fatal("multiple ExtendLock calls before a fire must coalesce into one refresh")
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, w.Armed())

	fc.Advance(10 * time.Second)
	waitFor(t, expired)
}

func TestWatchdog_RefreshFailureExpires(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))

	expired := make(chan struct{})
	w.Arm(5*time.Second, func() bool { return false }, func() { close(expired) })
	w.ExtendLock()

	fc.Advance(5 * time.Second)
	waitFor(t, expired)
}

func TestWatchdog_DisarmPreventsExpiry(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))

	expired := make(chan struct{})
	w.Arm(5*time.Second, func() bool { return true }, func() { close(expired) })

	w.Disarm()
	assert.False(t, w.Armed())

	fc.Advance(time.Minute)
	select {
	case <-expired:
		t.Fatal("disarmed watchdog must not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchdog_DisarmWhenNeverArmedIsNoop(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))
	require.NotPanics(t, func() { w.Disarm() })
}

func TestWatchdog_ArmTwiceWithoutDisarmPanics(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))
	w.Arm(time.Minute, func() bool { return true }, func() {})
	defer w.Disarm()

	assert.Panics(t, func() {
		w.Arm(time.Minute, func() bool { return true }, func() {})
	})
}

func TestWatchdog_RearmAfterDisarm(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	w := New(fc, zaptest.NewLogger(t))

	w.Arm(time.Minute, func() bool { return true }, func() {})
	w.Disarm()

	expired := make(chan struct{})
	w.Arm(5*time.Second, func() bool { return true }, func() { close(expired) })
	fc.Advance(5 * time.Second)
	waitFor(t, expired)
}
