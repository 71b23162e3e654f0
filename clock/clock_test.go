package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New()

	done := make(chan bool, 1)
	go func() { done <- c.Sleep(ctx, time.Hour) }()

	cancel()
	select {
	case completed := <-done:
		assert.False(t, completed)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not observe cancellation")
	}
}

func TestRealSleepZero(t *testing.T) {
	c := New()
	assert.True(t, c.Sleep(context.Background(), 0))
}

func TestFakeNowAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	f := NewFake(start)
	require.Equal(t, start, f.Now())

	f.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), f.Now())
}

func TestFakeSleepWakesOnAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	done := make(chan bool, 1)
	go func() { done <- f.Sleep(context.Background(), 10*time.Second) }()

	// Not enough time passed yet.
	f.Advance(5 * time.Second)
	select {
	case <-done:
		t.Fatal("sleep woke too early")
	case <-time.After(50 * time.Millisecond):
	}

	f.Advance(5 * time.Second)
	select {
	case completed := <-done:
		assert.True(t, completed)
	case <-time.After(time.Second):
		t.Fatal("sleep did not wake after advance")
	}
}

func TestFakeTimerFiresAndResets(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	timer := f.NewTimer(10 * time.Second)

	f.Advance(5 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	f.Advance(5 * time.Second)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire")
	}

	timer.Reset(10 * time.Second)
	f.Advance(10 * time.Second)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not refire after reset")
	}
}

func TestFakeTimerStopPreventsFire(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	timer := f.NewTimer(5 * time.Second)
	require.True(t, timer.Stop())

	f.Advance(time.Minute)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}
