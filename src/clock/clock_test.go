package clock

import (
	"context"
	"testing"
	"time"
)

func TestSetSpeedClamps(t *testing.T) {
	c := New()

	c.SetSpeed(100)
	if c.Speed() != MaxSpeed {
		t.Errorf("Speed() = %v, expected clamp to %v", c.Speed(), MaxSpeed)
	}

	c.SetSpeed(0.001)
	if c.Speed() != MinSpeed {
		t.Errorf("Speed() = %v, expected clamp to %v", c.Speed(), MinSpeed)
	}

	c.SetSpeed(2.5)
	if c.Speed() != 2.5 {
		t.Errorf("Speed() = %v, expected 2.5", c.Speed())
	}
}

func TestSleepScalesWithSpeed(t *testing.T) {
	c := New()
	c.SetSpeed(MaxSpeed)

	start := time.Now()
	if err := c.Sleep(context.Background(), 300*time.Millisecond); err != nil {
		t.Fatalf("Sleep returned error: %v", err)
	}
	elapsed := time.Since(start)

	// 300ms at 30x is 10ms; allow generous scheduling slack.
	if elapsed > 150*time.Millisecond {
		t.Errorf("Sleep took %v, expected well under the unscaled duration", elapsed)
	}
}

func TestSleepZeroOrNegativeIsNoop(t *testing.T) {
	c := New()
	start := time.Now()
	if err := c.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("Sleep(0) returned error: %v", err)
	}
	if err := c.Sleep(context.Background(), -time.Second); err != nil {
		t.Fatalf("Sleep(-1s) returned error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("Sleep with non-positive duration should return immediately")
	}
}

func TestSleepBlocksWhilePaused(t *testing.T) {
	c := New()
	c.SetSpeed(MaxSpeed)
	c.SetPaused(true)

	done := make(chan struct{})
	go func() {
		c.Sleep(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Sleep finished while clock was paused")
	case <-time.After(100 * time.Millisecond):
	}

	c.SetPaused(false)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep did not resume after unpause")
	}
}

func TestSleepCancellation(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Sleep(ctx, 10*time.Second)
	}()

	cancel()
	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Sleep should report the cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep did not observe cancellation")
	}
}

func TestTogglePause(t *testing.T) {
	c := New()
	c.TogglePause()
	if !c.Paused() {
		t.Error("TogglePause should pause a running clock")
	}
	c.TogglePause()
	if c.Paused() {
		t.Error("TogglePause should resume a paused clock")
	}
}
