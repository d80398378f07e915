package reliant

import (
	"testing"
	"time"
)

func TestManualClockFiresInDeadlineOrder(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	var order []string
	clock.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	clock.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	clock.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })

	clock.Advance(300 * time.Millisecond)

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestManualClockSkipsCanceled(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	fired := false
	c := clock.AfterFunc(100*time.Millisecond, func() { fired = true })
	c.Stop()

	laterFired := false
	clock.AfterFunc(150*time.Millisecond, func() { laterFired = true })

	clock.Advance(200 * time.Millisecond)

	if fired {
		t.Error("canceled callback should not have fired")
	}
	if !laterFired {
		t.Error("later, non-canceled callback should have fired")
	}
}

func TestManualClockCancelingFirstOfTwoDueStillFiresSecond(t *testing.T) {
	// Regression: the top-of-heap entry being canceled must not stop the
	// sweep from reaching a later, due, non-canceled entry.
	clock := NewManualClock(time.Unix(0, 0))

	first := clock.AfterFunc(10*time.Millisecond, func() { t.Error("first should not fire") })
	first.Stop()

	secondFired := false
	clock.AfterFunc(20*time.Millisecond, func() { secondFired = true })

	clock.Advance(50 * time.Millisecond)

	if !secondFired {
		t.Error("second callback should have fired despite first being canceled")
	}
}

func TestManualClockDoesNotFireFutureCallbacks(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	fired := false
	clock.AfterFunc(500*time.Millisecond, func() { fired = true })

	clock.Advance(100 * time.Millisecond)
	if fired {
		t.Error("callback scheduled beyond the advance window should not fire")
	}

	clock.Advance(400 * time.Millisecond)
	if !fired {
		t.Error("callback should fire once cumulative advance reaches its deadline")
	}
}

func TestManualClockNowAdvancesToTarget(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	clock.Advance(time.Second)
	if !clock.Now().Equal(time.Unix(1, 0)) {
		t.Errorf("Now() = %v, want %v", clock.Now(), time.Unix(1, 0))
	}
}

func TestManualClockCallbackSchedulingAnotherCallback(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	var secondFired bool
	clock.AfterFunc(10*time.Millisecond, func() {
		clock.AfterFunc(10*time.Millisecond, func() { secondFired = true })
	})

	clock.Advance(50 * time.Millisecond)

	if !secondFired {
		t.Error("callback scheduled during Advance, within the window, should also fire")
	}
}
