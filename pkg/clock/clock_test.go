package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := New()
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("expected Now() >= %v, got %v", before, now)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("expected 90s elapsed, got %v", got)
	}
}

func TestMockClock_After(t *testing.T) {
	c := NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	ch := c.After(time.Minute)
	select {
	case <-ch:
		t.Fatal("channel fired before clock advanced")
	default:
	}

	c.Advance(time.Minute)
	select {
	case <-ch:
	default:
		t.Fatal("channel did not fire after advancing past deadline")
	}
}

func TestMockClock_Sleep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMock(start)

	c.Sleep(5 * time.Second)
	if got := c.Since(start); got != 5*time.Second {
		t.Errorf("expected Sleep to advance 5s, got %v", got)
	}
}

func TestMockClock_Ticker(t *testing.T) {
	c := NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	c.Advance(time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatal("expected tick after one interval")
	}

	tk.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker should not tick")
	default:
	}
}
