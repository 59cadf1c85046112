package clock

import (
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}
	c.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", c.Now(), want)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("after Set, Now() = %v, want %v", c.Now(), start)
	}
}

func TestRealClockIsUTC(t *testing.T) {
	if loc := Real().Now().Location(); loc != time.UTC {
		t.Errorf("Real().Now() location = %v, want UTC", loc)
	}
}
