package upgrade

import (
	"testing"
	"time"
)

func TestNextTimeout(t *testing.T) {
	start := fixedClock()
	tests := []struct {
		name     string
		batch    time.Duration
		previous time.Duration
		enabled  bool
		want     time.Duration
	}{
		{"paused ignores history", 0, time.Second, false, PausedSleep},
		{"capped at one minute", 7 * time.Second, 10 * time.Second, true, MaxSleep},
		{"exactly one minute", 6 * time.Second, time.Second, true, time.Minute},
		{"raised to 90 percent of previous", 100 * time.Millisecond, 10 * time.Second, true, 9 * time.Second},
		{"observed wins", 500 * time.Millisecond, time.Second, true, 5 * time.Second},
		{"never below one second", 10 * time.Millisecond, 500 * time.Millisecond, true, time.Second},
		{"floor rounds down to the millisecond", 0, 1115 * time.Millisecond, true, 1003 * time.Millisecond},
		{"floor of 90 percent", 0, 8100 * time.Millisecond, true, 7290 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTimeout(start, start.Add(tt.batch), tt.previous, tt.enabled)
			if got != tt.want {
				t.Fatalf("NextTimeout(batch=%v, previous=%v, enabled=%v) = %v, want %v",
					tt.batch, tt.previous, tt.enabled, got, tt.want)
			}
		})
	}
}

func TestNextTimeout_Bounds(t *testing.T) {
	start := fixedClock()
	batches := []time.Duration{0, time.Millisecond, 50 * time.Millisecond, time.Second, 5 * time.Second, 30 * time.Second, time.Hour}
	previous := []time.Duration{0, 500 * time.Millisecond, time.Second, 1234 * time.Millisecond, 10 * time.Second, time.Minute}

	for _, b := range batches {
		for _, p := range previous {
			got := NextTimeout(start, start.Add(b), p, true)
			low := time.Duration(p.Milliseconds()*9/10) * time.Millisecond
			if low < MinSleep {
				low = MinSleep
			}
			if got < low || got > MaxSleep {
				t.Fatalf("batch=%v previous=%v: %v outside [%v, %v]", b, p, got, low, MaxSleep)
			}
		}
	}
}
