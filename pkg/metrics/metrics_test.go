package metrics

import (
	"testing"
	"time"
)

func TestTimerStop(t *testing.T) {
	timer := NewTimer("test")
	time.Sleep(10 * time.Millisecond)
	d := timer.Stop()

	if d < 10*time.Millisecond {
		t.Errorf("expected at least 10ms, got %v", d)
	}

	// Stopping again returns total elapsed, not zero
	d2 := timer.Stop()
	if d2 < d {
		t.Errorf("second stop %v shorter than first %v", d2, d)
	}
}

func TestRateTrackerGetAndReset(t *testing.T) {
	tracker := NewRateTracker("test_pool")
	tracker.Increment(100)
	time.Sleep(20 * time.Millisecond)

	rate := tracker.GetAndReset()
	if rate <= 0 {
		t.Errorf("expected positive rate, got %f", rate)
	}

	// Counter was reset; with no new increments the next window reports zero
	time.Sleep(5 * time.Millisecond)
	if rate := tracker.GetAndReset(); rate != 0 {
		t.Errorf("expected zero rate after reset, got %f", rate)
	}
}

func TestLatencyTrackerPercentiles(t *testing.T) {
	tracker := NewLatencyTracker(1000)

	// Record out of order so the percentile must sort
	for _, ms := range []int{50, 10, 40, 20, 30} {
		tracker.Record(time.Duration(ms) * time.Millisecond)
	}

	if got := tracker.Len(); got != 5 {
		t.Fatalf("expected 5 samples, got %d", got)
	}

	p50 := tracker.GetPercentile(50)
	if p50 != 30*time.Millisecond {
		t.Errorf("p50 = %v, want 30ms", p50)
	}

	p100 := tracker.GetPercentile(100)
	if p100 != 50*time.Millisecond {
		t.Errorf("p100 = %v, want 50ms", p100)
	}
}

func TestLatencyTrackerBoundedWindow(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 5; i++ {
		tracker.Record(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Len(); got != 3 {
		t.Fatalf("expected window of 3, got %d", got)
	}

	// Oldest samples were evicted, so the minimum is now 3ms
	if p0 := tracker.GetPercentile(0); p0 != 3*time.Millisecond {
		t.Errorf("p0 = %v, want 3ms", p0)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(10)
	if got := tracker.GetPercentile(99); got != 0 {
		t.Errorf("empty tracker should report 0, got %v", got)
	}
}

func TestCollectorRecords(t *testing.T) {
	c := NewCollector("collector_test_pool")

	// These exercise the label wiring; panics on label cardinality
	// mismatches are the failure mode being guarded against.
	c.ObserveAcquire("ok", 5*time.Millisecond)
	c.ObserveAcquire("timed_out", time.Second)
	c.RecordConstruction(true)
	c.RecordConstruction(false)
	c.RecordReuse()
	c.RecordDiscard()
	c.SetOccupancy(3, 1, 2)

	all := c.GetAll()
	if all["pool"] != "collector_test_pool" {
		t.Errorf("pool name = %v", all["pool"])
	}
	if c.StartTime().IsZero() {
		t.Error("start time not set")
	}
}
