package trip

import (
	"testing"
	"time"
)

// Latitude deltas at the equator-ish scale used below:
// 0.00018 deg ~ 20 m, 0.0009 deg ~ 100 m.
const (
	latDelta20m  = 0.00018
	latDelta100m = 0.0009
)

func TestLongDwellEmitsExactlyOneStop(t *testing.T) {
	a := NewAccumulator(DefaultConfig())
	a.Start(40, t0)

	// Stationary for 90 continuous seconds, sampled every 5 s.
	for sec := 0; sec <= 90; sec += 5 {
		a.Ingest(sampleAt(6.9271, 79.8612, 0), t0.Add(time.Duration(sec)*time.Second))
	}

	if n := len(a.stops); n != 1 {
		t.Fatalf("expected exactly 1 stop, got %d", n)
	}
	if !a.stops[0].StartedAt.Equal(t0) {
		t.Fatalf("stop anchored at %v, want dwell start %v", a.stops[0].StartedAt, t0)
	}
}

func TestShortDwellDoesNotEmit(t *testing.T) {
	a := NewAccumulator(DefaultConfig())
	a.Start(40, t0)

	// A 40 s traffic-light pause, then motion resumes.
	a.Ingest(sampleAt(6.9271, 79.8612, 0), t0)
	a.Ingest(sampleAt(6.9271, 79.8612, 0), t0.Add(40*time.Second))
	a.Ingest(sampleAt(6.9280, 79.8612, 25), t0.Add(45*time.Second))

	if n := len(a.stops); n != 0 {
		t.Fatalf("traffic-light pause recorded as stop: %d", n)
	}
}

func TestNearbyRedwellDoesNotRetrigger(t *testing.T) {
	a := NewAccumulator(DefaultConfig())
	a.Start(40, t0)

	dwell := func(lat float64, from time.Time) {
		for sec := 0; sec <= 70; sec += 5 {
			a.Ingest(sampleAt(lat, 79.8612, 0), from.Add(time.Duration(sec)*time.Second))
		}
	}

	dwell(6.9271, t0)
	if len(a.stops) != 1 {
		t.Fatalf("expected first stop, got %d", len(a.stops))
	}

	// Creep 20 m and dwell again: inside the 50 m exclusion radius.
	a.Ingest(sampleAt(6.9271+latDelta20m, 79.8612, 5), t0.Add(80*time.Second))
	dwell(6.9271+latDelta20m, t0.Add(90*time.Second))
	if len(a.stops) != 1 {
		t.Fatalf("duplicate stop inside exclusion radius: %d", len(a.stops))
	}

	// A dwell 100 m away is a distinct parking spot.
	a.Ingest(sampleAt(6.9271+latDelta100m, 79.8612, 5), t0.Add(170*time.Second))
	dwell(6.9271+latDelta100m, t0.Add(180*time.Second))
	if len(a.stops) != 2 {
		t.Fatalf("expected second stop at 100 m, got %d", len(a.stops))
	}
}

func TestDwellTimerResetsWhenMotionResumes(t *testing.T) {
	a := NewAccumulator(DefaultConfig())
	a.Start(40, t0)

	// Two 40 s pauses separated by movement never add up to one dwell.
	a.Ingest(sampleAt(6.9271, 79.8612, 0), t0)
	a.Ingest(sampleAt(6.9271, 79.8612, 0), t0.Add(40*time.Second))
	a.Ingest(sampleAt(6.9280, 79.8612, 25), t0.Add(45*time.Second))
	a.Ingest(sampleAt(6.9280, 79.8612, 0), t0.Add(50*time.Second))
	a.Ingest(sampleAt(6.9280, 79.8612, 0), t0.Add(90*time.Second))

	if n := len(a.stops); n != 0 {
		t.Fatalf("split pauses merged into a stop: %d", n)
	}
}
