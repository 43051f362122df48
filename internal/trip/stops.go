package trip

import (
	"time"

	"drivelink/internal/geo"
)

// StopEvent is one detected parking stop. Immutable once emitted.
type StopEvent struct {
	Position  geo.Point
	StartedAt time.Time
}

type dwellState int

const (
	notDwelling dwellState = iota
	dwelling
)

// stopDetector watches below-threshold speed intervals and emits at most one
// StopEvent per qualifying dwell. A dwell qualifies once it lasts longer than
// the configured threshold; it emits only when the position is far enough
// from the previously recorded stop, so a long idle at the same spot does not
// flood the stop list.
type stopDetector struct {
	cfg     Config
	state   dwellState
	since   time.Time
	handled bool
}

func newStopDetector(cfg Config) stopDetector {
	return stopDetector{cfg: cfg}
}

func (d *stopDetector) reset() {
	d.state = notDwelling
	d.handled = false
}

// observe advances the dwell state machine with one sample. lastStop is the
// most recent recorded stop, or nil. Returns a new StopEvent to append, or
// nil.
func (d *stopDetector) observe(pos geo.Point, speedKmh float64, now time.Time, lastStop *StopEvent) *StopEvent {
	if speedKmh >= d.cfg.MovingSpeedKmh {
		// Motion resumed: any running dwell was too short to matter.
		d.state = notDwelling
		d.handled = false
		return nil
	}

	if d.state == notDwelling {
		d.state = dwelling
		d.since = now
		d.handled = false
		return nil
	}

	if d.handled || now.Sub(d.since) <= d.cfg.DwellThreshold {
		return nil
	}

	// The dwell qualified. Decide once, whether or not it emits.
	d.handled = true
	if lastStop != nil && geo.DistanceKm(pos, lastStop.Position) <= d.cfg.StopSeparationKm {
		return nil
	}
	return &StopEvent{Position: pos, StartedAt: d.since}
}
