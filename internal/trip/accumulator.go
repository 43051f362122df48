package trip

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"drivelink/internal/geo"
	"drivelink/internal/telemetry"
)

// Stats is the read-only projection of an active session, recomputed on
// demand and never stored.
type Stats struct {
	TotalDurationMin   float64 `json:"total_duration_min"`
	MovingDurationMin  float64 `json:"moving_duration_min"`
	DistanceKm         float64 `json:"distance_km"`
	TopSpeedKmh        float64 `json:"top_speed_kmh"`
	CurrentSpeedKmh    float64 `json:"current_speed_kmh"`
	Satellites         uint    `json:"satellites"`
	FuelLevelLiters    float64 `json:"fuel_level_liters"`
	FuelUsedLiters     float64 `json:"fuel_used_liters"`
	ConsumptionLPer100 float64 `json:"consumption_l_per_100km"`
	CostEstimate       float64 `json:"cost_estimate"`
	RangeKm            float64 `json:"range_km"`
	IsMoving           bool    `json:"is_moving"`
	StopCount          int     `json:"stop_count"`
}

// Accumulator folds a stream of normalized samples into running trip
// statistics. It is not safe for concurrent use; the owning session
// serializes Ingest, Stats and End.
type Accumulator struct {
	cfg Config

	active       bool
	startedAt    time.Time
	initialFuelL float64
	currentFuelL float64
	currentSpeed float64
	satellites   uint

	totalDistanceKm float64
	topSpeedKmh     float64
	moving          bool
	movingMs        int64
	lastMoveAt      time.Time

	path     []geo.Point
	stops    []StopEvent
	detector stopDetector
}

// NewAccumulator returns an inert accumulator; Start must be called before
// any sample is ingested.
func NewAccumulator(cfg Config) *Accumulator {
	return &Accumulator{cfg: cfg, detector: newStopDetector(cfg)}
}

// Start resets all session state and opens a new trip. Any prior in-progress
// session is discarded; guarding against that is the caller's job.
func (a *Accumulator) Start(initialFuelL float64, now time.Time) {
	a.active = true
	a.startedAt = now
	a.initialFuelL = initialFuelL
	a.currentFuelL = initialFuelL
	a.currentSpeed = 0
	a.satellites = 0
	a.totalDistanceKm = 0
	a.topSpeedKmh = 0
	a.moving = false
	a.movingMs = 0
	a.lastMoveAt = time.Time{}
	a.path = nil
	a.stops = nil
	a.detector.reset()
}

// Active reports whether a session is open.
func (a *Accumulator) Active() bool { return a.active }

// Ingest folds one sample into the session. A sample arriving before Start
// or after End is ignored.
func (a *Accumulator) Ingest(s telemetry.Sample, now time.Time) {
	if !a.active {
		return
	}

	if len(a.path) == 0 {
		a.lastMoveAt = now
	}
	a.path = append(a.path, s.Position)

	if n := len(a.path); n > 1 {
		d := geo.DistanceKm(a.path[n-2], a.path[n-1])
		if d > a.cfg.JitterFloorKm {
			a.totalDistanceKm += d
		}
	}

	// Edge-triggered moving/idle accounting. The elapsed moving interval is
	// added exactly once, at the moving->idle transition.
	if s.SpeedKmh > a.cfg.MovingSpeedKmh && !a.moving {
		a.moving = true
		a.lastMoveAt = now
	} else if s.SpeedKmh <= a.cfg.MovingSpeedKmh && a.moving {
		a.moving = false
		a.movingMs += now.Sub(a.lastMoveAt).Milliseconds()
	}

	if s.SpeedKmh > a.topSpeedKmh {
		a.topSpeedKmh = s.SpeedKmh
	}
	a.currentSpeed = s.SpeedKmh
	a.satellites = s.Satellites

	var last *StopEvent
	if len(a.stops) > 0 {
		last = &a.stops[len(a.stops)-1]
	}
	if ev := a.detector.observe(s.Position, s.SpeedKmh, now, last); ev != nil {
		a.stops = append(a.stops, *ev)
		logrus.WithFields(logrus.Fields{
			"lat":      ev.Position.Lat,
			"lng":      ev.Position.Lng,
			"dwell_at": ev.StartedAt.Format(time.RFC3339),
		}).Debug("Stop event recorded for active trip.")
	}

	if s.HasFuel {
		a.currentFuelL = s.FuelLiters
	}
}

// Stats recomputes the derived projection at the given instant. It is a pure
// read: an in-progress moving interval is included without being committed,
// so calling Stats never double-counts moving time.
func (a *Accumulator) Stats(now time.Time) Stats {
	st := Stats{
		DistanceKm:      a.totalDistanceKm,
		TopSpeedKmh:     a.topSpeedKmh,
		CurrentSpeedKmh: a.currentSpeed,
		Satellites:      a.satellites,
		FuelLevelLiters: a.currentFuelL,
		IsMoving:        a.moving,
		StopCount:       len(a.stops),
	}

	if !a.startedAt.IsZero() {
		st.TotalDurationMin = math.Max(0, now.Sub(a.startedAt).Minutes())
	}

	movingMs := a.movingMs
	if a.moving && now.After(a.lastMoveAt) {
		movingMs += now.Sub(a.lastMoveAt).Milliseconds()
	}
	st.MovingDurationMin = float64(movingMs) / 60000

	st.FuelUsedLiters = math.Max(0, a.initialFuelL-a.currentFuelL)
	if a.totalDistanceKm > a.cfg.MinRateDistanceKm {
		st.ConsumptionLPer100 = st.FuelUsedLiters / a.totalDistanceKm * 100
	}
	st.CostEstimate = st.FuelUsedLiters * a.cfg.FuelPricePerLiter

	rate := st.ConsumptionLPer100
	if rate <= 0 {
		rate = a.cfg.FallbackLPer100Km
	}
	if rate > 0 {
		st.RangeKm = a.currentFuelL / rate * 100
	}

	return st
}

// End seals the session and returns its summary. Further Ingest calls are
// no-ops until the next Start.
func (a *Accumulator) End(now time.Time) Summary {
	if a.moving {
		a.moving = false
		a.movingMs += now.Sub(a.lastMoveAt).Milliseconds()
	}
	st := a.Stats(now)
	a.active = false

	path := make([]geo.Point, len(a.path))
	copy(path, a.path)
	stops := make([]StopEvent, len(a.stops))
	copy(stops, a.stops)

	return Summary{
		Date:              a.startedAt,
		DistanceKm:        st.DistanceKm,
		TotalDurationMin:  st.TotalDurationMin,
		MovingDurationMin: st.MovingDurationMin,
		FuelUsedLiters:    st.FuelUsedLiters,
		CostEstimate:      st.CostEstimate,
		TopSpeedKmh:       st.TopSpeedKmh,
		Path:              path,
		Stops:             stops,
	}
}
