package trip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"drivelink/internal/geo"
	"drivelink/internal/telemetry"
)

var (
	// ErrActiveSession rejects Start while a trip is already being recorded;
	// callers must End the current trip first.
	ErrActiveSession = errors.New("trip: session already active")
	// ErrUnsavedDraft rejects Start while a sealed trip awaits save/discard.
	ErrUnsavedDraft = errors.New("trip: unsaved trip draft pending")
	// ErrNotActive is returned by End and Tick outside an active session.
	ErrNotActive = errors.New("trip: no active session")
	// ErrNotSealed is returned by ConfirmSave outside the sealed state.
	ErrNotSealed = errors.New("trip: no sealed trip to save")
	// ErrPersistence wraps a failed trip write. The draft is preserved so a
	// failed save never loses trip data; retry is the caller's decision.
	ErrPersistence = errors.New("trip: persistence failure")
)

// State is the session lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateActive
	StateSealed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSealed:
		return "sealed"
	default:
		return "idle"
	}
}

// FuelReader supplies the one-shot fuel level read captured at trip start.
type FuelReader interface {
	FuelLevel(deviceID string) (float64, bool)
}

// Store is the persistence collaborator for finished trips.
type Store interface {
	CreateTrip(ctx context.Context, userID string, rec Record) (string, error)
}

// LiveSnapshot mirrors the latest sensor readings for display, independent of
// whether a trip is being recorded. Written by the sample handler with a
// single atomic assignment; read freely by the presentation layer.
type LiveSnapshot struct {
	SpeedKmh     float64   `json:"speed_kmh"`
	Satellites   uint      `json:"satellites"`
	FuelLiters   float64   `json:"fuel_liters"`
	BatteryVolts float64   `json:"battery_volts"`
	TempC        float64   `json:"temp_c"`
	HeadingDeg   float64   `json:"heading_deg"`
	Position     geo.Point `json:"position"`
	RangeKm      float64   `json:"range_km"`
	TripActive   bool      `json:"trip_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session orchestrates the trip lifecycle for one user: Idle -> Active (on
// Start) -> Sealed (on End) -> Idle (on ConfirmSave or Discard). It owns the
// accumulator exclusively and serializes Ingest/Tick against each other.
type Session struct {
	userID   string
	deviceID string

	mu      sync.Mutex
	state   State
	acc     *Accumulator
	draft   *Summary
	hasPos  bool
	lastPos geo.Point

	live  atomic.Value // LiveSnapshot
	fuel  FuelReader
	store Store
	cfg   Config
}

// NewSession creates an idle session bound to one user and device.
func NewSession(userID, deviceID string, cfg Config, fuel FuelReader, store Store) *Session {
	s := &Session{
		userID:   userID,
		deviceID: deviceID,
		acc:      NewAccumulator(cfg),
		fuel:     fuel,
		store:    store,
		cfg:      cfg,
	}
	s.live.Store(LiveSnapshot{})
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DeviceID returns the bound telemetry device.
func (s *Session) DeviceID() string { return s.deviceID }

// Start snapshots the current fuel level and opens a new trip. A device with
// no fuel reading yet starts from 0 liters; fuel-used stays floored at 0.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateActive:
		return ErrActiveSession
	case StateSealed:
		return ErrUnsavedDraft
	}

	initialFuel, ok := s.fuel.FuelLevel(s.deviceID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"user_id":   s.userID,
			"device_id": s.deviceID,
		}).Warn("No fuel reading available at trip start, assuming empty tank.")
		initialFuel = 0
	}

	s.acc.Start(initialFuel, now)
	s.state = StateActive
	logrus.WithFields(logrus.Fields{
		"user_id":      s.userID,
		"device_id":    s.deviceID,
		"initial_fuel": initialFuel,
	}).Info("Trip session started.")
	return nil
}

// OnSample handles one normalized feed sample. The live projection is always
// refreshed; the accumulator only sees the sample while a trip is active.
func (s *Session) OnSample(sample telemetry.Sample, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.live.Load().(LiveSnapshot)
	snap := LiveSnapshot{
		SpeedKmh:     sample.SpeedKmh,
		Satellites:   sample.Satellites,
		FuelLiters:   prev.FuelLiters,
		BatteryVolts: sample.BatteryVolts,
		TempC:        sample.TempC,
		HeadingDeg:   prev.HeadingDeg,
		Position:     sample.Position,
		TripActive:   s.state == StateActive,
		UpdatedAt:    now,
	}
	if sample.HasFuel {
		snap.FuelLiters = sample.FuelLiters
	}
	if s.hasPos && sample.Position != s.lastPos {
		snap.HeadingDeg = geo.Bearing(s.lastPos, sample.Position)
	}
	if s.cfg.FallbackLPer100Km > 0 {
		snap.RangeKm = snap.FuelLiters / s.cfg.FallbackLPer100Km * 100
	}
	s.live.Store(snap)
	s.lastPos = sample.Position
	s.hasPos = true

	if s.state == StateActive {
		s.acc.Ingest(sample, now)
	}
}

// Live returns the always-on sensor mirror.
func (s *Session) Live() LiveSnapshot {
	return s.live.Load().(LiveSnapshot)
}

// Tick recomputes derived stats at a steady cadence while a trip is active.
func (s *Session) Tick(now time.Time) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return Stats{}, ErrNotActive
	}
	return s.acc.Stats(now), nil
}

// End seals the active trip and returns the draft summary for the user to
// save or discard. No persistence happens here.
func (s *Session) End(now time.Time) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return Summary{}, ErrNotActive
	}
	draft := s.acc.End(now)
	s.draft = &draft
	s.state = StateSealed
	logrus.WithFields(logrus.Fields{
		"user_id":     s.userID,
		"distance_km": fmt.Sprintf("%.2f", draft.DistanceKm),
		"stops":       len(draft.Stops),
	}).Info("Trip session sealed.")
	return draft, nil
}

// ConfirmSave attaches the user-supplied metadata and writes the trip via
// the persistence collaborator. On failure the draft is kept and the session
// stays sealed.
func (s *Session) ConfirmSave(ctx context.Context, tripName, notes string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSealed || s.draft == nil {
		return Record{}, ErrNotSealed
	}

	rec := s.draft.Record(tripName, notes)
	id, err := s.store.CreateTrip(ctx, s.userID, rec)
	if err != nil {
		logrus.WithError(err).WithField("user_id", s.userID).Error("Failed to persist trip record.")
		return Record{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	rec.ID = id

	s.draft = nil
	s.state = StateIdle
	logrus.WithFields(logrus.Fields{
		"user_id": s.userID,
		"trip_id": id,
		"name":    tripName,
	}).Info("Trip record saved.")
	return rec, nil
}

// Discard drops the sealed draft without persisting it.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSealed {
		return
	}
	s.draft = nil
	s.state = StateIdle
	logrus.WithField("user_id", s.userID).Info("Trip draft discarded.")
}
