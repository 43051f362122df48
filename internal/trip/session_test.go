package trip

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

type fakeFuel struct {
	level float64
	ok    bool
}

func (f fakeFuel) FuelLevel(string) (float64, bool) { return f.level, f.ok }

type fakeStore struct {
	err   error
	saved []Record
}

func (f *fakeStore) CreateTrip(_ context.Context, _ string, rec Record) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, rec)
	return "trip-1", nil
}

func newTestSession(st *fakeStore) *Session {
	return NewSession("user-1", "dev-1", DefaultConfig(), fakeFuel{level: 40, ok: true}, st)
}

func TestSessionLifecycle(t *testing.T) {
	st := &fakeStore{}
	s := newTestSession(st)

	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %v", s.State())
	}
	if err := s.Start(t0); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateActive {
		t.Fatalf("expected active, got %v", s.State())
	}

	s.OnSample(sampleAt(6.9271, 79.8612, 30), t0)
	s.OnSample(sampleAt(6.9371, 79.8612, 50), t0.Add(time.Minute))

	if _, err := s.End(t0.Add(2 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateSealed {
		t.Fatalf("expected sealed, got %v", s.State())
	}

	rec, err := s.ConfirmSave(context.Background(), "Test", "")
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle after save, got %v", s.State())
	}
	if rec.ID != "trip-1" || len(st.saved) != 1 {
		t.Fatalf("record not persisted: %+v", rec)
	}
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	s := newTestSession(&fakeStore{})
	if err := s.Start(t0); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(t0.Add(time.Minute)); !errors.Is(err, ErrActiveSession) {
		t.Fatalf("expected ErrActiveSession, got %v", err)
	}
}

func TestStartWhileSealedIsRejected(t *testing.T) {
	s := newTestSession(&fakeStore{})
	if err := s.Start(t0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.End(t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(t0.Add(2 * time.Minute)); !errors.Is(err, ErrUnsavedDraft) {
		t.Fatalf("expected ErrUnsavedDraft, got %v", err)
	}
	s.Discard()
	if err := s.Start(t0.Add(3 * time.Minute)); err != nil {
		t.Fatalf("start after discard: %v", err)
	}
}

func TestEndAndTickRequireActiveSession(t *testing.T) {
	s := newTestSession(&fakeStore{})
	if _, err := s.End(t0); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if _, err := s.Tick(t0); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestConfirmSaveFormatsSealedDistance(t *testing.T) {
	st := &fakeStore{}
	s := newTestSession(st)
	if err := s.Start(t0); err != nil {
		t.Fatal(err)
	}
	s.OnSample(sampleAt(6.9271, 79.8612, 30), t0)
	s.OnSample(sampleAt(6.9371, 79.8612, 30), t0.Add(time.Minute))

	sealed, err := s.End(t0.Add(2 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := s.ConfirmSave(context.Background(), "Test", "")
	if err != nil {
		t.Fatal(err)
	}
	want := strconv.FormatFloat(sealed.DistanceKm, 'f', 2, 64)
	if rec.Distance != want {
		t.Fatalf("distance %q, want %q", rec.Distance, want)
	}
}

func TestFailedSavePreservesDraft(t *testing.T) {
	st := &fakeStore{err: errors.New("connection refused")}
	s := newTestSession(st)
	if err := s.Start(t0); err != nil {
		t.Fatal(err)
	}
	s.OnSample(sampleAt(6.9271, 79.8612, 30), t0)
	if _, err := s.End(t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	_, err := s.ConfirmSave(context.Background(), "Test", "")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	// The store's own error stays visible for callers that care why.
	if !errors.Is(err, st.err) {
		t.Fatalf("store error lost in wrap: %v", err)
	}
	if s.State() != StateSealed {
		t.Fatalf("draft lost on failed save, state %v", s.State())
	}

	// The user retries once the store recovers.
	st.err = nil
	if _, err := s.ConfirmSave(context.Background(), "Test", ""); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle after retry, got %v", s.State())
	}
}

func TestConfirmSaveRequiresSealedState(t *testing.T) {
	s := newTestSession(&fakeStore{})
	if _, err := s.ConfirmSave(context.Background(), "Test", ""); !errors.Is(err, ErrNotSealed) {
		t.Fatalf("expected ErrNotSealed, got %v", err)
	}
}

func TestLiveProjectionUpdatesWhileIdle(t *testing.T) {
	s := newTestSession(&fakeStore{})

	sm := fuelSample(6.9271, 79.8612, 35, 31.5)
	sm.Satellites = 8
	s.OnSample(sm, t0)

	live := s.Live()
	if live.SpeedKmh != 35 || live.Satellites != 8 || live.FuelLiters != 31.5 {
		t.Fatalf("live projection stale: %+v", live)
	}
	if live.TripActive {
		t.Fatal("no trip is active")
	}
	// Idle samples never reach the accumulator.
	if st := s.acc.Stats(t0); st.DistanceKm != 0 || st.TopSpeedKmh != 0 {
		t.Fatalf("idle sample leaked into accumulator: %+v", st)
	}
}

func TestLiveProjectionKeepsLastFuelReading(t *testing.T) {
	s := newTestSession(&fakeStore{})
	s.OnSample(fuelSample(6.9271, 79.8612, 0, 31.5), t0)
	s.OnSample(sampleAt(6.9272, 79.8612, 10), t0.Add(time.Second))

	if got := s.Live().FuelLiters; got != 31.5 {
		t.Fatalf("fuel-less update cleared fuel level: %v", got)
	}
}

func TestManagerRoutesByDevice(t *testing.T) {
	m := NewManager(fakeFuel{level: 40, ok: true}, &fakeStore{})
	s := m.Session("user-1", "dev-1", DefaultConfig())

	if got, ok := m.ByDevice("dev-1"); !ok || got != s {
		t.Fatal("session not routable by device id")
	}
	if _, ok := m.ByDevice("dev-2"); ok {
		t.Fatal("unknown device matched a session")
	}
	if again := m.Session("user-1", "dev-1", DefaultConfig()); again != s {
		t.Fatal("manager created a duplicate session")
	}
}
