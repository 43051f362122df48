package trip

import (
	"math"
	"testing"
	"time"

	"drivelink/internal/geo"
)

func TestRecordRoundTrip(t *testing.T) {
	sum := Summary{
		Date:              t0,
		DistanceKm:        12.346,
		TotalDurationMin:  33.333,
		MovingDurationMin: 28.01,
		FuelUsedLiters:    1.118,
		CostEstimate:      3.2,
		TopSpeedKmh:       84.9,
		Path: []geo.Point{
			{Lat: 6.9271, Lng: 79.8612},
			{Lat: 6.9371, Lng: 79.8712},
		},
		Stops: []StopEvent{
			{Position: geo.Point{Lat: 6.93, Lng: 79.865}, StartedAt: t0.Add(10 * time.Minute)},
		},
	}

	rec := sum.Record("Morning run", "fuel stop included")
	if rec.Distance != "12.35" || rec.FuelUsed != "1.12" || rec.TopSpeed != "84.90" || rec.Cost != "3.20" {
		t.Fatalf("unexpected fixed-decimal encoding: %+v", rec)
	}
	if rec.Date != "2025-06-01T09:00:00Z" {
		t.Fatalf("unexpected date encoding: %q", rec.Date)
	}

	back, err := ReplayFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(back.DistanceKm-12.35) > 1e-9 {
		t.Fatalf("distance did not survive round trip: %v", back.DistanceKm)
	}
	if len(back.Path) != 2 || back.Path[1] != sum.Path[1] {
		t.Fatalf("path did not survive round trip: %+v", back.Path)
	}
	if len(back.Stops) != 1 || !back.Stops[0].StartedAt.Equal(sum.Stops[0].StartedAt) {
		t.Fatalf("stops did not survive round trip: %+v", back.Stops)
	}
}

func TestRecordEmptyPathSerializesAsEmptyList(t *testing.T) {
	rec := (Summary{Date: t0}).Record("Empty", "")
	if rec.Path == nil || len(rec.Path) != 0 {
		t.Fatalf("expected empty path slice, got %#v", rec.Path)
	}
	if rec.Distance != "0.00" {
		t.Fatalf("expected 0.00 distance, got %q", rec.Distance)
	}
}

func TestReplayRejectsCorruptRecord(t *testing.T) {
	if _, err := ReplayFromRecord(Record{Distance: "not-a-number"}); err == nil {
		t.Fatal("expected error for corrupt distance")
	}
	if _, err := ReplayFromRecord(Record{Date: "yesterday"}); err == nil {
		t.Fatal("expected error for corrupt date")
	}
	if _, err := ReplayFromRecord(Record{Stops: []RecordStop{{Time: "noon"}}}); err == nil {
		t.Fatal("expected error for corrupt stop time")
	}
}
