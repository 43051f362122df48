package store

import (
	"encoding/json"
	"testing"
	"time"

	"drivelink/internal/geo"
	"drivelink/internal/trip"
)

func TestPathWKBRoundTrip(t *testing.T) {
	path := []geo.Point{
		{Lat: 6.9271, Lng: 79.8612},
		{Lat: 6.9371, Lng: 79.8712},
		{Lat: 6.9471, Lng: 79.8812},
	}
	b, err := encodePath(path)
	if err != nil {
		t.Fatal(err)
	}
	back, err := decodePath(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(path) {
		t.Fatalf("expected %d points, got %d", len(path), len(back))
	}
	for i := range path {
		if back[i] != path[i] {
			t.Fatalf("point %d: %+v != %+v", i, back[i], path[i])
		}
	}
}

func TestEncodePathTooShort(t *testing.T) {
	b, err := encodePath([]geo.Point{{Lat: 6.9271, Lng: 79.8612}})
	if err != nil || b != nil {
		t.Fatalf("single-point path should store empty, got %v %v", b, err)
	}
	if got, err := decodePath(nil); err != nil || got != nil {
		t.Fatalf("empty path should decode empty, got %v %v", got, err)
	}
}

func TestPathGeoJSON(t *testing.T) {
	raw, err := PathGeoJSON([]geo.Point{
		{Lat: 6.9271, Lng: 79.8612},
		{Lat: 6.9371, Lng: 79.8712},
	})
	if err != nil {
		t.Fatal(err)
	}
	var g struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatal(err)
	}
	if g.Type != "LineString" || len(g.Coordinates) != 2 {
		t.Fatalf("unexpected geometry: %s", raw)
	}
	// GeoJSON coordinate order is lng, lat.
	if g.Coordinates[0][0] != 79.8612 || g.Coordinates[0][1] != 6.9271 {
		t.Fatalf("coordinate order wrong: %v", g.Coordinates[0])
	}

	if raw, err := PathGeoJSON([]geo.Point{{Lat: 6.9271, Lng: 79.8612}}); err != nil || raw != nil {
		t.Fatalf("short path should render null, got %s %v", raw, err)
	}
}

func TestModelRecordRoundTrip(t *testing.T) {
	date := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sum := trip.Summary{
		Date:              date,
		DistanceKm:        12.5,
		TotalDurationMin:  30,
		MovingDurationMin: 25,
		FuelUsedLiters:    1.1,
		CostEstimate:      3.3,
		TopSpeedKmh:       80,
		Path: []geo.Point{
			{Lat: 6.9271, Lng: 79.8612},
			{Lat: 6.9371, Lng: 79.8712},
		},
		Stops: []trip.StopEvent{
			{Position: geo.Point{Lat: 6.93, Lng: 79.87}, StartedAt: date.Add(10 * time.Minute)},
		},
	}
	rec := sum.Record("Commute", "some notes")

	m, err := toModel("user-1", rec)
	if err != nil {
		t.Fatal(err)
	}
	if m.DistanceKm != 12.5 || m.TripName != "Commute" || !m.Date.Equal(date) {
		t.Fatalf("unexpected model: %+v", m)
	}

	back, err := toRecord(m)
	if err != nil {
		t.Fatal(err)
	}
	if back.Distance != "12.50" || back.TopSpeed != "80.00" {
		t.Fatalf("fixed-decimal encoding lost: %+v", back)
	}
	if len(back.Path) != 2 || back.Path[0] != rec.Path[0] {
		t.Fatalf("path lost: %+v", back.Path)
	}
	if len(back.Stops) != 1 || back.Stops[0] != rec.Stops[0] {
		t.Fatalf("stops lost: %+v", back.Stops)
	}
}
