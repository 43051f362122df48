package telemetry

import (
	"errors"
	"math"
	"strings"
	"time"

	"drivelink/internal/geo"
)

// ErrMalformedSample marks a feed update without a usable position. Such
// updates are dropped by the caller, never propagated into the trip path.
var ErrMalformedSample = errors.New("telemetry: malformed sample")

// Sample is one normalized update from the device feed.
type Sample struct {
	Position   geo.Point
	SpeedKmh   float64
	Satellites uint
	FuelLiters float64
	// HasFuel distinguishes a genuine 0-liter reading from an omitted one.
	HasFuel      bool
	BatteryVolts float64
	TempC        float64
	Timestamp    time.Time
}

// Normalize validates a raw feed payload and produces a Sample.
//
// The feed is a best-effort push channel: payloads may omit fields or carry
// JSON nulls. Missing speed, satellites, battery or temperature default to 0.
// A missing or non-finite latitude/longitude makes the whole update invalid,
// since the one hard contract is "never ingest an invalid position".
func Normalize(raw map[string]any, now time.Time) (Sample, error) {
	lat, latOK := finiteNumber(raw["latitude"])
	lng, lngOK := finiteNumber(raw["longitude"])
	if !latOK || !lngOK {
		return Sample{}, ErrMalformedSample
	}

	pos := geo.Point{Lat: lat, Lng: lng}
	if !pos.Valid() {
		return Sample{}, ErrMalformedSample
	}

	s := Sample{Position: pos, Timestamp: now}

	if v, ok := finiteNumber(raw["speed"]); ok && v > 0 {
		s.SpeedKmh = v
	}
	if v, ok := finiteNumber(raw["satellites"]); ok && v > 0 {
		s.Satellites = uint(v)
	}
	if v, ok := finiteNumber(raw["fuel"]); ok {
		s.FuelLiters = math.Max(0, v)
		s.HasFuel = true
	}
	if v, ok := finiteNumber(raw["battery"]); ok {
		s.BatteryVolts = v
	}
	if v, ok := finiteNumber(raw["temperature"]); ok {
		s.TempC = v
	}
	if ts, ok := raw["timestamp"].(string); ok {
		if t, err := parseTimestamp(ts); err == nil {
			s.Timestamp = t
		}
	}

	return s, nil
}

// finiteNumber extracts a float64 from a decoded JSON value, rejecting nulls,
// non-numeric types, NaN and infinities.
func finiteNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseTimestamp parses device timestamps leniently. Devices often send
// RFC3339 stamps without a timezone suffix; those are assumed UTC.
func parseTimestamp(ts string) (time.Time, error) {
	if len(ts) > 6 && !(strings.HasSuffix(ts, "Z") || strings.ContainsAny(ts[len(ts)-6:], "+-")) {
		ts += "Z"
	}
	return time.Parse(time.RFC3339Nano, ts)
}
