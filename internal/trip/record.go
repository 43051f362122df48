package trip

import (
	"fmt"
	"strconv"
	"time"

	"drivelink/internal/geo"
)

// Summary is the sealed result of one trip session, in native units.
type Summary struct {
	Date              time.Time
	DistanceKm        float64
	TotalDurationMin  float64
	MovingDurationMin float64
	FuelUsedLiters    float64
	CostEstimate      float64
	TopSpeedKmh       float64
	Path              []geo.Point
	Stops             []StopEvent
}

// RecordStop is a stop entry in the persisted trip shape.
type RecordStop struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Time string  `json:"time"`
}

// Record is the persisted trip shape. Numeric fields are fixed to two
// decimals as strings for compatibility with records written by earlier
// versions of the dashboard; parsing them back is lossless at that precision.
type Record struct {
	ID             string       `json:"id,omitempty"`
	TripName       string       `json:"tripName"`
	Notes          string       `json:"notes"`
	Date           string       `json:"date"`
	Distance       string       `json:"distance"`
	TotalDuration  string       `json:"totalDuration"`
	MovingDuration string       `json:"movingDuration"`
	FuelUsed       string       `json:"fuelUsed"`
	Cost           string       `json:"cost"`
	TopSpeed       string       `json:"topSpeed"`
	Path           []geo.Point  `json:"path"`
	Stops          []RecordStop `json:"stops"`
}

// Record serializes the summary into the persisted shape, attaching the
// user-supplied metadata.
func (s Summary) Record(tripName, notes string) Record {
	stops := make([]RecordStop, 0, len(s.Stops))
	for _, st := range s.Stops {
		stops = append(stops, RecordStop{
			Lat:  st.Position.Lat,
			Lng:  st.Position.Lng,
			Time: st.StartedAt.UTC().Format(time.RFC3339),
		})
	}

	path := s.Path
	if path == nil {
		path = []geo.Point{}
	}

	return Record{
		TripName:       tripName,
		Notes:          notes,
		Date:           s.Date.UTC().Format(time.RFC3339),
		Distance:       fixed2(s.DistanceKm),
		TotalDuration:  fixed2(s.TotalDurationMin),
		MovingDuration: fixed2(s.MovingDurationMin),
		FuelUsed:       fixed2(s.FuelUsedLiters),
		Cost:           fixed2(s.CostEstimate),
		TopSpeed:       fixed2(s.TopSpeedKmh),
		Path:           path,
		Stops:          stops,
	}
}

// ReplayFromRecord reconstructs a trip summary from a persisted record for
// at-rest viewing. No live accumulation is involved.
func ReplayFromRecord(r Record) (Summary, error) {
	s := Summary{Path: r.Path}

	if r.Date != "" {
		d, err := time.Parse(time.RFC3339, r.Date)
		if err != nil {
			return Summary{}, fmt.Errorf("trip: invalid record date %q: %w", r.Date, err)
		}
		s.Date = d
	}

	for _, field := range []struct {
		raw  string
		dest *float64
		name string
	}{
		{r.Distance, &s.DistanceKm, "distance"},
		{r.TotalDuration, &s.TotalDurationMin, "totalDuration"},
		{r.MovingDuration, &s.MovingDurationMin, "movingDuration"},
		{r.FuelUsed, &s.FuelUsedLiters, "fuelUsed"},
		{r.Cost, &s.CostEstimate, "cost"},
		{r.TopSpeed, &s.TopSpeedKmh, "topSpeed"},
	} {
		if field.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(field.raw, 64)
		if err != nil {
			return Summary{}, fmt.Errorf("trip: invalid record %s %q: %w", field.name, field.raw, err)
		}
		*field.dest = v
	}

	for _, rs := range r.Stops {
		t, err := time.Parse(time.RFC3339, rs.Time)
		if err != nil {
			return Summary{}, fmt.Errorf("trip: invalid stop time %q: %w", rs.Time, err)
		}
		s.Stops = append(s.Stops, StopEvent{
			Position:  geo.Point{Lat: rs.Lat, Lng: rs.Lng},
			StartedAt: t,
		})
	}

	return s, nil
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
