package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"gorm.io/gorm"

	geopkg "drivelink/internal/geo"
	"drivelink/internal/trip"
)

var (
	// ErrDuplicateTrip marks a second save of the same user/date trip,
	// typically a retry racing a write that already landed.
	ErrDuplicateTrip = errors.New("store: trip already saved")
	// ErrNotFound marks a missing trip or profile.
	ErrNotFound = errors.New("store: not found")
)

// TripStore implements the document persistence collaborator over Postgres.
type TripStore struct {
	db *gorm.DB
}

func NewTripStore(db *gorm.DB) *TripStore {
	return &TripStore{db: db}
}

// CreateTrip writes a finished trip record and returns its id.
func (s *TripStore) CreateTrip(ctx context.Context, userID string, rec trip.Record) (string, error) {
	model, err := toModel(userID, rec)
	if err != nil {
		return "", err
	}
	model.ID = uuid.NewString()

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateTrip
		}
		return "", fmt.Errorf("store: create trip: %w", err)
	}
	return model.ID, nil
}

// ListTrips returns the user's trips newest first.
func (s *TripStore) ListTrips(ctx context.Context, userID string) ([]trip.Record, error) {
	var models []TripRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("store: list trips: %w", err)
	}

	records := make([]trip.Record, 0, len(models))
	for _, m := range models {
		rec, err := toRecord(m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetTrip fetches one trip owned by the user.
func (s *TripStore) GetTrip(ctx context.Context, userID, id string) (trip.Record, error) {
	var m TripRecord
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return trip.Record{}, ErrNotFound
		}
		return trip.Record{}, fmt.Errorf("store: get trip: %w", err)
	}
	return toRecord(m)
}

// DeleteTrip removes one trip owned by the user.
func (s *TripStore) DeleteTrip(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&TripRecord{})
	if res.Error != nil {
		return fmt.Errorf("store: delete trip: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProfile loads the user's device binding and pricing settings.
func (s *TripStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("store: get profile: %w", err)
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func toModel(userID string, rec trip.Record) (TripRecord, error) {
	sum, err := trip.ReplayFromRecord(rec)
	if err != nil {
		return TripRecord{}, fmt.Errorf("store: invalid trip record: %w", err)
	}

	pathWKB, err := encodePath(sum.Path)
	if err != nil {
		return TripRecord{}, err
	}
	stopsJSON, err := json.Marshal(rec.Stops)
	if err != nil {
		return TripRecord{}, fmt.Errorf("store: encode stops: %w", err)
	}

	return TripRecord{
		UserID:            userID,
		TripName:          rec.TripName,
		Notes:             rec.Notes,
		Date:              sum.Date,
		DistanceKm:        sum.DistanceKm,
		TotalDurationMin:  sum.TotalDurationMin,
		MovingDurationMin: sum.MovingDurationMin,
		FuelUsedLiters:    sum.FuelUsedLiters,
		CostEstimate:      sum.CostEstimate,
		TopSpeedKmh:       sum.TopSpeedKmh,
		Path:              pathWKB,
		Stops:             stopsJSON,
	}, nil
}

func toRecord(m TripRecord) (trip.Record, error) {
	path, err := decodePath(m.Path)
	if err != nil {
		return trip.Record{}, err
	}
	var stops []trip.RecordStop
	if len(m.Stops) > 0 {
		if err := json.Unmarshal(m.Stops, &stops); err != nil {
			return trip.Record{}, fmt.Errorf("store: decode stops: %w", err)
		}
	}

	sum := trip.Summary{
		Date:              m.Date,
		DistanceKm:        m.DistanceKm,
		TotalDurationMin:  m.TotalDurationMin,
		MovingDurationMin: m.MovingDurationMin,
		FuelUsedLiters:    m.FuelUsedLiters,
		CostEstimate:      m.CostEstimate,
		TopSpeedKmh:       m.TopSpeedKmh,
		Path:              path,
	}
	rec := sum.Record(m.TripName, m.Notes)
	rec.ID = m.ID
	if stops != nil {
		rec.Stops = stops
	}
	return rec, nil
}

// encodePath serializes the ordered trip path as a WKB LINESTRING. Paths
// with fewer than two points are stored empty; the point order is the
// chronological path order.
func encodePath(path []geopkg.Point) ([]byte, error) {
	if len(path) < 2 {
		return nil, nil
	}
	coords := make([]geom.Coord, 0, len(path))
	for _, p := range path {
		coords = append(coords, geom.Coord{p.Lng, p.Lat})
	}
	ls := geom.NewLineString(geom.XY).MustSetCoords(coords)
	ls.SetSRID(4326)
	b, err := wkb.Marshal(ls, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("store: encode path: %w", err)
	}
	return b, nil
}

// PathGeoJSON renders a trip path as a GeoJSON LineString for map display.
// Paths too short to form a line render as null.
func PathGeoJSON(path []geopkg.Point) (json.RawMessage, error) {
	if len(path) < 2 {
		return nil, nil
	}
	coords := make([]geom.Coord, 0, len(path))
	for _, p := range path {
		coords = append(coords, geom.Coord{p.Lng, p.Lat})
	}
	ls := geom.NewLineString(geom.XY).MustSetCoords(coords)
	ls.SetSRID(4326)
	b, err := geojson.Marshal(ls)
	if err != nil {
		return nil, fmt.Errorf("store: encode path geojson: %w", err)
	}
	return json.RawMessage(b), nil
}

func decodePath(b []byte) ([]geopkg.Point, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("store: decode path: %w", err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("store: unexpected path geometry %T", g)
	}
	coords := ls.Coords()
	path := make([]geopkg.Point, 0, len(coords))
	for _, c := range coords {
		path = append(path, geopkg.Point{Lat: c[1], Lng: c[0]})
	}
	return path, nil
}

const defaultServiceIntervalKm = 5000.0

// HealthStats aggregates stored trips into the maintenance view.
type HealthStats struct {
	TripCount       int        `json:"trip_count"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	TotalFuelLiters float64    `json:"total_fuel_liters"`
	TotalCost       float64    `json:"total_cost"`
	AvgConsumption  float64    `json:"avg_consumption_l_per_100km"`
	TopSpeedKmh     float64    `json:"top_speed_kmh"`
	KmToNextService float64    `json:"km_to_next_service"`
	LastTripDate    *time.Time `json:"last_trip_date,omitempty"`
}

// HealthStats computes maintenance aggregates across the user's trips.
func (s *TripStore) HealthStats(ctx context.Context, userID string) (HealthStats, error) {
	var agg struct {
		TripCount       int
		TotalDistanceKm float64
		TotalFuelLiters float64
		TotalCost       float64
		TopSpeedKmh     float64
	}
	err := s.db.WithContext(ctx).Model(&TripRecord{}).
		Select(`COUNT(*) AS trip_count,
			COALESCE(SUM(distance_km),0) AS total_distance_km,
			COALESCE(SUM(fuel_used_liters),0) AS total_fuel_liters,
			COALESCE(SUM(cost_estimate),0) AS total_cost,
			COALESCE(MAX(top_speed_kmh),0) AS top_speed_kmh`).
		Where("user_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return HealthStats{}, fmt.Errorf("store: health stats: %w", err)
	}

	stats := HealthStats{
		TripCount:       agg.TripCount,
		TotalDistanceKm: agg.TotalDistanceKm,
		TotalFuelLiters: agg.TotalFuelLiters,
		TotalCost:       agg.TotalCost,
		TopSpeedKmh:     agg.TopSpeedKmh,
	}
	if agg.TotalDistanceKm > 0 {
		stats.AvgConsumption = agg.TotalFuelLiters / agg.TotalDistanceKm * 100
	}
	stats.KmToNextService = defaultServiceIntervalKm - math.Mod(agg.TotalDistanceKm, defaultServiceIntervalKm)

	if agg.TripCount > 0 {
		var last TripRecord
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
			Order("date desc").First(&last).Error; err == nil {
			stats.LastTripDate = &last.Date
		}
	}
	return stats, nil
}
