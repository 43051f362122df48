package store

import (
	"time"

	"gorm.io/gorm"
)

// TripRecord is the durable trip document. Path geometry is stored as WKB
// (LINESTRING, SRID 4326) and stops as a JSON array; numeric columns are
// native floats, rounded back to two decimals at the serialization boundary.
type TripRecord struct {
	ID                string `gorm:"primaryKey;size:36"`
	UserID            string `gorm:"index;not null;uniqueIndex:idx_user_trip_date"`
	TripName          string
	Notes             string
	Date              time.Time `gorm:"index;uniqueIndex:idx_user_trip_date"`
	DistanceKm        float64
	TotalDurationMin  float64
	MovingDurationMin float64
	FuelUsedLiters    float64
	CostEstimate      float64
	TopSpeedKmh       float64
	Path              []byte `gorm:"type:bytea"`
	Stops             []byte `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile holds per-user device binding and pricing settings consumed by the
// trip engine.
type Profile struct {
	gorm.Model
	UserID            string  `json:"user_id" gorm:"uniqueIndex;not null"`
	DeviceID          string  `json:"device_id" gorm:"index"`
	FuelPricePerLiter float64 `json:"fuel_price_per_liter"`
	TankCapacityL     float64 `json:"tank_capacity_l"`
	AvgLPer100Km      float64 `json:"avg_l_per_100km"`
	Currency          string  `json:"currency" gorm:"size:8"`
}
