package config

import (
	"os"
	"strconv"
	"time"

	"drivelink/internal/trip"
)

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// ListenAddr returns the HTTP bind address.
func ListenAddr() string {
	return getEnv("LISTEN_ADDR", "0.0.0.0:8080")
}

// DeviceTTL is how long a device may stay silent before the reaper forgets it.
func DeviceTTL() time.Duration {
	return getEnvDuration("DEVICE_TTL", 10*time.Minute)
}

// TripTuning builds the trip engine configuration. The observed defaults are
// kept; every threshold can be overridden per deployment.
func TripTuning() trip.Config {
	cfg := trip.DefaultConfig()
	cfg.JitterFloorKm = getEnvFloat("TRIP_JITTER_FLOOR_KM", cfg.JitterFloorKm)
	cfg.MovingSpeedKmh = getEnvFloat("TRIP_MOVING_SPEED_KMH", cfg.MovingSpeedKmh)
	cfg.DwellThreshold = getEnvDuration("TRIP_DWELL_THRESHOLD", cfg.DwellThreshold)
	cfg.StopSeparationKm = getEnvFloat("TRIP_STOP_SEPARATION_KM", cfg.StopSeparationKm)
	cfg.MinRateDistanceKm = getEnvFloat("TRIP_MIN_RATE_DISTANCE_KM", cfg.MinRateDistanceKm)
	cfg.FuelPricePerLiter = getEnvFloat("FUEL_PRICE_PER_LITER", cfg.FuelPricePerLiter)
	cfg.FallbackLPer100Km = getEnvFloat("FALLBACK_L_PER_100KM", cfg.FallbackLPer100Km)
	return cfg
}
