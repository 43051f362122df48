package trip

import "time"

// Config holds the tuning constants of the accumulation engine. The defaults
// were tuned empirically against consumer-grade GPS units; deployments can
// override them through the environment (see internal/config).
type Config struct {
	// JitterFloorKm is the minimum inter-sample distance trusted as real
	// movement. Deltas at or below it are GPS noise and never accumulate.
	JitterFloorKm float64
	// MovingSpeedKmh separates moving from idle.
	MovingSpeedKmh float64
	// DwellThreshold is how long the vehicle must stay below the moving
	// speed before a dwell counts as a parking stop.
	DwellThreshold time.Duration
	// StopSeparationKm suppresses a new stop event closer than this to the
	// previously recorded one.
	StopSeparationKm float64
	// MinRateDistanceKm gates the consumption-rate division near trip start.
	MinRateDistanceKm float64
	// FuelPricePerLiter prices fuel used for the cost estimate.
	FuelPricePerLiter float64
	// FallbackLPer100Km estimates range before a live consumption rate exists.
	FallbackLPer100Km float64
}

// DefaultConfig returns the observed production tuning.
func DefaultConfig() Config {
	return Config{
		JitterFloorKm:     0.002,
		MovingSpeedKmh:    1.0,
		DwellThreshold:    60 * time.Second,
		StopSeparationKm:  0.05,
		MinRateDistanceKm: 0.1,
		FuelPricePerLiter: 1.0,
		FallbackLPer100Km: 8.0,
	}
}
