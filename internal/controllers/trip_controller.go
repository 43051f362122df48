package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"drivelink/internal/middleware"
	"drivelink/internal/store"
	"drivelink/internal/trip"
)

// TripController drives the trip lifecycle and serves stored trips.
type TripController struct {
	*Deps
}

func NewTripController(deps *Deps) *TripController {
	return &TripController{Deps: deps}
}

// StartTrip opens a new recording session for the authenticated user.
func (tc *TripController) StartTrip(c *gin.Context) {
	s, ok := tc.sessionFor(c)
	if !ok {
		return
	}
	if err := s.Start(time.Now()); err != nil {
		switch {
		case errors.Is(err, trip.ErrActiveSession):
			c.JSON(http.StatusConflict, gin.H{"error": "A trip is already being recorded; end it first"})
		case errors.Is(err, trip.ErrUnsavedDraft):
			c.JSON(http.StatusConflict, gin.H{"error": "An unsaved trip is pending; save or discard it first"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"state": s.State().String()})
}

// EndTrip seals the active session and returns the draft for confirmation.
func (tc *TripController) EndTrip(c *gin.Context) {
	s, ok := tc.sessionFor(c)
	if !ok {
		return
	}
	draft, err := s.End(time.Now())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No active trip to end"})
		return
	}
	// The draft preview uses the same shape the record will have, minus
	// the user metadata still to be supplied.
	c.JSON(http.StatusOK, gin.H{"draft": draft.Record("", ""), "state": s.State().String()})
}

type saveTripInput struct {
	TripName string `json:"trip_name" binding:"required"`
	Notes    string `json:"notes"`
}

// SaveTrip attaches metadata to the sealed draft and persists it.
func (tc *TripController) SaveTrip(c *gin.Context) {
	var input saveTripInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip metadata: " + err.Error()})
		return
	}

	s, ok := tc.sessionFor(c)
	if !ok {
		return
	}
	rec, err := s.ConfirmSave(c.Request.Context(), input.TripName, input.Notes)
	if err != nil {
		switch {
		case errors.Is(err, trip.ErrNotSealed):
			c.JSON(http.StatusConflict, gin.H{"error": "No sealed trip to save"})
		case errors.Is(err, store.ErrDuplicateTrip):
			c.JSON(http.StatusConflict, gin.H{"error": "Trip already saved"})
		case errors.Is(err, trip.ErrPersistence):
			// The draft survives; the client may retry the save.
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to save trip, please retry", "retryable": true})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trip": rec})
}

// DiscardTrip drops the sealed draft.
func (tc *TripController) DiscardTrip(c *gin.Context) {
	s, ok := tc.sessionFor(c)
	if !ok {
		return
	}
	s.Discard()
	c.JSON(http.StatusOK, gin.H{"state": s.State().String()})
}

// ActiveStats returns the live derived statistics of the recording session.
func (tc *TripController) ActiveStats(c *gin.Context) {
	s, ok := tc.sessionFor(c)
	if !ok {
		return
	}
	stats, err := s.Tick(time.Now())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "stats": stats})
}

// LiveTelemetry returns the always-on sensor mirror.
func (tc *TripController) LiveTelemetry(c *gin.Context) {
	s, ok := tc.sessionFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"live": s.Live()})
}

// ListTrips returns the user's saved trips, newest first.
func (tc *TripController) ListTrips(c *gin.Context) {
	userID := middleware.UserID(c)
	trips, err := tc.Store.ListTrips(c.Request.Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list trips.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching trips"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trips})
}

// GetTrip returns one stored trip reconstructed for replay.
func (tc *TripController) GetTrip(c *gin.Context) {
	userID := middleware.UserID(c)
	rec, err := tc.Store.GetTrip(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching trip"})
		return
	}

	summary, err := trip.ReplayFromRecord(rec)
	if err != nil {
		logrus.WithError(err).WithField("trip_id", rec.ID).Error("Stored trip record is corrupt.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored trip record is corrupt"})
		return
	}
	geometry, err := store.PathGeoJSON(rec.Path)
	if err != nil {
		logrus.WithError(err).WithField("trip_id", rec.ID).Warn("Failed to render trip path as GeoJSON.")
	}
	c.JSON(http.StatusOK, gin.H{"trip": rec, "geometry": geometry, "summary": gin.H{
		"distance_km":         summary.DistanceKm,
		"total_duration_min":  summary.TotalDurationMin,
		"moving_duration_min": summary.MovingDurationMin,
		"fuel_used_liters":    summary.FuelUsedLiters,
		"cost_estimate":       summary.CostEstimate,
		"top_speed_kmh":       summary.TopSpeedKmh,
		"stop_count":          len(summary.Stops),
	}})
}

// DeleteTrip removes one stored trip.
func (tc *TripController) DeleteTrip(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := tc.Store.DeleteTrip(c.Request.Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting trip"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trip deleted"})
}

// HealthStats aggregates stored trips into the maintenance view.
func (tc *TripController) HealthStats(c *gin.Context) {
	userID := middleware.UserID(c)
	stats, err := tc.Store.HealthStats(c.Request.Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to compute health stats.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error computing health stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
