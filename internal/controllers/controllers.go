package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"drivelink/internal/feed"
	"drivelink/internal/middleware"
	"drivelink/internal/store"
	"drivelink/internal/trip"
)

// Deps bundles the collaborators shared by all controllers.
type Deps struct {
	Store   *store.TripStore
	Manager *trip.Manager
	Hub     *feed.Hub
	Tuning  trip.Config
}

// sessionFor resolves the authenticated user's trip session, creating it
// from the profile's device binding and pricing on first use. Writes the
// error response itself when the profile is missing.
func (d *Deps) sessionFor(c *gin.Context) (*trip.Session, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return nil, false
	}

	if s, ok := d.Manager.Lookup(userID); ok {
		return s, true
	}

	profile, err := d.Store.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not configured: no device bound to this account"})
		} else {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to load profile.")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		}
		return nil, false
	}

	cfg := d.Tuning
	if profile.FuelPricePerLiter > 0 {
		cfg.FuelPricePerLiter = profile.FuelPricePerLiter
	}
	if profile.AvgLPer100Km > 0 {
		cfg.FallbackLPer100Km = profile.AvgLPer100Km
	}
	return d.Manager.Session(userID, profile.DeviceID, cfg), true
}

// deviceSession resolves (or creates) the session owning a device, used by
// the telemetry ingress where identity comes from the device token.
func (d *Deps) deviceSession(userID, deviceID string) *trip.Session {
	if s, ok := d.Manager.ByDevice(deviceID); ok {
		return s
	}
	return d.Manager.Session(userID, deviceID, d.Tuning)
}
