package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"drivelink/internal/feed"
	"drivelink/internal/middleware"
	"drivelink/internal/store"
)

// RelayController forwards relay toggle commands to the vehicle and reports
// the last states the device acknowledged.
type RelayController struct {
	*Deps
}

func NewRelayController(deps *Deps) *RelayController {
	return &RelayController{Deps: deps}
}

// deviceFor resolves the device bound to the authenticated user.
func (rc *RelayController) deviceFor(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	profile, err := rc.Store.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not configured: no device bound to this account"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		}
		return "", false
	}
	return profile.DeviceID, true
}

type relayInput struct {
	On *bool `json:"on" binding:"required"`
}

// SetRelay commands one relay on the vehicle.
func (rc *RelayController) SetRelay(c *gin.Context) {
	var input relayInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid relay input: " + err.Error()})
		return
	}

	deviceID, ok := rc.deviceFor(c)
	if !ok {
		return
	}

	name := c.Param("name")
	cmd := gin.H{"type": "relay", "name": name, "on": *input.On}
	if err := rc.Hub.SendCommand(deviceID, cmd); err != nil {
		if errors.Is(err, feed.ErrDeviceOffline) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Vehicle is offline"})
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"device_id": deviceID,
			"relay":     name,
		}).Error("Failed to send relay command.")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach vehicle"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"device_id": deviceID,
		"relay":     name,
		"on":        *input.On,
	}).Info("Relay command sent.")
	c.JSON(http.StatusAccepted, gin.H{"relay": name, "on": *input.On})
}

// ListRelays reports the relay states last acknowledged by the device.
func (rc *RelayController) ListRelays(c *gin.Context) {
	deviceID, ok := rc.deviceFor(c)
	if !ok {
		return
	}
	states, _ := rc.Hub.GetOnce(deviceID, feed.PathRelays)
	if states == nil {
		states = gin.H{}
	}
	c.JSON(http.StatusOK, gin.H{"relays": states})
}
