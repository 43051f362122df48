package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"drivelink/internal/feed"
	"drivelink/internal/middleware"
	"drivelink/internal/telemetry"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// Devices sending faster than this are throttled; consumer GPS units sample
// at 1 Hz, so 5/s with a burst of 10 leaves headroom for catch-up batches.
const (
	deviceSampleRate  = 5
	deviceSampleBurst = 10
)

// TelemetryController terminates the device ingress and watcher fan-out
// sockets.
type TelemetryController struct {
	*Deps
}

func NewTelemetryController(deps *Deps) *TelemetryController {
	return &TelemetryController{Deps: deps}
}

// authenticateSocket validates the JWT passed as a query parameter, the only
// practical channel for browser WebSocket handshakes.
func authenticateSocket(c *gin.Context) (*middleware.Claims, error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return nil, errors.New("missing authentication token")
	}
	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// HandleDeviceWS accepts a device connection pushing telemetry samples.
func (tc *TelemetryController) HandleDeviceWS(c *gin.Context) {
	claims, err := authenticateSocket(c)
	if err != nil {
		logrus.WithError(err).Warn("Device WebSocket connection attempt failed.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if claims.Role != middleware.RoleDevice || claims.DeviceID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "device token required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade device WebSocket connection.")
		return
	}
	defer conn.Close()

	deviceID := claims.DeviceID
	tc.Hub.RegisterDevice(deviceID, conn)
	defer tc.Hub.UnregisterDevice(deviceID, conn)

	session := tc.deviceSession(claims.UserID, deviceID)
	limiter := rate.NewLimiter(deviceSampleRate, deviceSampleBurst)

	logrus.WithFields(logrus.Fields{
		"device_id": deviceID,
		"user_id":   claims.UserID,
	}).Info("Device WebSocket connection established.")

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("device_id", deviceID).Info("Device WebSocket closed.")
			} else {
				logrus.WithError(err).Errorf("Error reading WebSocket message from device %s", deviceID)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			logrus.WithField("device_id", deviceID).Debug("Device exceeding sample rate, dropping update.")
			continue
		}
		tc.processDeviceMessage(conn, p, claims.UserID, deviceID, session)
	}
}

type sessionSink interface {
	OnSample(s telemetry.Sample, now time.Time)
}

// processDeviceMessage routes one frame from the device: a relay state
// report, a fuel-only update, or a full telemetry sample.
func (tc *TelemetryController) processDeviceMessage(conn *websocket.Conn, p []byte, userID, deviceID string, session sessionSink) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"device_id": deviceID,
			"payload":   string(p),
		}).Error("Error unmarshaling device payload.")
		conn.WriteJSON(gin.H{"error": "Invalid payload format."})
		return
	}

	if kind, _ := raw["type"].(string); kind == "relay_state" {
		tc.Hub.Publish(deviceID, feed.PathRelays, raw["relays"])
		return
	}

	now := time.Now()
	sample, err := telemetry.Normalize(raw, now)
	if err != nil {
		// Position-less pings are dropped, but a fuel-only update is still
		// usable for the one-shot read and the live gauge.
		if f, ok := raw["fuel"].(float64); ok && f >= 0 {
			tc.Hub.Publish(deviceID, feed.PathFuel, f)
		}
		logrus.WithFields(logrus.Fields{
			"device_id": deviceID,
			"payload":   string(p),
		}).Debug("Dropped malformed telemetry update.")
		return
	}

	tc.Hub.Publish(deviceID, feed.PathTracking, raw)
	if sample.HasFuel {
		tc.Hub.Publish(deviceID, feed.PathFuel, sample.FuelLiters)
	}

	session.OnSample(sample, now)

	tc.Hub.NotifyWatchers(userID, map[string]any{
		"type":       "telemetry",
		"device_id":  deviceID,
		"latitude":   sample.Position.Lat,
		"longitude":  sample.Position.Lng,
		"speed":      sample.SpeedKmh,
		"satellites": sample.Satellites,
		"timestamp":  sample.Timestamp.Format(time.RFC3339Nano),
	})
}

// HandleWatchWS streams live updates to a dashboard client.
func (tc *TelemetryController) HandleWatchWS(c *gin.Context) {
	claims, err := authenticateSocket(c)
	if err != nil {
		logrus.WithError(err).Warn("Watcher WebSocket connection attempt failed.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if claims.Role != middleware.RoleUser {
		c.JSON(http.StatusForbidden, gin.H{"error": "user token required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade watcher WebSocket connection.")
		return
	}
	defer conn.Close()

	tc.Hub.RegisterWatcher(claims.UserID, conn)
	defer tc.Hub.UnregisterWatcher(claims.UserID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("user_id", claims.UserID).Info("Watcher WebSocket closed.")
			} else {
				logrus.WithError(err).Errorf("Error reading WebSocket message from watcher %s", claims.UserID)
			}
			return
		}
		logrus.WithField("user_id", claims.UserID).Warn("Watcher sent unexpected message. Ignoring.")
	}
}
