package feed

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrDeviceOffline is returned when a command targets a device with no open
// connection.
var ErrDeviceOffline = errors.New("feed: device offline")

// Well-known feed paths pushed by devices.
const (
	PathTracking = "tracking"
	PathFuel     = "fuel_sensor/value"
	PathRelays   = "relays"
)

type watchMessage struct {
	userID  string
	payload map[string]any
}

// Hub is the realtime boundary between devices and watchers. It caches the
// latest value per device path (the one-shot read surface), forwards relay
// commands to device sockets, and fans live updates out to watcher sockets.
type Hub struct {
	mu       sync.Mutex
	latest   map[string]map[string]any
	lastSeen map[string]time.Time
	devices  map[string]*websocket.Conn
	watchers map[string]map[*websocket.Conn]bool

	broadcast chan watchMessage
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		latest:    make(map[string]map[string]any),
		lastSeen:  make(map[string]time.Time),
		devices:   make(map[string]*websocket.Conn),
		watchers:  make(map[string]map[*websocket.Conn]bool),
		broadcast: make(chan watchMessage, 100),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		conns := h.watchers[msg.userID]
		for conn := range conns {
			go func(c *websocket.Conn, payload map[string]any) {
				if err := c.WriteJSON(payload); err != nil {
					if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
						h.UnregisterWatcher(msg.userID, c)
					} else {
						logrus.WithError(err).WithFields(logrus.Fields{
							"user_id":  msg.userID,
							"conn_ptr": fmt.Sprintf("%p", c),
						}).Warn("Failed to deliver update to watcher.")
					}
				}
			}(conn, msg.payload)
		}
		h.mu.Unlock()
	}
}

// RegisterDevice binds an open socket to a device id, replacing any stale
// connection for the same device.
func (h *Hub) RegisterDevice(deviceID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices[deviceID] = conn
	h.lastSeen[deviceID] = time.Now()
	logrus.WithFields(logrus.Fields{
		"device_id": deviceID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("Device registered with feed hub.")
}

// UnregisterDevice drops the device socket, keeping its cached values so
// one-shot reads keep working across brief reconnects.
func (h *Hub) UnregisterDevice(deviceID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.devices[deviceID] == conn {
		delete(h.devices, deviceID)
	}
	logrus.WithField("device_id", deviceID).Info("Device unregistered from feed hub.")
}

// RegisterWatcher subscribes a client socket to a user's live updates.
func (h *Hub) RegisterWatcher(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[userID]; !ok {
		h.watchers[userID] = make(map[*websocket.Conn]bool)
	}
	h.watchers[userID][conn] = true
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Watcher registered with feed hub.")
}

// UnregisterWatcher removes a disconnected watcher socket.
func (h *Hub) UnregisterWatcher(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.watchers[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.watchers, userID)
		}
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Watcher unregistered from feed hub.")
}

// Publish caches the latest value for a device path and refreshes the
// device's liveness timestamp.
func (h *Hub) Publish(deviceID, path string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.latest[deviceID]; !ok {
		h.latest[deviceID] = make(map[string]any)
	}
	h.latest[deviceID][path] = value
	h.lastSeen[deviceID] = time.Now()
}

// GetOnce returns the most recent cached value for a device path.
func (h *Hub) GetOnce(deviceID, path string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	values, ok := h.latest[deviceID]
	if !ok {
		return nil, false
	}
	v, ok := values[path]
	return v, ok
}

// FuelLevel is the one-shot fuel read captured at trip start.
func (h *Hub) FuelLevel(deviceID string) (float64, bool) {
	v, ok := h.GetOnce(deviceID, PathFuel)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// NotifyWatchers queues a payload for all sockets watching the user. A full
// queue drops the update; live telemetry tolerates gaps.
func (h *Hub) NotifyWatchers(userID string, payload map[string]any) {
	select {
	case h.broadcast <- watchMessage{userID: userID, payload: payload}:
	default:
		logrus.Warn("Watcher broadcast channel full, dropping update.")
	}
}

// SendCommand writes a command frame to the device socket.
func (h *Hub) SendCommand(deviceID string, cmd any) error {
	h.mu.Lock()
	conn, ok := h.devices[deviceID]
	h.mu.Unlock()
	if !ok {
		return ErrDeviceOffline
	}
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("feed: command write to %s: %w", deviceID, err)
	}
	return nil
}

// Stale returns device ids with no update since the cutoff.
func (h *Hub) Stale(ttl time.Duration) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	var ids []string
	for id, seen := range h.lastSeen {
		if seen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Forget drops all cached state for a device.
func (h *Hub) Forget(deviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, deviceID)
	delete(h.lastSeen, deviceID)
	delete(h.devices, deviceID)
}
