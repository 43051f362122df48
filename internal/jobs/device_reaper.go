package jobs

import (
	"time"

	"github.com/sirupsen/logrus"

	"drivelink/internal/feed"
)

// DeviceReaper periodically forgets devices that have gone silent, so the
// one-shot read cache does not serve hours-old fuel levels as current.
type DeviceReaper struct {
	hub    *feed.Hub
	ttl    time.Duration
	ticker *time.Ticker
	done   chan bool
}

func NewDeviceReaper(hub *feed.Hub, ttl time.Duration) *DeviceReaper {
	return &DeviceReaper{
		hub:    hub,
		ttl:    ttl,
		ticker: time.NewTicker(time.Minute),
		done:   make(chan bool),
	}
}

// Start begins the reap loop.
func (j *DeviceReaper) Start() {
	go func() {
		for {
			select {
			case <-j.ticker.C:
				j.reap()
			case <-j.done:
				return
			}
		}
	}()
}

// Stop stops the reap loop.
func (j *DeviceReaper) Stop() {
	j.ticker.Stop()
	j.done <- true
}

func (j *DeviceReaper) reap() {
	for _, id := range j.hub.Stale(j.ttl) {
		j.hub.Forget(id)
		logrus.WithFields(logrus.Fields{
			"device_id": id,
			"ttl":       j.ttl.String(),
		}).Info("Forgot silent device.")
	}
}
