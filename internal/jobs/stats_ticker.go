package jobs

import (
	"time"

	"drivelink/internal/feed"
	"drivelink/internal/trip"
)

// StatsTicker recomputes the derived stats of every active trip session once
// per second and pushes them to that user's watchers. Duration fields only
// advance with wall time, so without the tick an idle vehicle would show a
// frozen trip clock.
type StatsTicker struct {
	manager *trip.Manager
	hub     *feed.Hub
	ticker  *time.Ticker
	done    chan bool
}

func NewStatsTicker(manager *trip.Manager, hub *feed.Hub) *StatsTicker {
	return &StatsTicker{
		manager: manager,
		hub:     hub,
		ticker:  time.NewTicker(time.Second),
		done:    make(chan bool),
	}
}

// Start begins the tick loop.
func (j *StatsTicker) Start() {
	go func() {
		for {
			select {
			case now := <-j.ticker.C:
				j.tick(now)
			case <-j.done:
				return
			}
		}
	}()
}

// Stop stops the tick loop.
func (j *StatsTicker) Stop() {
	j.ticker.Stop()
	j.done <- true
}

func (j *StatsTicker) tick(now time.Time) {
	type update struct {
		userID string
		stats  trip.Stats
	}
	var updates []update
	j.manager.Each(func(userID string, s *trip.Session) {
		if stats, err := s.Tick(now); err == nil {
			updates = append(updates, update{userID: userID, stats: stats})
		}
	})
	// Broadcast outside the manager lock.
	for _, u := range updates {
		j.hub.NotifyWatchers(u.userID, map[string]any{
			"type":  "trip_stats",
			"stats": u.stats,
		})
	}
}
