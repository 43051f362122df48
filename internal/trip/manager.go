package trip

import "sync"

// Manager hands out one Session per user. Sessions live for the lifetime of
// the process; their accumulators reset on every Start.
type Manager struct {
	mu       sync.Mutex
	fuel     FuelReader
	store    Store
	sessions map[string]*Session
}

func NewManager(fuel FuelReader, store Store) *Manager {
	return &Manager{
		fuel:     fuel,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Session returns the user's session, creating it with the given device
// binding and tuning when first seen.
func (m *Manager) Session(userID, deviceID string, cfg Config) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID, deviceID, cfg, m.fuel, m.store)
	m.sessions[userID] = s
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Each visits every session under the manager lock; fn must not call back
// into the manager.
func (m *Manager) Each(fn func(userID string, s *Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		fn(id, s)
	}
}

// ByDevice finds the session bound to a device, used to route incoming
// telemetry to its owner.
func (m *Manager) ByDevice(deviceID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.DeviceID() == deviceID {
			return s, true
		}
	}
	return nil, false
}
