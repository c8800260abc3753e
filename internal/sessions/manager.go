package sessions

import (
	"sync"
	"time"

	"resume-optimizer/internal/pipeline"
	"resume-optimizer/internal/shared/metrics"
	"resume-optimizer/internal/shared/telemetry"
)

// DefaultTTL is how long an idle session survives before the janitor
// removes it.
const DefaultTTL = 2 * time.Hour

type entry struct {
	ctrl       *pipeline.Controller
	lastAccess time.Time
}

// Manager holds live sessions in memory. Sessions are ephemeral: they exist
// on exactly one process and disappear after TTL of inactivity, which is why
// every read refreshes the access time.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	stop    chan struct{}
	done    chan struct{}
	now     func() time.Time
}

// NewManager creates a manager and starts its janitor goroutine. Call Close
// to stop it.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		entries: make(map[string]*entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go m.janitor()
	return m
}

// Put registers a controller under its session ID.
func (m *Manager) Put(ctrl *pipeline.Controller) {
	m.mu.Lock()
	m.entries[ctrl.Session().ID()] = &entry{ctrl: ctrl, lastAccess: m.now()}
	size := len(m.entries)
	m.mu.Unlock()
	metrics.SetActiveSessions(size)
}

// Get returns the controller for a session ID and refreshes its access time.
func (m *Manager) Get(sessionID string) (*pipeline.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastAccess = m.now()
	return e.ctrl, true
}

// ListByUser returns the controllers owned by a user.
func (m *Manager) ListByUser(userID string) []*pipeline.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*pipeline.Controller
	for _, e := range m.entries {
		if e.ctrl.Session().UserID() == userID {
			out = append(out, e.ctrl)
		}
	}
	return out
}

// Remove deletes a session. Returns false when it did not exist.
func (m *Manager) Remove(sessionID string) bool {
	m.mu.Lock()
	_, ok := m.entries[sessionID]
	delete(m.entries, sessionID)
	size := len(m.entries)
	m.mu.Unlock()
	metrics.SetActiveSessions(size)
	return ok
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the janitor. Idempotent is not required; call once on
// shutdown.
func (m *Manager) Close() {
	close(m.stop)
	<-m.done
}

func (m *Manager) janitor() {
	defer close(m.done)

	interval := m.ttl / 4
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep removes sessions idle longer than the TTL.
func (m *Manager) sweep() {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	for id, e := range m.entries {
		if e.lastAccess.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.entries, id)
	}
	size := len(m.entries)
	m.mu.Unlock()

	metrics.SetActiveSessions(size)
	if len(expired) > 0 {
		telemetry.Info("sessions.expired", map[string]any{
			"count":     len(expired),
			"remaining": size,
		})
	}
}
